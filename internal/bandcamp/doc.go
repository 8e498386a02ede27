// Package bandcamp talks to Bandcamp on behalf of a logged-in fan and turns
// their purchase history into normalized rows.
//
// The package covers three steps:
//
//  1. Resolving a pasted browser cookie into a verified fan identity
//  2. Harvesting the visible and hidden collection page by page
//  3. Normalizing and deduplicating the raw items into model.PurchaseRow
//
// # Identity
//
// Resolver accepts the cookie formats users copy out of devtools and checks
// the session against the home page:
//
//	resolver := bandcamp.NewResolver(client, logger)
//	identity, err := resolver.Resolve(ctx, "identity=...; session=...")
//
// # Harvesting
//
// Harvester walks the fancollection API using older_than_token pagination.
// When the API yields nothing it falls back to the profile page, trying the
// embedded item cache, then the redownload map, then the rendered grid:
//
//	h := bandcamp.NewHarvester(client, bandcamp.DefaultOptions(), logger)
//	progress, err := h.Harvest(ctx, identity, onBatch)
//
// # Bandcamp Data Format
//
// Bandcamp embeds page state as HTML-escaped JSON in a data-blob attribute.
// The shape of that document varies between pages and rollouts, so every
// known layout is tried in a fixed order and parse failures only move on to
// the next strategy.
package bandcamp
