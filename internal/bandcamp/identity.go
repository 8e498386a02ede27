package bandcamp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
	"github.com/handiism/bandcamp-purchases/internal/model"
)

const defaultDisplayName = "Member"

// fanIDRe finds the fan id inside an identity token when JSON parsing fails.
var fanIDRe = regexp.MustCompile(`"id":\s*(\d+)`)

// cookieParts are the two components the canonical header is rebuilt from.
type cookieParts struct {
	identity string
	session  string
}

// identityFragment is what one blob shape contributes to a ResolvedIdentity.
type identityFragment struct {
	fanID           string
	displayName     string
	slug            string
	collectionCount int
}

// blobIdentityStrategy pulls fan details out of one known blob shape.
type blobIdentityStrategy struct {
	name    string
	extract func(*dto.JSONBlob) (identityFragment, bool)
}

// blobIdentityStrategies are tried in order; the home page usually carries
// identities.fan, profile pages fan_data, newer layouts the other two.
var blobIdentityStrategies = []blobIdentityStrategy{
	{name: "identities.fan", extract: func(b *dto.JSONBlob) (identityFragment, bool) {
		if b.Identities == nil || b.Identities.Fan == nil {
			return identityFragment{}, false
		}
		return fanFragment(b.Identities.Fan), true
	}},
	{name: "fan_data", extract: func(b *dto.JSONBlob) (identityFragment, bool) {
		fd := b.FanData
		if fd == nil {
			return identityFragment{}, false
		}
		return identityFragment{
			fanID:           fd.FanID.String(),
			displayName:     firstNonEmpty(fd.Name, fd.Username),
			slug:            fd.Username,
			collectionCount: int(fd.CollectionCount),
		}, true
	}},
	{name: "appData.identities.fan", extract: func(b *dto.JSONBlob) (identityFragment, bool) {
		if b.AppData == nil || b.AppData.Identities == nil || b.AppData.Identities.Fan == nil {
			return identityFragment{}, false
		}
		return fanFragment(b.AppData.Identities.Fan), true
	}},
	{name: "pageContext.pageFan", extract: func(b *dto.JSONBlob) (identityFragment, bool) {
		if b.PageContext == nil || b.PageContext.PageFan == nil {
			return identityFragment{}, false
		}
		pf := b.PageContext.PageFan
		count := int(pf.CollectionCount)
		if count == 0 {
			count = int(pf.ItemCount)
		}
		return identityFragment{
			fanID:           firstNonEmpty(pf.FanID.String(), pf.ID.String(), pf.PageFanID.String()),
			displayName:     firstNonEmpty(pf.Name, pf.Username, pf.PageFanUsername),
			slug:            firstNonEmpty(pf.Username, pf.PageFanUsername),
			collectionCount: count,
		}, true
	}},
}

func fanFragment(f *dto.JSONFan) identityFragment {
	return identityFragment{
		fanID:       f.ID.String(),
		displayName: firstNonEmpty(f.Name, f.Username),
		slug:        f.Username,
	}
}

// Resolver turns a pasted cookie into a ResolvedIdentity.
//
// Users copy cookies out of browser devtools in several formats: a plain
// "identity=...; session=..." header, a tab-separated row from the storage
// panel, or the raw JSON session value. Resolver normalizes all of them into
// a canonical header, finds the fan ID, and confirms the session against the
// Bandcamp home page.
//
// Example usage:
//
//	resolver := bandcamp.NewResolver(client, logger)
//	identity, err := resolver.Resolve(ctx, pastedCookie)
//	var authErr *bandcamp.AuthError
//	if errors.As(err, &authErr) {
//	    fmt.Println(authErr)
//	}
type Resolver struct {
	home   HomeFetcher
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default().
func NewResolver(home HomeFetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{home: home, logger: logger}
}

// Resolve parses rawCookie, verifies it upstream, and returns the fan identity.
//
// The fan ID is taken from the identity token when possible and otherwise
// from the home page's data-blob. Fails with *AuthError when the cookie has no
// identity component, when the upstream rejects the session, or when no fan ID
// can be found by any strategy.
func (r *Resolver) Resolve(ctx context.Context, rawCookie string) (model.ResolvedIdentity, error) {
	input := decodeCookieInput(strings.TrimSpace(rawCookie))
	r.logger.Debug("Resolving identity", "input_length", len(input))

	parts := splitCookie(input)
	if parts.identity == "" {
		r.logger.Warn("Could not isolate identity component")
		return model.ResolvedIdentity{}, errNoIdentity()
	}

	identity := model.ResolvedIdentity{
		FanID:        fanIDFromToken(parts.identity),
		CookieHeader: canonicalHeader(parts),
		DisplayName:  defaultDisplayName,
	}
	if identity.FanID != "" {
		r.logger.Debug("Found fan ID in identity token", "fan_id", identity.FanID)
	}

	if err := r.verify(ctx, &identity); err != nil {
		return model.ResolvedIdentity{}, err
	}

	if identity.FanID == "" {
		r.logger.Error("Could not resolve fan ID after all strategies")
		return model.ResolvedIdentity{}, &AuthError{Reason: ErrNoFanID.Error(), Err: ErrNoFanID}
	}

	r.logger.Info("Resolved identity",
		"fan_id", identity.FanID,
		"slug", identity.UsernameSlug,
		"collection_count", identity.ReportedCollectionCount)
	return identity, nil
}

// verify fetches the home page and fills in what the blob reveals.
//
// Transport failures are tolerated when the fan ID is already known from the
// cookie; a rejected session never is.
func (r *Resolver) verify(ctx context.Context, identity *model.ResolvedIdentity) error {
	page, err := r.home.Home(ctx, identity.CookieHeader)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return authErr
		}
		if identity.FanID == "" {
			return &AuthError{Reason: ErrNoFanID.Error(), Err: err}
		}
		r.logger.Warn("Home page fetch failed, continuing with cookie fan ID", "error", err)
		return nil
	}

	blob, err := ParseBlob(page)
	if err != nil {
		r.logger.Warn("Home page blob unavailable", "error", err)
		return nil
	}

	for _, strategy := range blobIdentityStrategies {
		frag, ok := strategy.extract(blob)
		if !ok {
			continue
		}
		r.logger.Debug("Found fan details in blob", "shape", strategy.name, "slug", frag.slug)
		if identity.FanID == "" {
			identity.FanID = frag.fanID
		}
		if frag.displayName != "" {
			identity.DisplayName = frag.displayName
		}
		identity.UsernameSlug = frag.slug
		identity.ReportedCollectionCount = frag.collectionCount
		return nil
	}

	r.logger.Warn("No known fan shape in home page blob")
	return nil
}

// CookieHeader normalizes a pasted cookie into the canonical
// "identity=...; session=..." header without contacting Bandcamp.
//
// Fails with *AuthError wrapping ErrNoIdentity when there is no identity component.
func CookieHeader(rawCookie string) (string, error) {
	parts := splitCookie(decodeCookieInput(strings.TrimSpace(rawCookie)))
	if parts.identity == "" {
		return "", errNoIdentity()
	}
	return canonicalHeader(parts), nil
}

func errNoIdentity() error {
	return &AuthError{Reason: ErrNoIdentity.Error(), Err: ErrNoIdentity}
}

// decodeCookieInput URL-decodes input that looks percent-encoded.
// Decode failures leave the input untouched.
func decodeCookieInput(input string) string {
	if !strings.Contains(input, "%") {
		return input
	}
	decoded, err := url.PathUnescape(input)
	if err != nil {
		return input
	}
	return decoded
}

// splitCookie classifies the ";"-separated components of the input.
//
// Later components win when several match the same role.
func splitCookie(input string) cookieParts {
	var parts cookieParts
	for _, p := range strings.Split(input, ";") {
		item := strings.TrimSpace(p)
		if item == "" {
			continue
		}
		lower := strings.ToLower(item)

		switch {
		case strings.HasPrefix(lower, "identity="):
			parts.identity = item[len("identity="):]
		case strings.HasPrefix(lower, "session="):
			parts.session = item[len("session="):]
		case strings.HasPrefix(item, "{"):
			parts.session = item
		case strings.Contains(item, "\t") || strings.Contains(item, `{"id"`):
			parts.identity = item
		case len(item) > 50:
			parts.identity = item
		}
	}
	return parts
}

// fanIDFromToken looks for the fan id in an identity token.
//
// Devtools exports put a JSON metadata column in the tab-separated row; if
// that cannot be parsed, a regex over the whole token is the fallback.
func fanIDFromToken(token string) string {
	for _, seg := range strings.Split(token, "\t") {
		seg = strings.TrimSpace(seg)
		if !strings.HasPrefix(seg, "{") || !strings.Contains(seg, `"id"`) {
			continue
		}
		var meta struct {
			ID dto.FlexString `json:"id"`
		}
		if err := json.Unmarshal([]byte(seg), &meta); err == nil && meta.ID != "" && meta.ID != "0" {
			return meta.ID.String()
		}
	}

	if m := fanIDRe.FindStringSubmatch(token); m != nil {
		return m[1]
	}
	return ""
}

// canonicalHeader rebuilds "identity=<token>[; session=<value>]".
// A raw JSON session value is URL-encoded the way browsers store it.
func canonicalHeader(parts cookieParts) string {
	header := "identity=" + parts.identity
	if parts.session != "" {
		session := parts.session
		if strings.HasPrefix(session, "{") {
			session = encodeURIComponent(session)
		}
		header += "; session=" + session
	}
	return header
}

// uriComponentUnreserved restores the marks JavaScript's encodeURIComponent
// leaves alone but url.QueryEscape escapes.
var uriComponentUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentUnreserved.Replace(url.QueryEscape(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" && v != "0" {
			return v
		}
	}
	return ""
}
