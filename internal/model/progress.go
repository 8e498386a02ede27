package model

// Status is the lifecycle stage of a scrape.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusScraping  Status = "scraping"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions follow this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ScrapeProgress is the snapshot published to observers after every page.
type ScrapeProgress struct {
	Status       Status `json:"status"`
	ItemsFetched int    `json:"itemsFetched"`
	PagesFetched int    `json:"pagesFetched"`
	Error        string `json:"error,omitempty"`
}

// IdleProgress is the state before any scrape and after a reset.
func IdleProgress() ScrapeProgress {
	return ScrapeProgress{Status: StatusIdle}
}

// ResolvedIdentity is the authenticated fan a scrape runs as.
//
// It is created once per scrape attempt by the identity resolver and is
// read-only afterwards.
type ResolvedIdentity struct {
	// FanID is Bandcamp's numeric fan identifier, kept as a string.
	FanID string `json:"fanId"`

	// UsernameSlug is the profile path segment, e.g. "sluggy" for bandcamp.com/sluggy.
	UsernameSlug string `json:"usernameSlug,omitempty"`

	// CookieHeader is the canonical "identity=...; session=..." header.
	CookieHeader string `json:"-"`

	DisplayName             string `json:"displayName"`
	ReportedCollectionCount int    `json:"collectionCount"`
}
