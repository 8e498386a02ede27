package bandcamp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
	bchttp "github.com/handiism/bandcamp-purchases/internal/http"
	"github.com/handiism/bandcamp-purchases/internal/model"
)

// DefaultBaseURL is the Bandcamp origin all requests are made against.
const DefaultBaseURL = "https://bandcamp.com"

const (
	collectionItemsPath = "/api/fancollection/1/collection_items"
	hiddenItemsPath     = "/api/fancollection/1/hidden_items"
)

// HomeFetcher fetches the logged-in home page used to verify a session.
type HomeFetcher interface {
	Home(ctx context.Context, cookieHeader string) (string, error)
}

// Upstream is everything the harvester needs from Bandcamp.
type Upstream interface {
	CollectionItems(ctx context.Context, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error)
	HiddenItems(ctx context.Context, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error)
	Profile(ctx context.Context, identity model.ResolvedIdentity) (string, error)
}

// Client talks to Bandcamp's pages and internal fancollection API.
//
// Example usage:
//
//	client := bandcamp.NewClient(bchttp.NewClient(30*time.Second), bandcamp.DefaultBaseURL)
//	page, err := client.CollectionItems(ctx, identity.CookieHeader, dto.ItemsRequest{
//	    FanID: identity.FanID,
//	    Count: 100,
//	})
type Client struct {
	http    *bchttp.Client
	baseURL string
}

// NewClient creates a Client. An empty baseURL uses DefaultBaseURL.
func NewClient(httpClient *bchttp.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Home fetches the home page as the cookie's owner.
//
// A 401 or 403 answer means the session is no longer valid and is reported
// as an *AuthError.
func (c *Client) Home(ctx context.Context, cookieHeader string) (string, error) {
	body, err := c.http.GetString(ctx, c.baseURL+"/", bchttp.Cookie(cookieHeader))
	if err != nil {
		return "", asAuthError(err)
	}
	return body, nil
}

// Profile fetches the fan's collection page, by slug when known, else by fan ID.
func (c *Client) Profile(ctx context.Context, identity model.ResolvedIdentity) (string, error) {
	u := c.baseURL + "/fan/" + identity.FanID
	if identity.UsernameSlug != "" {
		u = c.baseURL + "/" + identity.UsernameSlug
	}
	body, err := c.http.GetString(ctx, u, bchttp.Cookie(identity.CookieHeader))
	if err != nil {
		return "", asAuthError(err)
	}
	return body, nil
}

// CollectionItems fetches one page of visible collection items.
func (c *Client) CollectionItems(ctx context.Context, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error) {
	return c.postItems(ctx, collectionItemsPath, cookieHeader, req)
}

// HiddenItems fetches one page of items the fan hid from their profile.
func (c *Client) HiddenItems(ctx context.Context, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error) {
	return c.postItems(ctx, hiddenItemsPath, cookieHeader, req)
}

func (c *Client) postItems(ctx context.Context, path, cookieHeader string, req dto.ItemsRequest) (*dto.ItemsPage, error) {
	var page dto.ItemsPage
	err := c.http.PostJSON(ctx, c.baseURL+path, req, &page,
		bchttp.Cookie(cookieHeader),
		bchttp.Header("Origin", c.baseURL),
		bchttp.Header("Referer", c.baseURL+"/"),
		bchttp.Header("Accept", "application/json, text/javascript, */*; q=0.01"),
		bchttp.Header("X-Requested-With", "XMLHttpRequest"),
	)
	if err != nil {
		return nil, asAuthError(err)
	}
	if page.HasError() {
		return nil, errors.New(page.ErrorText())
	}
	return &page, nil
}

// asAuthError converts 401/403 responses into *AuthError and passes other errors through.
func asAuthError(err error) error {
	var se *bchttp.StatusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
		return &AuthError{Reason: "session rejected by Bandcamp", Err: err}
	}
	return err
}
