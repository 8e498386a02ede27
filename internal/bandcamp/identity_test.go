package bandcamp

import (
	"context"
	"errors"
	"html"
	"io"
	"log/slog"
	"testing"
)

type fakeHome struct {
	page      string
	err       error
	gotCookie string
}

func (f *fakeHome) Home(_ context.Context, cookieHeader string) (string, error) {
	f.gotCookie = cookieHeader
	return f.page, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blobPage wraps a JSON document the way Bandcamp embeds it.
func blobPage(blob string) string {
	return `<html><body><div id="pagedata" data-blob="` + html.EscapeString(blob) + `"></div></body></html>`
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		page        string
		homeErr     error
		wantFanID   string
		wantSlug    string
		wantName    string
		wantCount   int
		wantHeader  string
		wantErrIs   error
		wantAuthErr bool
	}{
		{
			name:       "plain header with fan_data blob",
			cookie:     "identity=abc; session=def",
			page:       blobPage(`{"fan_data":{"fan_id":42,"name":"Jo","username":"jo","collection_count":7}}`),
			wantFanID:  "42",
			wantSlug:   "jo",
			wantName:   "Jo",
			wantCount:  7,
			wantHeader: "identity=abc; session=def",
		},
		{
			name:       "identities.fan wins over fan_data",
			cookie:     "identity=abc",
			page:       blobPage(`{"identities":{"fan":{"id":"11","name":"First","username":"first"}},"fan_data":{"fan_id":22}}`),
			wantFanID:  "11",
			wantSlug:   "first",
			wantName:   "First",
			wantHeader: "identity=abc",
		},
		{
			name:       "pageContext.pageFan shape",
			cookie:     "identity=abc",
			page:       blobPage(`{"pageContext":{"pageFan":{"pageFanId":"77","pageFanUsername":"pf","item_count":3}}}`),
			wantFanID:  "77",
			wantSlug:   "pf",
			wantName:   "pf",
			wantCount:  3,
			wantHeader: "identity=abc",
		},
		{
			name:       "devtools row with metadata column and failing home page",
			cookie:     "identity=7\t{\"id\":12345,\"h\":\"x\"}",
			homeErr:    errors.New("connection reset"),
			wantFanID:  "12345",
			wantName:   "Member",
			wantHeader: "identity=7\t{\"id\":12345,\"h\":\"x\"}",
		},
		{
			name:       "percent-encoded input",
			cookie:     "identity=7%09%7B%22id%22%3A555%7D",
			page:       "<html>no blob here</html>",
			wantFanID:  "555",
			wantName:   "Member",
			wantHeader: "identity=7\t{\"id\":555}",
		},
		{
			name:       "raw JSON session is encoded",
			cookie:     `identity=abc; {"a":1}`,
			page:       blobPage(`{"identities":{"fan":{"id":9}}}`),
			wantFanID:  "9",
			wantName:   "Member",
			wantHeader: "identity=abc; session=%7B%22a%22%3A1%7D",
		},
		{
			name:       "long bare token is treated as identity",
			cookie:     "0123456789012345678901234567890123456789012345678901234567890",
			page:       blobPage(`{"fan_data":{"fan_id":"5"}}`),
			wantFanID:  "5",
			wantName:   "Member",
			wantHeader: "identity=0123456789012345678901234567890123456789012345678901234567890",
		},
		{
			name:        "no identity component",
			cookie:      "session=abc",
			wantErrIs:   ErrNoIdentity,
			wantAuthErr: true,
		},
		{
			name:        "session rejected upstream",
			cookie:      "identity=abc",
			homeErr:     &AuthError{Reason: "session rejected by Bandcamp"},
			wantAuthErr: true,
		},
		{
			name:        "no fan id anywhere",
			cookie:      "identity=abc",
			page:        blobPage(`{"something_else":{}}`),
			wantErrIs:   ErrNoFanID,
			wantAuthErr: true,
		},
		{
			name:        "transport failure without fan id",
			cookie:      "identity=abc",
			homeErr:     errors.New("dial tcp: timeout"),
			wantAuthErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := &fakeHome{page: tt.page, err: tt.homeErr}
			r := NewResolver(home, discardLogger())

			got, err := r.Resolve(context.Background(), tt.cookie)

			if tt.wantAuthErr {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected *AuthError, got %v", err)
				}
				if tt.wantErrIs != nil && !errors.Is(err, tt.wantErrIs) {
					t.Errorf("error %v does not wrap %v", err, tt.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.FanID != tt.wantFanID {
				t.Errorf("FanID = %q, want %q", got.FanID, tt.wantFanID)
			}
			if got.UsernameSlug != tt.wantSlug {
				t.Errorf("UsernameSlug = %q, want %q", got.UsernameSlug, tt.wantSlug)
			}
			if got.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", got.DisplayName, tt.wantName)
			}
			if got.ReportedCollectionCount != tt.wantCount {
				t.Errorf("ReportedCollectionCount = %d, want %d", got.ReportedCollectionCount, tt.wantCount)
			}
			if got.CookieHeader != tt.wantHeader {
				t.Errorf("CookieHeader = %q, want %q", got.CookieHeader, tt.wantHeader)
			}
			if home.gotCookie != tt.wantHeader {
				t.Errorf("home page fetched with %q, want canonical header", home.gotCookie)
			}
		})
	}
}

func TestAuthError_MessageCarriesHint(t *testing.T) {
	err := &AuthError{Reason: ErrNoFanID.Error(), Err: ErrNoFanID}
	want := "authentication failed: cannot resolve fan identifier (log in again and get a fresh cookie)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSplitCookie_LaterComponentsWin(t *testing.T) {
	parts := splitCookie("identity=first; session=s1; identity=second")
	if parts.identity != "second" {
		t.Errorf("identity = %q, want %q", parts.identity, "second")
	}
	if parts.session != "s1" {
		t.Errorf("session = %q, want %q", parts.session, "s1")
	}
}

func TestFanIDFromToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"7\t{\"id\":123}", "123"},
		{"7\t{\"id\":\"456\",\"x\":1}", "456"},
		{"garbage {\"id\": 789 broken", "789"},
		{"no id at all", ""},
	}
	for _, tt := range tests {
		if got := fanIDFromToken(tt.token); got != tt.want {
			t.Errorf("fanIDFromToken(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestCookieHeader(t *testing.T) {
	got, err := CookieHeader(`  identity=abc; {"a":1}  `)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "identity=abc; session=%7B%22a%22%3A1%7D" {
		t.Errorf("CookieHeader = %q", got)
	}

	if _, err := CookieHeader("session=only"); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("error = %v, want ErrNoIdentity", err)
	}
}

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, "%7B%22a%22%3A1%7D"},
		{"a b+c", "a%20b%2Bc"},
		{"it's (fine)!*", "it's%20(fine)!*"},
		{"-_.~", "-_.~"},
		{"ü/?", "%C3%BC%2F%3F"},
	}
	for _, tt := range tests {
		if got := encodeURIComponent(tt.in); got != tt.want {
			t.Errorf("encodeURIComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
