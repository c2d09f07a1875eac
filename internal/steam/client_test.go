package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalnet/lobbybot/internal/fetch"
)

const summaryJSON = `{"response":{"players":[{
	"steamid":"76561197960287930",
	"personaname":"Rabscuttle",
	"personastate":0,
	"lastlogoff":1433160000,
	"profileurl":"https://steamcommunity.com/id/rabscuttle/",
	"loccountrycode":"US",
	"locstatecode":"WA"
}]}}`

const publicProfileXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<profile>
	<steamID64>76561197960287930</steamID64>
	<steamID><![CDATA[Rabscuttle]]></steamID>
	<privacyState>public</privacyState>
</profile>`

const privateProfileXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<profile>
	<steamID64>76561197960287931</steamID64>
	<steamID><![CDATA[Hidden]]></steamID>
	<privacyState>friendsonly</privacyState>
</profile>`

const unknownProfileXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<response><error><![CDATA[The specified profile could not be found.]]></error></response>`

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		APIBase:       srv.URL,
		CommunityBase: srv.URL,
		Key:           "test-key",
		Timeout:       time.Second,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestFetchSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISteamUser/GetPlayerSummaries/v0002/" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("steamids") != "76561197960287930" {
			w.Write([]byte(`{"response":{"players":[]}}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(summaryJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	s, err := c.FetchSummary(context.Background(), "76561197960287930")
	if err != nil {
		t.Fatalf("FetchSummary() error: %v", err)
	}
	if s.PersonaName != "Rabscuttle" {
		t.Errorf("PersonaName = %q, want %q", s.PersonaName, "Rabscuttle")
	}
	if s.Online() {
		t.Error("Online() = true for personastate 0")
	}
	if got := s.LastSeen().Format("2006-01-02 15:04:05"); got != "2015-06-01 12:00:00" {
		t.Errorf("LastSeen() = %q", got)
	}
	if s.CountryCode != "US" || s.StateCode != "WA" {
		t.Errorf("location = %q/%q, want US/WA", s.CountryCode, s.StateCode)
	}

	_, err = c.FetchSummary(context.Background(), "1")
	if !errors.Is(err, ErrNoPlayer) {
		t.Errorf("FetchSummary(unknown) error = %v, want ErrNoPlayer", err)
	}
}

func TestFetchSummary_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchSummary(context.Background(), "1")
	if !fetch.IsStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("error = %v, want HTTP 503", err)
	}
}

func TestFetchProfileMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profiles/76561197960287930" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>profile</html>")) //nolint:errcheck
	}))
	defer srv.Close()

	markup, err := newTestClient(t, srv).FetchProfileMarkup(context.Background(), "76561197960287930")
	if err != nil {
		t.Fatalf("FetchProfileMarkup() error: %v", err)
	}
	if markup != "<html>profile</html>" {
		t.Errorf("markup = %q", markup)
	}
}

func TestVerifyPublicProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("xml") != "1" {
			t.Errorf("missing xml=1 query on %s", r.URL)
		}
		switch r.URL.Path {
		case "/id/rabscuttle/":
			w.Write([]byte(publicProfileXML)) //nolint:errcheck
		case "/id/hidden":
			w.Write([]byte(privateProfileXML)) //nolint:errcheck
		case "/id/nobody":
			w.Write([]byte(unknownProfileXML)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	p, err := c.VerifyPublicProfile(ctx, srv.URL+"/id/rabscuttle/")
	if err != nil {
		t.Fatalf("VerifyPublicProfile() error: %v", err)
	}
	if p.SteamID != "76561197960287930" || p.Name != "Rabscuttle" || !p.Public {
		t.Errorf("profile = %+v", p)
	}

	p, err = c.VerifyPublicProfile(ctx, srv.URL+"/id/hidden")
	if err != nil {
		t.Fatalf("VerifyPublicProfile(hidden) error: %v", err)
	}
	if p.Public {
		t.Error("friendsonly profile reported as public")
	}

	for _, path := range []string{"/id/nobody", "/id/missing"} {
		_, err = c.VerifyPublicProfile(ctx, srv.URL+path)
		if !errors.Is(err, ErrProfileNotFound) {
			t.Errorf("VerifyPublicProfile(%s) error = %v, want ErrProfileNotFound", path, err)
		}
	}
}

func TestVerifyPublicProfile_ForeignURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("foreign URL must not be fetched")
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	for _, u := range []string{
		"http://example.com/id/rabscuttle/",
		"ftp://" + strings.TrimPrefix(srv.URL, "http://") + "/id/x",
		"not a url",
	} {
		_, err := c.VerifyPublicProfile(context.Background(), u)
		if !errors.Is(err, ErrForeignURL) {
			t.Errorf("VerifyPublicProfile(%q) error = %v, want ErrForeignURL", u, err)
		}
	}
}

func TestNew_InvalidCommunityBase(t *testing.T) {
	if _, err := New(Config{CommunityBase: "::"}); err == nil {
		t.Error("expected error for invalid community base")
	}
}
