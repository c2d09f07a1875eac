// Package steam talks to the Steam Web API and the Steam community site.
package steam

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalnet/lobbybot/internal/fetch"
)

var (
	// ErrNoPlayer is returned when the summary response lists no player.
	ErrNoPlayer = errors.New("steam: no player in summary response")

	// ErrProfileNotFound is returned when a profile URL does not resolve to
	// a Steam profile document.
	ErrProfileNotFound = errors.New("steam: profile not found")

	// ErrForeignURL is returned for profile URLs outside the community site.
	ErrForeignURL = errors.New("steam: url is not a community profile")
)

// Config holds the endpoints and credentials of the client
type Config struct {
	APIBase       string
	CommunityBase string
	Key           string
	Timeout       time.Duration
}

// Client is the Steam gateway.
type Client struct {
	apiBase       string
	communityBase *url.URL
	key           string
	httpClient    *http.Client
}

// New creates a Steam client.
func New(cfg Config) (*Client, error) {
	community, err := url.Parse(strings.TrimRight(cfg.CommunityBase, "/"))
	if err != nil || community.Host == "" {
		return nil, fmt.Errorf("steam: invalid community base %q", cfg.CommunityBase)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiBase:       strings.TrimRight(cfg.APIBase, "/"),
		communityBase: community,
		key:           cfg.Key,
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

// Summary is the subset of GetPlayerSummaries the bot uses.
type Summary struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	PersonaState int    `json:"personastate"`
	LastLogoff   int64  `json:"lastlogoff"`
	ProfileURL   string `json:"profileurl"`
	CountryCode  string `json:"loccountrycode"`
	StateCode    string `json:"locstatecode"`
}

// Online reports whether the persona state is anything but offline
func (s Summary) Online() bool {
	return s.PersonaState != 0
}

// LastSeen returns the last logoff time in UTC
func (s Summary) LastSeen() time.Time {
	return time.Unix(s.LastLogoff, 0).UTC()
}

type summaryResponse struct {
	Response struct {
		Players []Summary `json:"players"`
	} `json:"response"`
}

// FetchSummary returns the player summary for steamID.
func (c *Client) FetchSummary(ctx context.Context, steamID string) (*Summary, error) {
	params := url.Values{}
	params.Set("key", c.key)
	params.Set("steamids", steamID)

	body, err := fetch.Get(ctx, c.httpClient, c.apiBase+"/ISteamUser/GetPlayerSummaries/v0002/?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("steam.FetchSummary: %w", err)
	}

	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("steam.FetchSummary: decoding response: %w", err)
	}
	if len(resp.Response.Players) == 0 {
		return nil, ErrNoPlayer
	}
	return &resp.Response.Players[0], nil
}

// FetchProfileMarkup returns the raw community profile page of steamID.
func (c *Client) FetchProfileMarkup(ctx context.Context, steamID string) (string, error) {
	body, err := fetch.Get(ctx, c.httpClient, c.communityBase.String()+"/profiles/"+url.PathEscape(steamID))
	if err != nil {
		return "", fmt.Errorf("steam.FetchProfileMarkup: %w", err)
	}
	return string(body), nil
}

// Profile is what registration learns from a profile URL.
type Profile struct {
	SteamID string
	Name    string
	Public  bool
}

type profileDocument struct {
	XMLName      xml.Name `xml:"profile"`
	SteamID64    string   `xml:"steamID64"`
	SteamID      string   `xml:"steamID"`
	PrivacyState string   `xml:"privacyState"`
}

// VerifyPublicProfile loads the XML form of a community profile URL.
// Only URLs on the configured community host are fetched.
func (c *Client) VerifyPublicProfile(ctx context.Context, profileURL string) (*Profile, error) {
	u, err := url.Parse(strings.TrimSpace(profileURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") ||
		!strings.EqualFold(u.Hostname(), c.communityBase.Hostname()) {
		return nil, ErrForeignURL
	}
	// Fetch from the configured base so the scheme and port are ours.
	u.Scheme = c.communityBase.Scheme
	u.Host = c.communityBase.Host
	q := u.Query()
	q.Set("xml", "1")
	u.RawQuery = q.Encode()

	body, err := fetch.Get(ctx, c.httpClient, u.String())
	if err != nil {
		if fetch.IsStatus(err, http.StatusNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("steam.VerifyPublicProfile: %w", err)
	}

	var doc profileDocument
	if err := xml.Unmarshal(body, &doc); err != nil || doc.SteamID64 == "" {
		// Unknown vanity URLs answer 200 with an <response><error> document
		return nil, ErrProfileNotFound
	}

	return &Profile{
		SteamID: strings.TrimSpace(doc.SteamID64),
		Name:    strings.TrimSpace(doc.SteamID),
		Public:  strings.TrimSpace(doc.PrivacyState) == "public",
	}, nil
}
