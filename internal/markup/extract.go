// Package markup pulls the lobby and pingtest links out of a Steam community
// profile page. Matching is exact: anything not shaped like the expected
// markup counts as "not found".
package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// joinButton selects the "Join Game" button Steam renders while the user
// sits in a joinable lobby.
const joinButton = `a[class="btn_green_white_innerfade btn_small_thin"]`

var pingtestPattern = regexp.MustCompile(`(?:http://)?www\.pingtest\.net/result/.*?\.png`)

// Steam extracts links from Steam community profile markup
type Steam struct{}

// LobbyLink returns the join link of the profile's lobby button
func (Steam) LobbyLink(markup string) (string, bool) {
	return LobbyLink(markup)
}

// PingtestLink returns the first pingtest result image linked on the profile
func (Steam) PingtestLink(markup string) (string, bool) {
	return PingtestLink(markup)
}

// LobbyLink returns the href of the first join button in markup
func LobbyLink(markup string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}

	href, ok := doc.Find(joinButton).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return href, true
}

// PingtestLink returns the first pingtest.net result URL in markup
func PingtestLink(markup string) (string, bool) {
	link := pingtestPattern.FindString(markup)
	if link == "" {
		return "", false
	}
	return link, true
}
