package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const inLobbyProfile = `<html><body>
<div class="profile_in_game persona in-game">
  <div class="profile_in_game_header">Currently In-Game</div>
  <div class="profile_in_game_joingame">
    <a href="steam://joinlobby/440/109775241191796480/76561197960287930" class="btn_green_white_innerfade btn_small_thin"><span>Join Game</span></a>
  </div>
</div>
<div class="profile_summary">Ping: http://www.pingtest.net/result/123456789.png and more
<a href="http://www.pingtest.net/result/987.png">second</a></div>
</body></html>`

const idleProfile = `<html><body>
<div class="profile_in_game persona online"><div class="profile_in_game_header">Currently Online</div></div>
<a href="https://steamcommunity.com/id/someone/friends" class="btn_profile_action btn_medium"><span>Friends</span></a>
</body></html>`

func TestLobbyLink(t *testing.T) {
	link, ok := LobbyLink(inLobbyProfile)
	assert.True(t, ok)
	assert.Equal(t, "steam://joinlobby/440/109775241191796480/76561197960287930", link)
}

func TestLobbyLinkNotFound(t *testing.T) {
	_, ok := LobbyLink(idleProfile)
	assert.False(t, ok)

	_, ok = LobbyLink("")
	assert.False(t, ok)
}

func TestLobbyLinkRequiresExactClass(t *testing.T) {
	markup := `<a href="steam://joinlobby/1/2/3" class="btn_green_white_innerfade btn_small_thin extra">Join</a>
<a href="steam://joinlobby/4/5/6" class="btn_small_thin btn_green_white_innerfade">Join</a>`
	_, ok := LobbyLink(markup)
	assert.False(t, ok)
}

func TestLobbyLinkEmptyHref(t *testing.T) {
	_, ok := LobbyLink(`<a href="" class="btn_green_white_innerfade btn_small_thin">Join</a>`)
	assert.False(t, ok)
}

func TestPingtestLink(t *testing.T) {
	link, ok := PingtestLink(inLobbyProfile)
	assert.True(t, ok)
	assert.Equal(t, "http://www.pingtest.net/result/123456789.png", link)

	link, ok = PingtestLink("see www.pingtest.net/result/42.png")
	assert.True(t, ok)
	assert.Equal(t, "www.pingtest.net/result/42.png", link)
}

func TestPingtestLinkNotFound(t *testing.T) {
	for _, markup := range []string{
		idleProfile,
		"http://pingtest.net/result/1.png",
		"http://www.pingtest.net/result/1.jpg",
	} {
		_, ok := PingtestLink(markup)
		assert.False(t, ok, "markup %q", markup)
	}
}

func TestSteamExtractor(t *testing.T) {
	var s Steam
	_, ok := s.LobbyLink(inLobbyProfile)
	assert.True(t, ok)
	_, ok = s.PingtestLink(idleProfile)
	assert.False(t, ok)
}
