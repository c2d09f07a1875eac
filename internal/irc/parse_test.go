package irc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/lobbybot/internal/lobby"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		private bool
		cmd     string
		args    []string
		rest    string
		ok      bool
	}{
		{"channel command", ".lobby alice need one", false, "lobby", []string{"alice", "need", "one"}, "alice need one", true},
		{"spacing kept", ".lobby alice  need   one ", false, "lobby", []string{"alice", "need", "one"}, "alice  need   one", true},
		{"uppercase", ".LobbyStats", false, "lobbystats", []string{}, "", true},
		{"channel chatter", "hello there", false, "", nil, "", false},
		{"prefix only", ".", false, "", nil, "", false},
		{"private without prefix", "login hunter2", true, "login", []string{"hunter2"}, "hunter2", true},
		{"private with prefix", ".steam bob", true, "steam", []string{"bob"}, "bob", true},
		{"blank", "   ", true, "", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, rest, ok := parseCommand(".", tt.text, tt.private)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.rest, rest)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestNeedsPrivilege(t *testing.T) {
	assert.True(t, needsPrivilege("lobbydelete", []string{"alice"}))
	assert.True(t, needsPrivilege("lobbyaudit", nil))
	assert.True(t, needsPrivilege("tmode", []string{"on"}))
	assert.False(t, needsPrivilege("tmode", nil))
	assert.False(t, needsPrivilege("lobby", nil))
}

func TestOutgoing(t *testing.T) {
	t.Run("channel", func(t *testing.T) {
		out := outgoing("#lobby", "alice", lobby.Reply{Text: "alice lobby: x"})
		assert.Equal(t, []message{{target: "#lobby", text: "alice lobby: x"}}, out)
	})

	t.Run("channel addressed", func(t *testing.T) {
		out := outgoing("#lobby", "alice", lobby.Reply{Text: "Already registered.", PrefixNick: true})
		assert.Equal(t, []message{{target: "#lobby", text: "alice: Already registered."}}, out)
	})

	t.Run("private reply", func(t *testing.T) {
		out := outgoing("#lobby", "alice", lobby.Reply{Text: "a\nb", Private: true, PrefixNick: true})
		assert.Equal(t, []message{{target: "alice", text: "a"}, {target: "alice", text: "b"}}, out)
	})

	t.Run("private message", func(t *testing.T) {
		out := outgoing("", "alice", lobby.Reply{Text: "1.0.4", PrefixNick: true})
		assert.Equal(t, []message{{target: "alice", text: "1.0.4"}}, out)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, outgoing("#lobby", "alice", lobby.Reply{}))
	})
}

func TestOutgoingFitsLineLimit(t *testing.T) {
	note := strings.TrimSpace(strings.Repeat("need two more for ranked ", 18))
	text := "alice (Region: EU West) lobby: https://tinyurl.com/abc123 - " + note
	require.Greater(t, len(text), 440)

	for _, reply := range []lobby.Reply{
		{Text: text},
		{Text: text, PrefixNick: true},
		{Text: text, Private: true},
	} {
		out := outgoing("#lobby", "alice", reply)
		require.Greater(t, len(out), 1)

		var parts []string
		for _, m := range out {
			msg := ircmsg.MakeMessage(nil, "lobbybot!lobbybot@services.example.net", "PRIVMSG", m.target, m.text)
			line, err := msg.LineBytesStrict(true, maxLineBytes)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(line), maxLineBytes)

			part := m.text
			if reply.PrefixNick {
				require.True(t, strings.HasPrefix(part, "alice: "))
				part = strings.TrimPrefix(part, "alice: ")
			}
			parts = append(parts, part)
		}
		assert.Equal(t, text, strings.Join(parts, " "))
	}
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))
	assert.Equal(t, []string{"one two", "three"}, splitText("one two three", 8))
	assert.Equal(t, []string{"abcde", "fghij"}, splitText("abcdefghij", 5))

	// multi-byte runes stay whole
	parts := splitText(strings.Repeat("é", 6), 5)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p))
		assert.LessOrEqual(t, len(p), 5)
	}
	assert.Equal(t, strings.Repeat("é", 6), strings.Join(parts, ""))
}

func TestNewRequestID(t *testing.T) {
	id := newRequestID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, newRequestID())
}
