package irc

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dalnet/lobbybot/internal/lobby"
)

// message is one line to send
type message struct {
	target string
	text   string
}

// parseCommand splits a PRIVMSG into a lowercased command name, its
// arguments and the argument text as typed. Channel messages must start with
// prefix; private messages may omit it.
func parseCommand(prefix, text string, private bool) (string, []string, string, bool) {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, prefix):
		text = strings.TrimPrefix(text, prefix)
	case !private:
		return "", nil, "", false
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))
	return strings.ToLower(fields[0]), fields[1:], rest, true
}

// needsPrivilege reports whether the command only works for privileged
// callers, so an unknown caller is checked with WHOIS first.
func needsPrivilege(command string, args []string) bool {
	switch command {
	case "lobbydelete", "lobbyaudit":
		return true
	case "tmode":
		return len(args) > 0
	}
	return false
}

const (
	maxLineBytes = 512
	// Room for the ":nick!user@host " source a server adds when relaying
	sourceReserve = 100
)

// textBudget is the longest PRIVMSG text to target that still fits one
// relayed line.
func textBudget(target string) int {
	return maxLineBytes - sourceReserve - len("PRIVMSG  :\r\n") - len(target)
}

// outgoing turns a reply into messages. Private replies and replies to
// private messages go to the caller; channel replies may be addressed to
// them by nick. Lines too long for one message are split.
func outgoing(channel, nick string, reply lobby.Reply) []message {
	target := channel
	prefix := ""
	if channel == "" || reply.Private {
		target = nick
	} else if reply.PrefixNick {
		prefix = nick + ": "
	}

	budget := textBudget(target) - len(prefix)
	var out []message
	for _, line := range reply.Lines() {
		for _, part := range splitText(line, budget) {
			out = append(out, message{target: target, text: prefix + part})
		}
	}
	return out
}

// splitText cuts text into pieces of at most limit bytes, preferring spaces
// and never splitting a UTF-8 sequence.
func splitText(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if i := strings.LastIndexByte(text[:cut], ' '); i > 0 {
			cut = i
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], " ")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func newRequestID() string {
	return uuid.NewString()
}
