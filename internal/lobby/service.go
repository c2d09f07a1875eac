// Package lobby implements the chat commands of the bot: Steam identity
// registration, lobby link lookup, profile status, usage statistics and the
// tournament-mode pingtest checks.
package lobby

import (
	"context"
	"strings"
	"unicode"

	"github.com/dalnet/lobbybot/internal/identity"
	"github.com/dalnet/lobbybot/internal/markup"
	"github.com/dalnet/lobbybot/internal/modes"
	"github.com/dalnet/lobbybot/internal/region"
	"github.com/dalnet/lobbybot/internal/steam"
)

// Gateway is the part of the Steam client the commands use
type Gateway interface {
	FetchSummary(ctx context.Context, steamID string) (*steam.Summary, error)
	FetchProfileMarkup(ctx context.Context, steamID string) (string, error)
	VerifyPublicProfile(ctx context.Context, profileURL string) (*steam.Profile, error)
}

// Shortener turns a long link into a short one
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Extractor finds links in raw profile markup
type Extractor interface {
	LobbyLink(markup string) (string, bool)
	PingtestLink(markup string) (string, bool)
}

// Regions maps a Steam location to a region label
type Regions interface {
	RegionFor(country, state string) string
}

// Auditor keeps a trail of privileged actions
type Auditor interface {
	Record(hostmask, action string) error
	Recent(n int) []string
}

// Deps are the collaborators of a Service
type Deps struct {
	Store     identity.Store
	Gateway   Gateway
	Shortener Shortener
	Extractor Extractor
	Regions   Regions
	Flags     *modes.Flags
	Audit     Auditor
	Version   string
}

// Request is one parsed command invocation
type Request struct {
	Nick       string
	Hostmask   string
	Privileged bool
	Args       []string
	// Text is the argument text as typed, used where spacing matters
	Text string
}

// Reply is what a command answers. Text may hold several lines separated by
// newlines; each is sent as its own message.
type Reply struct {
	Text       string
	Private    bool
	PrefixNick bool
}

// Lines splits the reply text into the messages to send
func (r Reply) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Service dispatches commands to their handlers
type Service struct {
	store     identity.Store
	gateway   Gateway
	shortener Shortener
	extractor Extractor
	regions   Regions
	flags     *modes.Flags
	audit     Auditor
	version   string

	handlers map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, req Request) Reply

// New creates a Service
func New(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		gateway:   d.Gateway,
		shortener: d.Shortener,
		extractor: d.Extractor,
		regions:   d.Regions,
		flags:     d.Flags,
		audit:     d.Audit,
		version:   d.Version,
	}
	if s.flags == nil {
		s.flags = modes.New(false)
	}
	if s.regions == nil {
		s.regions = region.Empty()
	}
	if s.extractor == nil {
		s.extractor = markup.Steam{}
	}

	s.handlers = map[string]handlerFunc{
		"lobbyreg":     s.register,
		"lobby":        s.lobby,
		"lobbydelete":  s.delete,
		"steam":        s.profileStatus,
		"tmode":        s.tournamentMode,
		"lobbystats":   s.stats,
		"lobbyversion": s.versionInfo,
		"pingtest":     s.pingtestStatus,
		"lobbyhelp":    s.help,
		"lobbyaudit":   s.auditTrail,
	}
	return s
}

// Commands returns the names Handle answers to
func (s *Service) Commands() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Handle runs the named command. The second result is false when no command
// of that name exists.
func (s *Service) Handle(ctx context.Context, command string, req Request) (Reply, bool) {
	h, ok := s.handlers[strings.ToLower(command)]
	if !ok {
		return Reply{}, false
	}
	return h(ctx, req), true
}

// say answers without addressing the caller
func (s *Service) say(text string) Reply {
	return Reply{Text: text, Private: s.flags.Private()}
}

// answer addresses the caller by nick
func (s *Service) answer(text string) Reply {
	return Reply{Text: text, Private: s.flags.Private(), PrefixNick: true}
}

func (s *Service) recordAudit(ctx context.Context, req Request, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(req.Hostmask, action); err != nil {
		logger(ctx).Warn().Err(err).Str("action", action).Msg("Failed to write audit entry")
	}
}

// target is the nickname a command is about: the first argument, or the caller
func target(req Request) string {
	if len(req.Args) > 0 && req.Args[0] != "" {
		return req.Args[0]
	}
	return req.Nick
}

// trailing is everything after the first argument, keeping the caller's
// spacing when the raw text is known.
func trailing(req Request) string {
	if req.Text == "" {
		if len(req.Args) < 2 {
			return ""
		}
		return strings.Join(req.Args[1:], " ")
	}
	text := strings.TrimSpace(req.Text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimLeftFunc(text[i:], unicode.IsSpace)
}
