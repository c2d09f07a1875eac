package lobby

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dalnet/lobbybot/internal/fetch"
	"github.com/dalnet/lobbybot/internal/identity"
	"github.com/dalnet/lobbybot/internal/steam"
)

const (
	msgAlreadyRegistered = "Already registered."
	msgProfileNotFound   = "Could not find profile, maybe incorrect URL?"
	msgProfileNotPublic  = "Profile not set to public, please change that and try again."
	msgSteamProblem      = "Connection problem to Steam, please try again."
	msgTinyURLProblem    = "Connection problem to TinyURL, please try again."
	msgDatabaseProblem   = "Database problem, please try again."
	msgInsufficient      = "Insufficient capabilities. Please contact a channel operator for assistance."

	pingtestInstructions = "http://www.pingtest.net - Ping to Ashburn, VA for East Coast and San Francisco, CA for West " +
		"Coast. You don't need to test packet loss, but results must be linked in your steam profile for the tournament"

	// timeLayout renders timestamps as "2015-06-01 12:00:00"
	timeLayout = "2006-01-02 15:04:05"

	defaultAuditCount = 10
)

func logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// register handles "lobbyreg <url>". The profile is verified before the store
// is written; the insert itself settles races between two registrations.
func (s *Service) register(ctx context.Context, req Request) Reply {
	if len(req.Args) == 0 {
		return s.answer("Usage: lobbyreg <Steam profile URL>")
	}

	_, err := s.store.Lookup(ctx, req.Nick)
	switch {
	case err == nil:
		return s.say(msgAlreadyRegistered)
	case !errors.Is(err, identity.ErrNotFound):
		logger(ctx).Error().Err(err).Msg("Registration lookup failed")
		return s.answer(msgDatabaseProblem)
	}

	profile, err := s.gateway.VerifyPublicProfile(ctx, req.Args[0])
	if err != nil {
		var httpErr *fetch.HTTPError
		if errors.Is(err, steam.ErrProfileNotFound) || errors.Is(err, steam.ErrForeignURL) || errors.As(err, &httpErr) {
			return s.answer(msgProfileNotFound)
		}
		logger(ctx).Warn().Err(err).Msg("Profile verification failed")
		return s.answer(msgSteamProblem)
	}
	if !profile.Public {
		return s.answer(msgProfileNotPublic)
	}

	if _, err := s.store.Register(ctx, req.Nick, profile.SteamID); err != nil {
		if errors.Is(err, identity.ErrAlreadyRegistered) {
			return s.say(msgAlreadyRegistered)
		}
		logger(ctx).Error().Err(err).Msg("Registration insert failed")
		return s.answer(msgDatabaseProblem)
	}

	logger(ctx).Info().Str("steam_id", profile.SteamID).Msg("Registered nickname")
	return s.say(fmt.Sprintf("%s registered successfully. Current Steam name: %s", req.Nick, profile.Name))
}

// lookup resolves nick to its record. On failure the returned reply is the
// answer to send.
func (s *Service) lookup(ctx context.Context, nick, notRegistered string) (*identity.Record, *Reply) {
	rec, err := s.store.Lookup(ctx, nick)
	if err == nil {
		return rec, nil
	}
	var r Reply
	if errors.Is(err, identity.ErrNotFound) || errors.Is(err, identity.ErrInvalidNickname) {
		r = s.answer(notRegistered)
	} else {
		logger(ctx).Error().Err(err).Str("target", nick).Msg("Lookup failed")
		r = s.answer(msgDatabaseProblem)
	}
	return nil, &r
}

// printName is "nick (Region: R)" with the Steam name added when it differs
func printName(nick, region, steamName string) string {
	name := nick + " (Region: " + region
	if steamName != nick {
		name += ", Steam: " + steamName
	}
	return name + ")"
}

// lobby handles "lobby [nick] [message]"
func (s *Service) lobby(ctx context.Context, req Request) Reply {
	nick := target(req)
	message := ""
	if rest := trailing(req); rest != "" {
		message = " - " + rest
	}

	rec, fail := s.lookup(ctx, nick, nick+" not registered. Use the .lobbyreg command to do so.")
	if fail != nil {
		return *fail
	}

	summary, err := s.gateway.FetchSummary(ctx, rec.SteamID)
	if err != nil {
		logger(ctx).Warn().Err(err).Str("steam_id", rec.SteamID).Msg("Summary fetch failed")
		return s.answer(msgSteamProblem)
	}
	region := s.regions.RegionFor(summary.CountryCode, summary.StateCode)
	name := printName(nick, region, summary.PersonaName)

	page, err := s.gateway.FetchProfileMarkup(ctx, rec.SteamID)
	if err != nil {
		logger(ctx).Warn().Err(err).Str("steam_id", rec.SteamID).Msg("Profile fetch failed")
		return s.answer(msgSteamProblem)
	}

	if s.flags.Tournament() {
		if _, ok := s.extractor.PingtestLink(page); !ok {
			return s.say(name + " does not have their pingtest set! Please read our tournament rules.")
		}
	}

	link, ok := s.extractor.LobbyLink(page)
	if !ok {
		return s.say(name + " does not appear to be in a lobby.")
	}

	short, err := s.shortener.Shorten(ctx, link)
	if err != nil {
		logger(ctx).Warn().Err(err).Msg("Shortening failed")
		return s.answer(msgTinyURLProblem)
	}

	reply := s.say(fmt.Sprintf("%s lobby: %s%s", name, short, message))

	// The link was produced; a failed counter update does not change that
	if err := s.store.RecordUsage(ctx, nick); err != nil {
		logger(ctx).Error().Err(err).Str("target", nick).Msg("Failed to record usage")
	}
	return reply
}

// delete handles "lobbydelete <nick>"
func (s *Service) delete(ctx context.Context, req Request) Reply {
	if len(req.Args) == 0 {
		return s.answer("Usage: lobbydelete <nickname>")
	}
	nick := req.Args[0]

	if !req.Privileged {
		logger(ctx).Warn().Str("operation", "delete").Str("target", nick).Msg("Unauthorized attempt")
		return s.answer(msgInsufficient)
	}

	err := s.store.Delete(ctx, nick)
	switch {
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, identity.ErrInvalidNickname):
		return s.answer(nick + " not found in database.")
	case err != nil:
		logger(ctx).Error().Err(err).Str("target", nick).Msg("Delete failed")
		return s.answer(msgDatabaseProblem)
	}

	logger(ctx).Info().Str("operation", "delete").Str("target", nick).Msg("Deleted registration")
	s.recordAudit(ctx, req, "deleted "+nick)
	return s.answer("Deleted " + nick + " from database.")
}

// profileStatus handles "steam [nick]"
func (s *Service) profileStatus(ctx context.Context, req Request) Reply {
	nick := target(req)
	rec, fail := s.lookup(ctx, nick, nick+" not registered.")
	if fail != nil {
		return *fail
	}

	summary, err := s.gateway.FetchSummary(ctx, rec.SteamID)
	if err != nil {
		logger(ctx).Warn().Err(err).Str("steam_id", rec.SteamID).Msg("Summary fetch failed")
		return s.answer(msgSteamProblem)
	}

	if summary.Online() {
		return s.say(fmt.Sprintf("Steam name: %s - Currently online - %s - SteamID: %s",
			summary.PersonaName, summary.ProfileURL, rec.SteamID))
	}
	return s.say(fmt.Sprintf("Steam name: %s - Last seen on Steam %s UTC - %s - SteamID: %s",
		summary.PersonaName, summary.LastSeen().Format(timeLayout), summary.ProfileURL, rec.SteamID))
}

// tournamentMode handles "tmode [on|off]". Mode replies always go to the
// channel.
func (s *Service) tournamentMode(ctx context.Context, req Request) Reply {
	if len(req.Args) == 0 {
		state := "OFF"
		if s.flags.Tournament() {
			state = "ON"
		}
		return Reply{Text: "Tournament Mode is " + state, PrefixNick: true}
	}

	var on bool
	switch strings.ToLower(req.Args[0]) {
	case "on":
		on = true
	case "off":
	default:
		return s.answer("Usage: tmode [on|off]")
	}

	if !req.Privileged {
		logger(ctx).Warn().Str("operation", "tmode").Msg("Unauthorized attempt")
		return s.answer(msgInsufficient)
	}

	s.flags.SetTournament(on)
	logger(ctx).Info().Str("operation", "tmode").Bool("tournament", on).Msg("Changed tournament mode")

	if on {
		s.recordAudit(ctx, req, "turned tournament mode on")
		return Reply{Text: "Turned Tournament Mode on.", PrefixNick: true}
	}
	s.recordAudit(ctx, req, "turned tournament mode off")
	return Reply{Text: "Turned Tournament Mode off.", PrefixNick: true}
}

// stats handles "lobbystats [nick]"
func (s *Service) stats(ctx context.Context, req Request) Reply {
	nick := target(req)
	used, createdAt, err := s.store.Stats(ctx, nick)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) || errors.Is(err, identity.ErrInvalidNickname) {
			return s.answer(nick + " not registered.")
		}
		logger(ctx).Error().Err(err).Str("target", nick).Msg("Stats failed")
		return s.answer(msgDatabaseProblem)
	}
	return s.say(fmt.Sprintf("%s: Registered at %s UTC - Lobby link generated %d times.",
		nick, createdAt.UTC().Format(timeLayout), used))
}

func (s *Service) versionInfo(ctx context.Context, req Request) Reply {
	return s.answer(s.version)
}

// pingtestStatus handles "pingtest [nick]". Without a nick it explains how to
// take the test.
func (s *Service) pingtestStatus(ctx context.Context, req Request) Reply {
	if len(req.Args) == 0 {
		return s.say(pingtestInstructions)
	}
	nick := req.Args[0]

	rec, fail := s.lookup(ctx, nick, nick+" not registered.")
	if fail != nil {
		return *fail
	}

	page, err := s.gateway.FetchProfileMarkup(ctx, rec.SteamID)
	if err != nil {
		logger(ctx).Warn().Err(err).Str("steam_id", rec.SteamID).Msg("Profile fetch failed")
		return s.answer(msgSteamProblem)
	}

	link, ok := s.extractor.PingtestLink(page)
	if !ok {
		return s.say(nick + " does not have their pingtest set! Use .pingtest for details.")
	}
	return s.say(fmt.Sprintf("%s pingtest results: %s", nick, link))
}

var helpLines = map[string]string{
	"lobbyreg":     "lobbyreg <Steam profile URL> - register your Steam profile",
	"lobby":        "lobby [nick] [message] - link to the lobby you or nick are in",
	"steam":        "steam [nick] - Steam name, status and profile",
	"lobbystats":   "lobbystats [nick] - registration time and lobby link count",
	"pingtest":     "pingtest [nick] - pingtest result, or how to take one",
	"tmode":        "tmode [on|off] - show or (operators) set tournament mode",
	"lobbydelete":  "lobbydelete <nick> - (operators) remove a registration",
	"lobbyaudit":   "lobbyaudit [n] - (operators) last n privileged actions",
	"lobbyversion": "lobbyversion - bot version",
	"lobbyhelp":    "lobbyhelp - this list",
}

// help handles "lobbyhelp". The list is always sent privately.
func (s *Service) help(ctx context.Context, req Request) Reply {
	names := make([]string, 0, len(helpLines))
	for name := range helpLines {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"Available commands:"}
	for _, name := range names {
		lines = append(lines, helpLines[name])
	}
	return Reply{Text: strings.Join(lines, "\n"), Private: true}
}

// auditTrail handles "lobbyaudit [n]"
func (s *Service) auditTrail(ctx context.Context, req Request) Reply {
	if !req.Privileged {
		logger(ctx).Warn().Str("operation", "audit").Msg("Unauthorized attempt")
		return s.answer(msgInsufficient)
	}
	if s.audit == nil {
		return Reply{Text: "Audit log is not enabled.", Private: true}
	}

	count := defaultAuditCount
	if len(req.Args) > 0 {
		if n, err := strconv.Atoi(req.Args[0]); err == nil && n > 0 {
			count = n
		}
	}

	entries := s.audit.Recent(count)
	if len(entries) == 0 {
		return Reply{Text: "No privileged actions recorded.", Private: true}
	}
	lines := append([]string{fmt.Sprintf("The last \x02%d\x02 privileged actions:", len(entries))}, entries...)
	return Reply{Text: strings.Join(lines, "\n"), Private: true}
}
