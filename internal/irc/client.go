package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/rs/zerolog/log"

	"github.com/dalnet/lobbybot/internal/config"
	"github.com/dalnet/lobbybot/internal/lobby"
)

// Dispatcher runs a parsed command
type Dispatcher interface {
	Handle(ctx context.Context, command string, req lobby.Request) (lobby.Reply, bool)
}

// Permissions decides who may run privileged commands
type Permissions interface {
	Privileged(nick, hostmask string) bool
	Login(nick, password string) bool
	Logout(nick string) bool
}

// Auditor records privileged actions
type Auditor interface {
	Record(hostmask, action string) error
}

// sender is the part of the connection commands write to
type sender interface {
	Privmsg(target, message string) error
	Send(command string, params ...string) error
	SendRaw(message string) error
	CurrentNick() string
	SetNick(nick string)
	Join(channel string) error
}

// defaultWhoisWait bounds how long a held command waits for the end of a WHOIS
const defaultWhoisWait = 10 * time.Second

// Options configures a Client
type Options struct {
	IRC        config.IRCConfig
	Timeout    time.Duration
	Version    string
	Dispatcher Dispatcher
	Perms      Permissions
	Audit      Auditor
}

// Client represents the IRC bot client
type Client struct {
	conn       *ircevent.Connection
	out        sender
	cfg        config.IRCConfig
	timeout    time.Duration
	version    string
	dispatcher Dispatcher
	perms      Permissions
	audit      Auditor

	ctx    context.Context
	cancel context.CancelFunc
	// stopMu orders wg.Add in dispatch against the wait in Quit
	stopMu sync.Mutex
	wg     sync.WaitGroup

	// whoisWait is how long a held command waits before running unprivileged
	whoisWait time.Duration

	mu sync.RWMutex
	// Oper tracking: hostmask -> is IRC operator
	opers map[string]bool
	// Privileged commands waiting for a WHOIS answer, by lowercased nick
	pendingWhois map[string][]invocation
}

// invocation is one command as received from IRC
type invocation struct {
	channel string // empty for private messages
	command string
	req     lobby.Request
}

// NewClient creates a new IRC client
func NewClient(opts Options) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:          opts.IRC,
		timeout:      opts.Timeout,
		version:      opts.Version,
		dispatcher:   opts.Dispatcher,
		perms:        opts.Perms,
		audit:        opts.Audit,
		ctx:          ctx,
		cancel:       cancel,
		opers:        make(map[string]bool),
		pendingWhois: make(map[string][]invocation),
		whoisWait:    defaultWhoisWait,
	}
	if c.timeout <= 0 {
		c.timeout = 20 * time.Second
	}

	c.conn = &ircevent.Connection{
		Server:      opts.IRC.Addr(),
		Nick:        opts.IRC.Nick,
		User:        opts.IRC.Username,
		RealName:    opts.IRC.RealName,
		Password:    opts.IRC.ServerPass,
		QuitMessage: "Shutting down",
		UseTLS:      opts.IRC.UseTLS,
		TLSConfig:   &tls.Config{ServerName: opts.IRC.Server},

		// Replies are split to fit; anything still too long is cut, not dropped
		AllowTruncation: true,
	}
	c.out = c.conn

	c.registerHandlers()
	return c
}

func (c *Client) registerHandlers() {
	// Connected (end of MOTD)
	c.conn.AddCallback("376", c.onConnect)
	c.conn.AddCallback("422", c.onConnect) // MOTD missing is also "connected"

	c.conn.AddCallback("PRIVMSG", c.onPrivMsg)

	// WHOIS responses
	c.conn.AddCallback("313", c.onWhoisOper) // RPL_WHOISOPERATOR
	c.conn.AddCallback("318", c.onWhoisEnd)  // RPL_ENDOFWHOIS

	// Nick issues
	c.conn.AddCallback("432", c.onNickHeld)  // ERR_ERRONEUSNICKNAME
	c.conn.AddCallback("433", c.onNickInUse) // ERR_NICKNAMEINUSE

	// WATCH logout notification
	c.conn.AddCallback("601", c.onWatchLogout) // RPL_LOGOFF

	c.conn.AddCallback("CTCP_VERSION", c.onCtcpVersion)
}

// Connect initiates the IRC connection
func (c *Client) Connect() error {
	return c.conn.Connect()
}

// Loop runs the IRC event loop (blocking)
func (c *Client) Loop() {
	c.conn.Loop()
}

// Quit cancels running commands, waits up to grace for them and disconnects
func (c *Client) Quit(grace time.Duration) {
	c.stopMu.Lock()
	c.cancel()
	c.stopMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		log.Warn().Msg("Commands still running at shutdown")
	}

	c.conn.Quit()
}

func (c *Client) onConnect(e ircmsg.Message) {
	log.Info().Str("server", c.cfg.Addr()).Msg("Connected to IRC server")

	if c.cfg.NickPass != "" {
		c.out.Privmsg("NickServ", fmt.Sprintf("IDENTIFY %s %s", c.cfg.Nick, c.cfg.NickPass))
	}

	for _, channel := range c.cfg.Channels {
		if err := c.out.Join(channel); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Failed to join channel")
		}
	}
}

func (c *Client) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}

	target := e.Params[0]
	message := e.Params[1]
	nick := e.Nick()
	nuh, err := e.NUH()
	if err != nil {
		return
	}
	hostmask := nuh.Canonical()

	private := strings.EqualFold(target, c.out.CurrentNick())
	command, args, rest, ok := parseCommand(c.cfg.Prefix, message, private)
	if !ok {
		return
	}

	inv := invocation{
		command: command,
		req:     lobby.Request{Nick: nick, Hostmask: hostmask, Args: args, Text: rest},
	}
	if !private {
		inv.channel = target
	}

	switch command {
	case "login":
		c.cmdLogin(inv)
		return
	case "logout":
		c.cmdLogout(inv)
		return
	}

	inv.req.Privileged = c.isPrivileged(nick, hostmask)
	if !inv.req.Privileged && needsPrivilege(command, args) {
		// Ask the server whether the caller is an IRC operator first
		key := strings.ToLower(nick)
		c.mu.Lock()
		first := len(c.pendingWhois[key]) == 0
		c.pendingWhois[key] = append(c.pendingWhois[key], inv)
		c.mu.Unlock()
		if first {
			// Servers may never end the WHOIS (RPL_TRYAGAIN); run anyway
			time.AfterFunc(c.whoisWait, func() { c.releaseHeld(key, true) })
		}
		c.out.Send("WHOIS", nick)
		return
	}

	c.dispatch(inv)
}

func (c *Client) isPrivileged(nick, hostmask string) bool {
	c.mu.RLock()
	oper := c.opers[hostmask]
	c.mu.RUnlock()
	return oper || (c.perms != nil && c.perms.Privileged(nick, hostmask))
}

func (c *Client) onWhoisOper(e ircmsg.Message) {
	// 313 <me> <nick> :is an IRC operator
	if len(e.Params) < 2 {
		return
	}
	key := strings.ToLower(e.Params[1])

	c.mu.Lock()
	for _, p := range c.pendingWhois[key] {
		c.opers[p.req.Hostmask] = true
	}
	c.mu.Unlock()
}

func (c *Client) onWhoisEnd(e ircmsg.Message) {
	// 318 <me> <nick> :End of /WHOIS list
	if len(e.Params) < 2 {
		return
	}
	c.releaseHeld(strings.ToLower(e.Params[1]), false)
}

// releaseHeld runs the commands waiting on the WHOIS of key
func (c *Client) releaseHeld(key string, expired bool) {
	c.mu.Lock()
	pending := c.pendingWhois[key]
	delete(c.pendingWhois, key)
	c.mu.Unlock()

	if expired && len(pending) > 0 {
		log.Warn().Str("nick", key).Msg("WHOIS did not finish, running held commands")
	}
	for _, p := range pending {
		p.req.Privileged = c.isPrivileged(p.req.Nick, p.req.Hostmask)
		c.dispatch(p)
	}
}

// dispatch runs a command on its own goroutine so slow upstream calls never
// block the connection.
func (c *Client) dispatch(inv invocation) {
	c.stopMu.Lock()
	if c.ctx.Err() != nil {
		c.stopMu.Unlock()
		return
	}
	c.wg.Add(1)
	c.stopMu.Unlock()
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()

		logger := log.With().
			Str("request_id", newRequestID()).
			Str("cmd", inv.command).
			Str("nick", inv.req.Nick).
			Logger()
		ctx = logger.WithContext(ctx)

		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("Command panicked")
			}
		}()

		start := time.Now()
		reply, ok := c.dispatcher.Handle(ctx, inv.command, inv.req)
		if !ok {
			return
		}
		for _, m := range outgoing(inv.channel, inv.req.Nick, reply) {
			if err := c.out.Privmsg(m.target, m.text); err != nil {
				logger.Warn().Err(err).Msg("Failed to send reply")
			}
		}
		logger.Info().
			Bool("privileged", inv.req.Privileged).
			Dur("duration", time.Since(start)).
			Msg("Command handled")
	}()
}

func (c *Client) cmdLogin(inv invocation) {
	nick, hostmask := inv.req.Nick, inv.req.Hostmask
	if inv.channel != "" {
		c.out.Privmsg(nick, "Please log in with a private message")
		return
	}
	if len(inv.req.Args) < 1 {
		c.out.Privmsg(nick, "Usage: login <password>")
		return
	}

	if c.perms != nil && c.perms.Login(nick, inv.req.Args[0]) {
		c.out.SendRaw(fmt.Sprintf("WATCH +%s", nick))
		c.out.Privmsg(nick, "Password accepted, you are now an admin. Type "+c.cfg.Prefix+"lobbyhelp for a list of commands")
		c.logAction(hostmask, "successful login")
	} else {
		c.out.Privmsg(nick, "Password incorrect")
		c.logAction(hostmask, "INCORRECT LOGIN ATTEMPT")
	}
}

func (c *Client) cmdLogout(inv invocation) {
	nick, hostmask := inv.req.Nick, inv.req.Hostmask
	if inv.channel != "" {
		return
	}

	if c.perms != nil && c.perms.Logout(nick) {
		c.out.SendRaw(fmt.Sprintf("WATCH -%s", nick))
		c.out.Privmsg(nick, "You have been logged out")
		c.logAction(hostmask, "logged out")
	} else {
		c.out.Privmsg(nick, "You're not logged in!")
	}
}

func (c *Client) onNickHeld(e ircmsg.Message) {
	c.recoverNick("RELEASE", "Nick is held, switching to alternate")
}

func (c *Client) onNickInUse(e ircmsg.Message) {
	c.recoverNick("GHOST", "Nick in use, switching to alternate")
}

// recoverNick moves to the alternate nick and later asks NickServ to free
// the configured one.
func (c *Client) recoverNick(verb, reason string) {
	if c.cfg.Alternate == "" || c.out.CurrentNick() == c.cfg.Alternate {
		return
	}
	log.Warn().Str("alternate", c.cfg.Alternate).Msg(reason)
	c.out.SetNick(c.cfg.Alternate)

	if c.cfg.NickPass == "" {
		return
	}
	go func() {
		select {
		case <-time.After(15 * time.Second):
		case <-c.ctx.Done():
			return
		}
		c.out.Privmsg("NickServ", fmt.Sprintf("%s %s %s", verb, c.cfg.Nick, c.cfg.NickPass))
		time.Sleep(2 * time.Second)
		c.out.SetNick(c.cfg.Nick)
	}()
}

func (c *Client) onWatchLogout(e ircmsg.Message) {
	// 601 <me> <nick> <user> <host> <timestamp> :logged out
	if len(e.Params) < 2 {
		return
	}
	nick := e.Params[1]

	if c.perms != nil && c.perms.Logout(nick) {
		log.Info().Str("nick", nick).Msg("Admin session ended by logoff")
	}
	c.out.SendRaw(fmt.Sprintf("WATCH -%s", nick))
}

func (c *Client) onCtcpVersion(e ircmsg.Message) {
	nick := e.Nick()
	c.out.SendRaw(fmt.Sprintf("NOTICE %s :\x01VERSION lobbybot %s\x01", nick, c.version))
}

func (c *Client) logAction(hostmask, action string) {
	log.Info().Str("hostmask", hostmask).Str("operation", action).Msg("Admin session")
	if c.audit == nil {
		return
	}
	if err := c.audit.Record(hostmask, action); err != nil {
		log.Warn().Err(err).Msg("Failed to write audit entry")
	}
}
