package irc

// This file contains documentation for the IRC event handlers.
// The actual handler implementations are split across:
// - client.go: Connection lifecycle, WHOIS, admin sessions, dispatch
// - parse.go: Command parsing and reply routing

/*
Handler Summary:

Connection Events:
- 376/422 (onConnect): End of MOTD / MOTD missing - bot is connected
  - Identifies to NickServ
  - Joins the configured channels

Messages:
- PRIVMSG (onPrivMsg): channel and private messages
  - Channel lines need the command prefix, private lines may omit it
  - login/logout are answered directly and only in private
  - Privileged commands from callers without a known privilege trigger a
    WHOIS check; the command runs once the WHOIS ends
  - Everything else is dispatched on its own goroutine with a timeout,
    a request id and a logger in its context

WHOIS Responses:
- 313 (onWhoisOper): RPL_WHOISOPERATOR - caller is an IRC operator
  - Caches oper status by hostmask
- 318 (onWhoisEnd): RPL_ENDOFWHOIS
  - Dispatches the pending commands of that nick

Nick Issues:
- 432 (onNickHeld): ERR_ERRONEUSNICKNAME - Nick is held
  - Switches to alternate nick
  - Schedules RELEASE and nick change
- 433 (onNickInUse): ERR_NICKNAMEINUSE - Nick in use
  - Switches to alternate nick
  - Schedules GHOST and nick change

Admin Session:
- 601 (onWatchLogout): RPL_LOGOFF - WATCH notification
  - Ends the admin session of a nick that quit

CTCP:
- CTCP_VERSION: Responds with bot version information
*/
