// Package auth decides which callers may run privileged commands.
//
// A caller is privileged when their hostmask matches one of the configured
// operator masks, or when they logged in with the admin password during the
// current session.
package auth

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Gatekeeper answers privilege checks and tracks admin sessions
type Gatekeeper struct {
	masks    []*regexp.Regexp
	passHash []byte

	mu     sync.RWMutex
	admins map[string]bool
}

// New creates a Gatekeeper. Masks use IRC glob syntax (* and ?) and are
// matched case-insensitively against nick!user@host. An empty hash disables
// password logins.
func New(operatorMasks []string, adminPassHash string) (*Gatekeeper, error) {
	g := &Gatekeeper{
		passHash: []byte(adminPassHash),
		admins:   make(map[string]bool),
	}
	for _, mask := range operatorMasks {
		re, err := compileMask(mask)
		if err != nil {
			return nil, fmt.Errorf("invalid operator mask %q: %w", mask, err)
		}
		g.masks = append(g.masks, re)
	}
	if adminPassHash != "" {
		if _, err := bcrypt.Cost(g.passHash); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
	}
	return g, nil
}

func compileMask(mask string) (*regexp.Regexp, error) {
	mask = strings.TrimSpace(mask)
	if mask == "" {
		return nil, fmt.Errorf("empty mask")
	}
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range mask {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Privileged reports whether the caller holds the operator capability
func (g *Gatekeeper) Privileged(nick, hostmask string) bool {
	for _, re := range g.masks {
		if re.MatchString(hostmask) {
			return true
		}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.admins[strings.ToLower(nick)]
}

// Login starts an admin session for nick if password matches
func (g *Gatekeeper) Login(nick, password string) bool {
	if len(g.passHash) == 0 {
		return false
	}
	if bcrypt.CompareHashAndPassword(g.passHash, []byte(password)) != nil {
		return false
	}

	g.mu.Lock()
	g.admins[strings.ToLower(nick)] = true
	g.mu.Unlock()
	return true
}

// Logout ends the admin session of nick and reports whether one existed
func (g *Gatekeeper) Logout(nick string) bool {
	key := strings.ToLower(nick)

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.admins[key] {
		return false
	}
	delete(g.admins, key)
	return true
}

// HashPassword returns the bcrypt hash to put in admin_pass_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
