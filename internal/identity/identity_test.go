package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"ALICE", "alice"},
		{"  Break_It ", "break_it"},
		{"[Guest]", "[guest]"},
	}
	for _, tt := range tests {
		got, err := Fold(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Fold(%q)", tt.in)
	}
}

func TestFoldRejectsEmpty(t *testing.T) {
	for _, in := range []string{"", " ", "\t"} {
		_, err := Fold(in)
		assert.ErrorIs(t, err, ErrInvalidNickname, "Fold(%q)", in)
	}
}

// TestFoldIgnoresASCIICaseProperty checks nicknames differing only in ASCII
// letter case fold to the same key.
func TestFoldIgnoresASCIICaseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nick := rapid.StringMatching(`[A-Za-z][A-Za-z0-9_\-\[\]]{0,15}`).Draw(t, "nick")

		lower, err := Fold(strings.ToLower(nick))
		require.NoError(t, err)
		upper, err := Fold(strings.ToUpper(nick))
		require.NoError(t, err)
		mixed, err := Fold(nick)
		require.NoError(t, err)

		require.Equal(t, lower, upper)
		require.Equal(t, lower, mixed)
	})
}
