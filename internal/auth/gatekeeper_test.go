package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestPrivilegedByMask(t *testing.T) {
	g, err := New([]string{"*!*@staff.dal.net", "Break?It!~*@*"}, "")
	require.NoError(t, err)

	assert.True(t, g.Privileged("alice", "alice!alice@staff.dal.net"))
	assert.True(t, g.Privileged("alice", "ALICE!ident@STAFF.DAL.NET"))
	assert.True(t, g.Privileged("break_it", "break_it!~b@host.example"))
	assert.False(t, g.Privileged("bob", "bob!bob@evil.staff.dal.net.example"))
	assert.False(t, g.Privileged("bob", "bob!bob@home.example"))
}

func TestMaskMetacharactersAreLiteral(t *testing.T) {
	g, err := New([]string{"op!op@host.(example)"}, "")
	require.NoError(t, err)

	assert.True(t, g.Privileged("op", "op!op@host.(example)"))
	assert.False(t, g.Privileged("op", "op!op@hostx(example)"))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New([]string{"  "}, "")
	assert.Error(t, err)

	_, err = New(nil, "not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestLoginLogout(t *testing.T) {
	g, err := New(nil, testHash(t, "hunter2"))
	require.NoError(t, err)

	assert.False(t, g.Login("alice", "wrong"))
	assert.False(t, g.Privileged("alice", "alice!a@home"))

	assert.True(t, g.Login("Alice", "hunter2"))
	assert.True(t, g.Privileged("alice", "alice!a@home"))
	assert.False(t, g.Privileged("bob", "bob!b@home"))

	assert.True(t, g.Logout("ALICE"))
	assert.False(t, g.Privileged("alice", "alice!a@home"))
	assert.False(t, g.Logout("alice"))
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	g, err := New(nil, "")
	require.NoError(t, err)
	assert.False(t, g.Login("alice", ""))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	g, err := New(nil, hash)
	require.NoError(t, err)
	assert.True(t, g.Login("alice", "secret"))
}
