// Package identitytest holds the conformance suite every identity.Store
// backend runs in its own tests.
package identitytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/identity"
)

// Epoch is the time the suite's clock is set to
var Epoch = time.Date(2015, time.June, 1, 12, 0, 0, 0, time.UTC)

// StoreSuite exercises the identity.Store contract
type StoreSuite struct {
	suite.Suite

	// NewStore returns a fresh, empty store using clk
	NewStore func(clk clock.Clock) identity.Store

	store identity.Store
	clock *clock.Mock
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.clock = clock.NewMock(Epoch)
	s.store = s.NewStore(s.clock)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *StoreSuite) TestRegisterStartsAtZero() {
	rec, err := s.store.Register(s.ctx, "alice", "76561197960287930")
	s.Require().NoError(err)
	s.Equal("alice", rec.Nickname)
	s.Equal("76561197960287930", rec.SteamID)
	s.Equal(int64(0), rec.Used)
	s.True(rec.CreatedAt.Equal(Epoch))
}

func (s *StoreSuite) TestLookupIsCaseInsensitive() {
	_, err := s.store.Register(s.ctx, "Foo", "1")
	s.Require().NoError(err)

	rec, err := s.store.Lookup(s.ctx, "foo")
	s.Require().NoError(err)
	s.Equal("foo", rec.Nickname)
	s.Equal("1", rec.SteamID)

	rec, err = s.store.Lookup(s.ctx, "FOO")
	s.Require().NoError(err)
	s.Equal("1", rec.SteamID)
}

func (s *StoreSuite) TestRegisterDuplicateDifferentCase() {
	_, err := s.store.Register(s.ctx, "Foo", "1")
	s.Require().NoError(err)

	_, err = s.store.Register(s.ctx, "foo", "2")
	s.ErrorIs(err, identity.ErrAlreadyRegistered)

	rec, err := s.store.Lookup(s.ctx, "foo")
	s.Require().NoError(err)
	s.Equal("1", rec.SteamID, "steam id must not change on duplicate registration")
}

func (s *StoreSuite) TestLookupNotFound() {
	_, err := s.store.Lookup(s.ctx, "nobody")
	s.ErrorIs(err, identity.ErrNotFound)
}

func (s *StoreSuite) TestInvalidNickname() {
	_, err := s.store.Register(s.ctx, "  ", "1")
	s.ErrorIs(err, identity.ErrInvalidNickname)

	_, err = s.store.Lookup(s.ctx, "")
	s.ErrorIs(err, identity.ErrInvalidNickname)
}

func (s *StoreSuite) TestDeleteThenLookup() {
	_, err := s.store.Register(s.ctx, "alice", "1")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(s.ctx, "ALICE"))

	_, err = s.store.Lookup(s.ctx, "alice")
	s.ErrorIs(err, identity.ErrNotFound)

	err = s.store.Delete(s.ctx, "alice")
	s.ErrorIs(err, identity.ErrNotFound)
}

func (s *StoreSuite) TestDeleteAllowsFreshRegistration() {
	_, err := s.store.Register(s.ctx, "alice", "1")
	s.Require().NoError(err)
	s.Require().NoError(s.store.RecordUsage(s.ctx, "alice"))
	s.Require().NoError(s.store.Delete(s.ctx, "alice"))

	s.clock.Advance(time.Hour)
	rec, err := s.store.Register(s.ctx, "alice", "2")
	s.Require().NoError(err)
	s.Equal("2", rec.SteamID)
	s.Equal(int64(0), rec.Used)
	s.True(rec.CreatedAt.Equal(Epoch.Add(time.Hour)))
}

func (s *StoreSuite) TestRecordUsageMissingCreatesNothing() {
	err := s.store.RecordUsage(s.ctx, "ghost")
	s.ErrorIs(err, identity.ErrNotFound)

	_, err = s.store.Lookup(s.ctx, "ghost")
	s.ErrorIs(err, identity.ErrNotFound)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *StoreSuite) TestRecordUsageCounts() {
	_, err := s.store.Register(s.ctx, "alice", "1")
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.RecordUsage(s.ctx, "Alice"))
	}

	used, createdAt, err := s.store.Stats(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(5), used)
	s.True(createdAt.Equal(Epoch))
}

func (s *StoreSuite) TestStatsNotFound() {
	_, _, err := s.store.Stats(s.ctx, "nobody")
	s.ErrorIs(err, identity.ErrNotFound)
}

func (s *StoreSuite) TestCount() {
	for i, nick := range []string{"a", "b", "c"} {
		_, err := s.store.Register(s.ctx, nick, fmt.Sprint(i))
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Delete(s.ctx, "b"))

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *StoreSuite) TestConcurrentRegisterHasOneWinner() {
	const workers = 8

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Register(s.ctx, "Racer", fmt.Sprint(i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, identity.ErrAlreadyRegistered)
	}
	s.Equal(1, wins)
}

func (s *StoreSuite) TestConcurrentRecordUsage() {
	const workers = 10

	_, err := s.store.Register(s.ctx, "alice", "1")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.RecordUsage(s.ctx, "alice"))
		}()
	}
	wg.Wait()

	used, _, err := s.store.Stats(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(workers), used)
}
