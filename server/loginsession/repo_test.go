package loginsession_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repos(t *testing.T) map[string]func(t *testing.T) (loginsession.Repo, func(time.Duration)) {
	return map[string]func(t *testing.T) (loginsession.Repo, func(time.Duration)){
		"memory": func(t *testing.T) (loginsession.Repo, func(time.Duration)) {
			return loginsession.NewInMemoryLoginSessionRepo(), func(d time.Duration) { time.Sleep(d) }
		},
		"redis": func(t *testing.T) (loginsession.Repo, func(time.Duration)) {
			mr := miniredis.RunT(t)
			cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = cli.Close() })
			return loginsession.NewRedisLoginSessionRepo(cli, time.Second), mr.FastForward
		},
	}
}

func TestRepoContract(t *testing.T) {
	for name, factory := range repos(t) {
		t.Run(name, func(t *testing.T) {
			repo, advance := factory(t)
			session := loginsession.Session{
				UserID:    "1",
				Username:  "alice",
				Role:      "customer",
				CreatedAt: time.Now().UTC().Truncate(time.Second),
				ExpiresAt: time.Now().Add(200 * time.Millisecond).UTC().Truncate(time.Millisecond),
			}

			_, err := repo.Get("jti-1")
			assert.ErrorIs(t, err, loginsession.ErrNotFound)

			require.NoError(t, repo.Upsert("jti-1", session))
			got, err := repo.Get("jti-1")
			require.NoError(t, err)
			assert.Equal(t, session.Username, got.Username)
			assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))

			require.NoError(t, repo.Delete("jti-1"))
			require.NoError(t, repo.Delete("jti-1"))
			_, err = repo.Get("jti-1")
			assert.ErrorIs(t, err, loginsession.ErrNotFound)

			require.NoError(t, repo.Upsert("jti-2", session))
			advance(300 * time.Millisecond)
			_, err = repo.Get("jti-2")
			assert.ErrorIs(t, err, loginsession.ErrNotFound)

			assert.Error(t, repo.Upsert("", session))
		})
	}
}

func freezeTime(t *testing.T, now time.Time) {
	t.Helper()
	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = prev })
}

func TestRepoFollowsTokenClock(t *testing.T) {
	issuedAt := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)

	for name, factory := range repos(t) {
		t.Run(name, func(t *testing.T) {
			freezeTime(t, issuedAt)
			repo, _ := factory(t)

			session := loginsession.Session{UserID: "1", CreatedAt: issuedAt, ExpiresAt: issuedAt.Add(time.Hour)}
			require.NoError(t, repo.Upsert("jti-frozen", session))
			_, err := repo.Get("jti-frozen")
			require.NoError(t, err)

			freezeTime(t, issuedAt.Add(2*time.Hour))
			assert.Error(t, repo.Upsert("jti-late", session))
		})
	}

	t.Run("memory expiry", func(t *testing.T) {
		freezeTime(t, issuedAt)
		repo := loginsession.NewInMemoryLoginSessionRepo()
		require.NoError(t, repo.Upsert("jti-frozen", loginsession.Session{UserID: "1", ExpiresAt: issuedAt.Add(time.Hour)}))

		freezeTime(t, issuedAt.Add(2*time.Hour))
		_, err := repo.Get("jti-frozen")
		assert.ErrorIs(t, err, loginsession.ErrNotFound)
	})
}
