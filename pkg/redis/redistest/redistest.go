// Package redistest starts an in-process Redis for tests.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/curiomarket/curio-backend/pkg/redis"
)

// New returns a client bound to a fresh miniredis server.
func New(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return redis.NewFromClient(raw), srv
}
