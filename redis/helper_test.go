package redis_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	gredis "github.com/kvqueue/jobqueue/redis"
)

func newTestClient(t *testing.T) *gredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return gredis.NewClient(gredis.Options{Addr: mr.Addr()}, nil)
}
