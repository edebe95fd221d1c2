package repository_test

import (
	"os"
	"testing"

	"github.com/m-mizutani/ditto/pkg/repository"
	"github.com/redis/go-redis/v9"
)

func TestRedis(t *testing.T) {
	addr, ok := os.LookupEnv("TEST_REDIS_ADDR")
	if !ok {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	testHistoryStore(t, repository.NewRedis(client))
}
