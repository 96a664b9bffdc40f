//go:build integration

package board

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return redisURL, cleanup
}

// TestStore_ConcurrentClientsAgainstRealRedis runs the Lua primitives on a real server
// with many clients adding and removing at once.
func TestStore_ConcurrentClientsAgainstRealRedis(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	const clients = 8
	const perClient = 20

	stores := make([]*Client, clients)
	for i := range stores {
		stores[i], err = NewClient(opts, fmt.Sprintf("client-%d", i))
		require.NoError(t, err)
		defer stores[i].Close()
	}

	_, err = stores[0].ProvisionBoard(ctx, "it")
	require.NoError(t, err)

	sub, err := stores[0].SubscribeEvents(ctx, "it")
	require.NoError(t, err)
	defer sub.Close()

	var wg sync.WaitGroup
	for i, s := range stores {
		wg.Add(1)
		go func(i int, s *Client) {
			defer wg.Done()
			for j := 0; j < perClient; j++ {
				card := Card{ID: fmt.Sprintf("c-%d-%d", i, j), Title: "card"}
				assert.NoError(t, s.AddCard(ctx, "it", ColumnIdea, card))
				// every odd card is removed again, twice
				if j%2 == 1 {
					assert.NoError(t, s.RemoveCard(ctx, "it", ColumnIdea, card))
					assert.NoError(t, s.RemoveCard(ctx, "it", ColumnIdea, card))
				}
			}
		}(i, s)
	}
	wg.Wait()

	b, err := stores[0].GetBoard(ctx, "it")
	require.NoError(t, err)
	assert.Len(t, b.Column(ColumnIdea).Cards, clients*perClient/2)
	assert.NoError(t, b.Validate())

	select {
	case event := <-sub.Events():
		assert.Equal(t, Scope("it"), event.Scope)
	case <-time.After(5 * time.Second):
		t.Fatal("no board events received")
	}
}
