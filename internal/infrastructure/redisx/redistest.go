//go:build testutil

package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartRedis starts a redis container and returns a connected client.
func StartRedis() (client *redis.Client, cleanup func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to start redis container: %v", err))
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background()) //nolint:errcheck
		panic(fmt.Sprintf("get container host: %v", err))
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = container.Terminate(context.Background()) //nolint:errcheck
		panic(fmt.Sprintf("get mapped port: %v", err))
	}

	client, err = New(ctx, Config{URL: fmt.Sprintf("redis://%s:%s/0", host, port.Port())})
	if err != nil {
		_ = container.Terminate(context.Background()) //nolint:errcheck
		panic(fmt.Sprintf("connect redis: %v", err))
	}

	cleanup = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = client.Close()            //nolint:errcheck
		_ = container.Terminate(ctx) //nolint:errcheck
	}

	return client, cleanup
}
