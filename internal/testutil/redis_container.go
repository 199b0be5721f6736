package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// GetRedisAddress returns host:port of a shared Redis container, starting it
// on first use. The test is skipped when no container runtime is available.
func GetRedisAddress(t *testing.T) string {
	t.Helper()

	redisOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		redisAddr, redisErr = startContainer(ctx, "redis:7", "6379/tcp",
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		)
	})

	skipOnError(t, "redis", redisErr)
	return redisAddr
}

func startContainer(ctx context.Context, image, port string, strategies ...wait.Strategy) (string, error) {
	return startContainerWithEnv(ctx, image, port, nil, strategies...)
}

func startContainerWithEnv(ctx context.Context, image, port string, env map[string]string, strategies ...wait.Strategy) (string, error) {
	opts := []testcontainers.ContainerCustomizer{
		testcontainers.WithExposedPorts(port),
		testcontainers.WithWaitStrategy(wait.ForAll(strategies...).WithDeadline(2 * time.Minute)),
	}
	if len(env) > 0 {
		opts = append(opts, testcontainers.WithEnv(env))
	}

	c, err := runContainer(ctx, image, opts...)
	if err != nil {
		return "", err
	}

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		_ = c.Terminate(context.Background()) // best-effort cleanup
		return "", err
	}
	return endpoint, nil
}

// runContainer guards against panics from testcontainers when no Docker
// daemon can be found.
func runContainer(ctx context.Context, image string, opts ...testcontainers.ContainerCustomizer) (c testcontainers.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start %s: %v", image, r)
		}
	}()
	return testcontainers.Run(ctx, image, opts...)
}

func skipOnError(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Skipf("%s container unavailable: %v", name, err)
	}
}
