package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error
)

// GetMongoURI returns a connection URI for a shared MongoDB container,
// starting it on first use. The test is skipped when no container runtime is
// available.
func GetMongoURI(t *testing.T) string {
	t.Helper()

	mongoOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		endpoint, err := startContainer(ctx, "mongo:7", "27017/tcp",
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("Waiting for connections"),
		)
		if err != nil {
			mongoErr = err
			return
		}
		mongoURI = fmt.Sprintf("mongodb://%s", endpoint)
	})

	skipOnError(t, "mongo", mongoErr)
	return mongoURI
}
