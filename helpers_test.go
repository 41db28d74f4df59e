package trustedproxy

import (
	"context"
	"testing"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()

	return &Guard{
		conf:   CreateConfig(),
		name:   "test",
		logger: NewPluginLogger(context.Background(), "test", LogLevelDebug),
	}
}
