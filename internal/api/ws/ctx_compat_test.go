package ws_test

import (
	"context"
	"testing"
)

// testContext mirrors (*testing.T).Context for toolchains before Go 1.24.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
