//go:build integration
// +build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

// restartStorefrontContainer bounces the app while leaving its storage
// container running.
func restartStorefrontContainer(t *testing.T, ctx context.Context) {
	t.Helper()

	svc := getenv("E2E_SERVICE", "storefront")
	cmd := exec.CommandContext(ctx, "docker", "compose", "restart", svc)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart %s failed: %v\n%s", svc, err, string(out))
	}
}
