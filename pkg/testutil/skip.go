// Package testutil holds helpers shared by container backed tests.
package testutil

import (
	"os"
	"strconv"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// IntegrationEnv opts in to container tests on CI runners.
const IntegrationEnv = "INTEGRATION_TESTS"

// RequireIntegration skips t unless a container runtime is reachable. Short
// runs always skip, and so do CI runs that did not set IntegrationEnv.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("container test skipped in short mode")
	}
	if _, ci := os.LookupEnv("CI"); ci {
		if on, _ := strconv.ParseBool(os.Getenv(IntegrationEnv)); !on {
			t.Skipf("container test skipped on CI, set %s=true to run it", IntegrationEnv)
		}
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
