package harness

import (
	"context"
	"testing"
)

// RunT runs each case as a subtest of t. A gated-off suite is skipped.
func RunT(t *testing.T, suite *Suite) {
	t.Helper()
	if suite.Skipped() {
		t.Skipf("%s: %s", suite.Name, suite.Gate.Reason)
		return
	}

	runner := NewRunner(&RunnerConfig{})
	for _, c := range suite.Cases() {
		t.Run(c.Name, func(t *testing.T) {
			res := runner.runCase(context.Background(), c)
			if res.Err != nil {
				t.Fatal(res.Err)
			}
		})
	}
}
