package main

import "testing"

func TestExitCodes_AreDistinct(t *testing.T) {
	codes := map[string]int{
		"ok":                exitOK,
		"invalid_args":      exitInvalidArgs,
		"upstream_failure":  exitUpstreamFailure,
		"validation_failed": exitValidationFailed,
		"state_mismatch":    exitStateMismatch,
		"queue_full":        exitQueueFull,
	}
	seen := map[int]string{}
	for name, code := range codes {
		if other, ok := seen[code]; ok {
			t.Fatalf("exit code %d used by both %q and %q", code, other, name)
		}
		seen[code] = name
	}
}
