package security

import (
	"testing"
	"time"
)

func TestBuildReportLimiterActivation(t *testing.T) {
	cases := []struct {
		name     string
		in       ReportInput
		lockout  bool
		throttle bool
	}{
		{"none", ReportInput{}, false, false},
		{"lockout", ReportInput{LockoutThreshold: 5, LockoutDuration: time.Minute}, true, false},
		{"lockout without duration", ReportInput{LockoutThreshold: 5}, false, false},
		{"throttle", ReportInput{EnableIPThrottle: true, MaxLoginAttemptsPerIP: 10, IPThrottleWindow: time.Minute}, false, true},
		{"throttle disabled", ReportInput{MaxLoginAttemptsPerIP: 10, IPThrottleWindow: time.Minute}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := BuildReport(tc.in)
			if r.LockoutActive != tc.lockout || r.IPThrottleActive != tc.throttle {
				t.Fatalf("lockout=%v throttle=%v", r.LockoutActive, r.IPThrottleActive)
			}
		})
	}
}
