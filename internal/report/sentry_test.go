package report_test

import (
	"os"
	"testing"

	"seatwatch.gbus.kr/internal/report"
)

func TestSetupSentry(t *testing.T) {
	t.Run("Valid DSN", func(t *testing.T) {
		os.Setenv("SENTRY_DSN", "https://public@sentry.example.com/1")
		defer os.Unsetenv("SENTRY_DSN")

		report.SetupSentry()
		report.FlushSentry()
	})
}

func TestReportErrorNil(t *testing.T) {
	// Reporting a nil error must be a no-op.
	report.ReportError(nil)
	report.ReportErrorWithSentryOptions(nil, report.SentryReportOptions{})
}

func TestMakeMap(t *testing.T) {
	m := report.MakeMap("route_id", "204000046")
	if len(m) != 1 || m["route_id"] != "204000046" {
		t.Errorf("unexpected map: %v", m)
	}
}
