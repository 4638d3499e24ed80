package checker

import (
	"strings"
	"testing"

	"github.com/vigilohq/vigilo/app/models"
)

func TestShouldNotify(t *testing.T) {
	cases := []struct {
		name     string
		previous string
		next     string
		want     bool
	}{
		{"up to down", models.MonitorStatusUp, models.MonitorStatusDown, true},
		{"down to up", models.MonitorStatusDown, models.MonitorStatusUp, true},
		{"no change up", models.MonitorStatusUp, models.MonitorStatusUp, false},
		{"no change down", models.MonitorStatusDown, models.MonitorStatusDown, false},
		{"first check healthy", models.MonitorStatusPending, models.MonitorStatusUp, false},
		{"first check broken", models.MonitorStatusPending, models.MonitorStatusDown, true},
		{"resume to up", models.MonitorStatusPaused, models.MonitorStatusUp, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldNotify(tc.previous, tc.next); got != tc.want {
				t.Fatalf("ShouldNotify(%q, %q) = %v, want %v", tc.previous, tc.next, got, tc.want)
			}
		})
	}
}

func TestTransitionMessageDown(t *testing.T) {
	monitor := &models.Monitor{
		Name:           "API",
		URL:            "https://api.example.com/health",
		Status:         models.MonitorStatusDown,
		LastStatusCode: 503,
	}

	msg := TransitionMessage(monitor, models.MonitorStatusUp)
	if !strings.Contains(msg, "HTTP 503") {
		t.Fatalf("expected status code in message, got %q", msg)
	}
	if !strings.Contains(msg, "API") || !strings.Contains(msg, monitor.URL) {
		t.Fatalf("expected monitor identity in message, got %q", msg)
	}
}

func TestTransitionMessageDownWithoutStatusCode(t *testing.T) {
	monitor := &models.Monitor{
		Name:   "API",
		URL:    "https://api.example.com/health",
		Status: models.MonitorStatusDown,
	}

	msg := TransitionMessage(monitor, models.MonitorStatusUp)
	if !strings.Contains(msg, "connection failed") {
		t.Fatalf("expected connection failure wording, got %q", msg)
	}
}

func TestTransitionSubjectRecovered(t *testing.T) {
	monitor := &models.Monitor{Name: "API", Status: models.MonitorStatusUp}
	if got := TransitionSubject(monitor); !strings.HasPrefix(got, "RESOLVED:") {
		t.Fatalf("expected RESOLVED subject, got %q", got)
	}

	monitor.Status = models.MonitorStatusDown
	if got := TransitionSubject(monitor); !strings.HasPrefix(got, "ALERT:") {
		t.Fatalf("expected ALERT subject, got %q", got)
	}
}
