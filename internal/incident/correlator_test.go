package incident

import (
	"errors"
	"testing"
	"time"

	"github.com/plainview-io/plainview/pkg/models"
)

func testAlert(id, severity, message string) models.Alert {
	return models.Alert{
		ID:        id,
		Severity:  severity,
		Status:    models.AlertStatusActive,
		Message:   message,
		ModuleKey: "pipeline",
		Timestamp: time.Now().UTC(),
	}
}

func TestCorrelateGroupsWithinWindow(t *testing.T) {
	c := NewCorrelator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	first, created := c.Correlate(testAlert("a1", "warning", "leak detected"))
	if !created {
		t.Fatal("first alert did not open an incident")
	}

	c.now = func() time.Time { return base.Add(90 * time.Second) }
	second, created := c.Correlate(testAlert("a2", "critical", "pressure drop"))
	if created {
		t.Fatal("second alert within window opened a new incident")
	}
	if second.ID != first.ID {
		t.Errorf("correlated to %q, want %q", second.ID, first.ID)
	}
	if len(second.AlertIDs) != 2 {
		t.Errorf("alert refs = %d, want 2", len(second.AlertIDs))
	}

	// Outside the 2-minute window a distinct incident opens.
	c.now = func() time.Time { return base.Add(3 * time.Minute) }
	third, created := c.Correlate(testAlert("a3", "warning", "another leak"))
	if !created {
		t.Fatal("alert after window did not open a new incident")
	}
	if third.ID == first.ID {
		t.Error("post-window alert reused the stale incident")
	}
}

func TestCorrelateSkipsResolvedIncidents(t *testing.T) {
	c := NewCorrelator()
	first, _ := c.Correlate(testAlert("a1", "warning", "leak"))
	if _, err := c.Apply(first.ID, Update{Resolution: "patched"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	second, created := c.Correlate(testAlert("a2", "warning", "leak again"))
	if !created {
		t.Fatal("alert after resolution did not open a new incident")
	}
	if second.ID == first.ID {
		t.Error("resolved incident absorbed a new alert")
	}
}

func TestApplyResolutionForcesResolved(t *testing.T) {
	c := NewCorrelator()
	inc, _ := c.Correlate(testAlert("a1", "critical", "rupture"))

	updated, err := c.Apply(inc.ID, Update{Status: StatusInvestigating, RootCause: "corroded joint"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if updated.Status != StatusInvestigating {
		t.Errorf("status = %q, want investigating", updated.Status)
	}
	if updated.RootCause != "corroded joint" {
		t.Errorf("rootCause = %q", updated.RootCause)
	}

	resolved, err := c.Apply(inc.ID, Update{Resolution: "section replaced"})
	if err != nil {
		t.Fatalf("Apply resolution: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("status = %q, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("ResolvedAt not stamped")
	}

	// No transition out of resolved.
	if _, err := c.Apply(inc.ID, Update{Status: StatusActive}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reopen = %v, want ErrInvalidTransition", err)
	}
	// A root-cause-only update on a resolved incident is still recorded.
	if _, err := c.Apply(inc.ID, Update{RootCause: "postmortem detail"}); err != nil {
		t.Errorf("root cause after resolve = %v, want nil", err)
	}
}

func TestApplyUnknownIncident(t *testing.T) {
	c := NewCorrelator()
	if _, err := c.Apply("ghost", Update{Status: StatusActive}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply = %v, want ErrNotFound", err)
	}
	if _, err := c.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	if _, err := c.Timeline("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Timeline = %v, want ErrNotFound", err)
	}
}

func TestTimelineNewestFirst(t *testing.T) {
	c := NewCorrelator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	c.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	inc, _ := c.Correlate(testAlert("a1", "warning", "leak"))
	c.Correlate(testAlert("a2", "warning", "leak again"))
	if _, err := c.Apply(inc.ID, Update{RootCause: "seal failure"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	timeline, err := c.Timeline(inc.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 3 {
		t.Fatalf("timeline = %d entries, want 3", len(timeline))
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].Timestamp.After(timeline[i-1].Timestamp) {
			t.Errorf("timeline not newest-first at %d", i)
		}
	}
	if timeline[0].Type != TimelineUpdate {
		t.Errorf("newest entry type = %q, want update", timeline[0].Type)
	}
	if timeline[len(timeline)-1].Type != TimelineDetection {
		t.Errorf("oldest entry type = %q, want detection", timeline[len(timeline)-1].Type)
	}
}

func TestListActiveAndRecent(t *testing.T) {
	c := NewCorrelator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return base }
	old, _ := c.Correlate(testAlert("a1", "warning", "old leak"))
	if _, err := c.Apply(old.ID, Update{Resolution: "fixed"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	c.now = func() time.Time { return base.Add(30 * time.Hour) }
	c.Correlate(testAlert("a2", "critical", "fresh leak"))

	active := c.ListActive()
	if len(active) != 1 || active[0].Severity != "critical" {
		t.Errorf("ListActive = %+v, want only the fresh incident", active)
	}
	recent := c.ListRecent(24 * time.Hour)
	if len(recent) != 1 {
		t.Errorf("ListRecent(24h) = %d incidents, want 1", len(recent))
	}
	all := c.ListRecent(48 * time.Hour)
	if len(all) != 2 {
		t.Errorf("ListRecent(48h) = %d incidents, want 2", len(all))
	}
}
