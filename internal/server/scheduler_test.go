package server

import (
	"testing"
	"time"

	"github.com/marketintel/mia/config"
)

func TestSchedulerFiresDueOrder(t *testing.T) {
	runner := &stubRunner{}
	s := NewScheduler([]config.StandingOrder{
		{Cron: "* * * * *", Mission: "daily H100 price check"},
	}, runner, nil)

	s.tick(time.Now())

	// The mission runs on a goroutine; poll briefly for it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(runner.Inputs()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := runner.Inputs(); len(got) != 1 || got[0] != "daily H100 price check" {
		t.Fatalf("runner inputs = %v", runner.Inputs())
	}
}

func TestSchedulerSkipsNotDueOrder(t *testing.T) {
	runner := &stubRunner{}
	s := NewScheduler([]config.StandingOrder{
		// Fires only at midnight on Jan 1st.
		{Cron: "0 0 1 1 *", Mission: "yearly review"},
	}, runner, nil)

	now := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	s.tick(now)
	time.Sleep(50 * time.Millisecond)
	if len(runner.Inputs()) != 0 {
		t.Fatalf("runner inputs = %v, want none", runner.Inputs())
	}
}

func TestSchedulerDoesNotRefireWithinWindow(t *testing.T) {
	runner := &stubRunner{}
	s := NewScheduler([]config.StandingOrder{
		{Cron: "0 * * * *", Mission: "hourly sweep"},
	}, runner, nil)

	fire := time.Date(2025, 6, 15, 9, 0, 30, 0, time.UTC)
	s.tick(fire)
	s.tick(fire.Add(s.Tick))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(runner.Inputs()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if len(runner.Inputs()) != 1 {
		t.Fatalf("fired %d times, want exactly once", len(runner.Inputs()))
	}
}

func TestSchedulerIgnoresBadCron(t *testing.T) {
	runner := &stubRunner{}
	s := NewScheduler([]config.StandingOrder{
		{Cron: "not a cron", Mission: "broken"},
	}, runner, nil)
	s.tick(time.Now())
	time.Sleep(50 * time.Millisecond)
	if len(runner.Inputs()) != 0 {
		t.Fatalf("runner inputs = %v", runner.Inputs())
	}
}
