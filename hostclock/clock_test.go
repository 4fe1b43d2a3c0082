package hostclock

import (
	"testing"
	"time"

	"gitlab.com/ppsgen/ppsgen/timing"
)

func timestampIn(d time.Duration) timing.Timestamp {
	target := time.Now().Add(d)
	return timing.Timestamp{Sec: target.Unix(), Nsec: int64(target.Nanosecond())}
}

func TestClockNow(t *testing.T) {
	clk := Clock{}

	before := time.Now().UnixNano()
	got := clk.Now()
	after := time.Now().UnixNano()

	if got.Nsec < 0 || got.Nsec >= timing.NsPerSec {
		t.Errorf("nanosecond offset out of range: %v", got.Nsec)
	}
	ns := got.Nanoseconds()
	if ns < before || ns > after {
		t.Errorf("clock not within bounds: %v <= %v <= %v", before, ns, after)
	}
}

func TestAlarmFires(t *testing.T) {
	alarm := &Alarm{}
	fired := make(chan struct{})

	alarm.Arm(timestampIn(20*time.Millisecond), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("alarm never fired")
	}
	alarm.Cancel()
}

func TestAlarmArmReplaces(t *testing.T) {
	alarm := &Alarm{}
	fired := make(chan string, 2)

	alarm.Arm(timestampIn(time.Hour), func() { fired <- "first" })
	alarm.Arm(timestampIn(20*time.Millisecond), func() { fired <- "second" })

	select {
	case which := <-fired:
		if which != "second" {
			t.Errorf("wrong deadline fired: %v", which)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alarm never fired")
	}
	alarm.Cancel()
}

func TestAlarmCancelBeforeFire(t *testing.T) {
	alarm := &Alarm{}
	fired := make(chan struct{}, 1)

	alarm.Arm(timestampIn(50*time.Millisecond), func() { fired <- struct{}{} })
	alarm.Cancel()

	select {
	case <-fired:
		t.Error("cancelled alarm fired anyway")
	case <-time.After(200 * time.Millisecond):
	}

	// Re-arming after Cancel must stay silent.
	alarm.Arm(timestampIn(10*time.Millisecond), func() { fired <- struct{}{} })
	select {
	case <-fired:
		t.Error("alarm re-armed after Cancel")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAlarmCancelWaitsForInflight(t *testing.T) {
	alarm := &Alarm{}
	started := make(chan struct{})
	done := false

	alarm.Arm(timestampIn(10*time.Millisecond), func() {
		close(started)
		time.Sleep(100 * time.Millisecond)
		done = true
	})

	<-started
	alarm.Cancel()
	if !done {
		t.Error("Cancel returned before the in-flight firing completed")
	}
}

func TestAlarmPastDeadlineFiresImmediately(t *testing.T) {
	alarm := &Alarm{}
	fired := make(chan struct{})

	alarm.Arm(timestampIn(-time.Second), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("past deadline never fired")
	}
	alarm.Cancel()
}
