package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagebrew/internal/events"
)

func startDebouncer(t *testing.T, bus *events.Bus, cfg DebouncerConfig) {
	t.Helper()
	d, err := NewDebouncer(bus, cfg)
	require.NoError(t, err)
	go func() { _ = d.Run(t.Context()) }()
	select {
	case <-d.Ready():
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for debouncer ready")
	}
}

func requestRebuild(t *testing.T, bus *events.Bus, kind events.RebuildKind) {
	t.Helper()
	require.NoError(t, bus.Publish(context.Background(), events.RebuildRequested{Kind: kind, Reason: "test"}))
}

func TestDebouncer_BurstCoalesces(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	nowCh, unsub := events.Subscribe[events.RebuildNow](bus, 10)
	defer unsub()

	startDebouncer(t, bus, DebouncerConfig{QuietWindow: 25 * time.Millisecond, MaxDelay: 300 * time.Millisecond})

	for range 5 {
		requestRebuild(t, bus, events.RebuildFull)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-nowCh:
		require.Equal(t, 5, got.RequestCount)
		require.Equal(t, "quiet", got.DebounceCause)
		require.Equal(t, events.RebuildFull, got.Kind)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for RebuildNow")
	}

	select {
	case <-nowCh:
		t.Fatal("expected a single RebuildNow for the burst")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestDebouncer_MaxDelay(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	nowCh, unsub := events.Subscribe[events.RebuildNow](bus, 10)
	defer unsub()

	startDebouncer(t, bus, DebouncerConfig{QuietWindow: 200 * time.Millisecond, MaxDelay: 60 * time.Millisecond})

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		requestRebuild(t, bus, events.RebuildFull)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-nowCh:
		require.Equal(t, "max_delay", got.DebounceCause)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for max-delay RebuildNow")
	}
}

func TestDebouncer_FullSubsumesStyles(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	nowCh, unsub := events.Subscribe[events.RebuildNow](bus, 10)
	defer unsub()

	startDebouncer(t, bus, DebouncerConfig{QuietWindow: 30 * time.Millisecond, MaxDelay: 300 * time.Millisecond})

	requestRebuild(t, bus, events.RebuildStyles)
	requestRebuild(t, bus, events.RebuildFull)
	requestRebuild(t, bus, events.RebuildStyles)

	select {
	case got := <-nowCh:
		require.Equal(t, events.RebuildFull, got.Kind)
		require.Equal(t, 3, got.RequestCount)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for RebuildNow")
	}

	requestRebuild(t, bus, events.RebuildStyles)
	select {
	case got := <-nowCh:
		require.Equal(t, events.RebuildStyles, got.Kind, "a new burst starts from scratch")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for second RebuildNow")
	}
}

func TestDebouncer_RunningBuildQueuesOneFollowUp(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	nowCh, unsub := events.Subscribe[events.RebuildNow](bus, 10)
	defer unsub()

	var running atomic.Bool
	running.Store(true)
	startDebouncer(t, bus, DebouncerConfig{
		QuietWindow:       20 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		CheckBuildRunning: running.Load,
		PollInterval:      10 * time.Millisecond,
	})

	for range 3 {
		requestRebuild(t, bus, events.RebuildFull)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-nowCh:
		t.Fatal("must not emit while a build is running")
	case <-time.After(120 * time.Millisecond):
	}

	running.Store(false)

	select {
	case got := <-nowCh:
		require.Equal(t, "after_running", got.DebounceCause)
		require.Equal(t, 3, got.RequestCount)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for follow-up RebuildNow")
	}

	select {
	case <-nowCh:
		t.Fatal("expected exactly one follow-up")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestNewDebouncer_Validation(t *testing.T) {
	_, err := NewDebouncer(nil, DebouncerConfig{QuietWindow: time.Second, MaxDelay: time.Second})
	require.Error(t, err)
	_, err = NewDebouncer(events.NewBus(), DebouncerConfig{MaxDelay: time.Second})
	require.Error(t, err)
	_, err = NewDebouncer(events.NewBus(), DebouncerConfig{QuietWindow: time.Second})
	require.Error(t, err)
}
