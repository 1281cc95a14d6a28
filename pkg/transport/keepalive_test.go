package transport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepAliveConfig(t *testing.T) {
	cfg := DefaultKeepAliveConfig()
	if cfg.DetectionDelay() != 50*time.Second {
		t.Errorf("DetectionDelay() = %v, want 50s", cfg.DetectionDelay())
	}
	if got := (KeepAliveConfig{}).withDefaults(); got != cfg {
		t.Errorf("withDefaults() = %+v, want %+v", got, cfg)
	}
}

func TestKeepAliveTimeout(t *testing.T) {
	var timeouts atomic.Int32
	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    10 * time.Millisecond,
		MaxMissedPongs: 2,
	}, func(uint32) error { return nil }, func() { timeouts.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ka.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for timeouts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if timeouts.Load() != 1 {
		t.Fatalf("timeouts = %d, want 1", timeouts.Load())
	}
	time.Sleep(60 * time.Millisecond)
	if timeouts.Load() != 1 {
		t.Errorf("timeout fired %d times, want once", timeouts.Load())
	}
	if ka.Stats().MissedPongs < 2 {
		t.Errorf("MissedPongs = %d, want >= 2", ka.Stats().MissedPongs)
	}
}

func TestKeepAlivePongKeepsAlive(t *testing.T) {
	var timedOut atomic.Bool
	var ka *KeepAlive
	ka = NewKeepAlive(KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    10 * time.Millisecond,
		MaxMissedPongs: 2,
	}, func(seq uint32) error {
		go ka.PongReceived(seq)
		return nil
	}, func() { timedOut.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ka.Start(ctx)
	time.Sleep(150 * time.Millisecond)
	ka.Stop()

	if timedOut.Load() {
		t.Error("answered pings must not time out")
	}
	stats := ka.Stats()
	if stats.Sequence < 3 {
		t.Errorf("Sequence = %d, want at least 3 pings", stats.Sequence)
	}
	if stats.MissedPongs != 0 {
		t.Errorf("MissedPongs = %d, want 0", stats.MissedPongs)
	}
	if stats.LastPongTime.IsZero() {
		t.Error("LastPongTime not recorded")
	}
}

func TestKeepAliveStaleSequenceIgnored(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{}, func(uint32) error { return nil }, nil)
	ka.ping()
	ka.ping()
	ka.pong(1)
	if !ka.pending {
		t.Error("pong for an earlier ping must not clear the pending ping")
	}
	ka.pong(2)
	if ka.pending {
		t.Error("pong for the current ping must clear it")
	}
}
