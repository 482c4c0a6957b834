package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
)

func TestSetGetConfig(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	cfg := Default()
	SetConfig(cfg)
	if GetConfig() != cfg {
		t.Error("GetConfig() did not return the config passed to SetConfig")
	}

	SetConfig(nil)
	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() should panic without a config")
		}
	}()
	MustGetConfig()
}

func TestReloadConfig(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8001\"\n")
	SetConfig(Default())

	if err := ReloadConfig(path); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:8001" {
		t.Errorf("ListenAddress = %q", got)
	}

	if err := os.WriteFile(path, []byte("journal:\n  backend: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ReloadConfig(path); err == nil {
		t.Error("ReloadConfig() expected error for invalid file")
	}
	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:8001" {
		t.Errorf("failed reload replaced config: ListenAddress = %q", got)
	}
}

func TestConcurrentGetConfig(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)
	SetConfig(Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = GetConfig()
		}()
		go func() {
			defer wg.Done()
			SetConfig(Default())
		}()
	}
	wg.Wait()
}

func TestWatcherReloads(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	path := writeConfig(t, "sse:\n  retry: 1000\n")
	if err := ReloadConfig(path); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()
	defer w.Stop()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("sse:\n  retry: 2000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.SSE.Retry != 2000 {
			t.Errorf("reloaded Retry = %d, want 2000", cfg.SSE.Retry)
		}
		if got := GetConfig().SSE.Retry; got != 2000 {
			t.Errorf("GetConfig().SSE.Retry = %d after reload, want 2000", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	calls := 0
	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}
