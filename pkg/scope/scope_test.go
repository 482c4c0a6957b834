package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestOpenSetGet(t *testing.T) {
	ctx, tok := Open(context.Background(), map[string]any{"tenant": "acme"})
	defer tok.Close()

	if err := Set(ctx, "user", "alice"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	tests := []struct {
		key  string
		want any
	}{
		{"tenant", "acme"},
		{"user", "alice"},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestOpenCopiesSeedData(t *testing.T) {
	seed := map[string]any{"a": 1}
	ctx, tok := Open(context.Background(), seed)
	defer tok.Close()

	seed["a"] = 2
	got, _ := Get(ctx, "a")
	if got != 1 {
		t.Errorf("Get(a) = %v, want 1 (seed map must not alias the store)", got)
	}
}

func TestNoScope(t *testing.T) {
	ctx := context.Background()

	if Exists(ctx) {
		t.Error("Exists() = true without a scope")
	}
	if _, err := Get(ctx, "k"); !errors.Is(err, ErrScopeNotActive) {
		t.Errorf("Get() error = %v, want ErrScopeNotActive", err)
	}
	if _, err := GetOr(ctx, "k", "def"); !errors.Is(err, ErrScopeNotActive) {
		t.Errorf("GetOr() error = %v, want ErrScopeNotActive", err)
	}
	if err := Set(ctx, "k", "v"); !errors.Is(err, ErrScopeNotActive) {
		t.Errorf("Set() error = %v, want ErrScopeNotActive", err)
	}
	if _, err := Copy(ctx); !errors.Is(err, ErrScopeNotActive) {
		t.Errorf("Copy() error = %v, want ErrScopeNotActive", err)
	}
}

func TestClose(t *testing.T) {
	ctx, tok := Open(context.Background(), nil)
	if !Exists(ctx) {
		t.Fatal("Exists() = false inside an open scope")
	}
	_ = Set(ctx, "k", "v")

	tok.Close()
	tok.Close() // idempotent

	if Exists(ctx) {
		t.Error("Exists() = true after Close")
	}
	if _, err := Get(ctx, "k"); !errors.Is(err, ErrScopeNotActive) {
		t.Errorf("Get() after Close error = %v, want ErrScopeNotActive", err)
	}
	if err := Set(ctx, "k", "v2"); !errors.Is(err, ErrScopeNotActive) {
		t.Errorf("Set() after Close error = %v, want ErrScopeNotActive", err)
	}
}

func TestGetOr(t *testing.T) {
	ctx, tok := Open(context.Background(), map[string]any{"present": "x"})
	defer tok.Close()

	got, err := GetOr(ctx, "absent", "fallback")
	if err != nil || got != "fallback" {
		t.Errorf("GetOr(absent) = %v, %v; want fallback, nil", got, err)
	}
	got, err = GetOr(ctx, "present", "fallback")
	if err != nil || got != "x" {
		t.Errorf("GetOr(present) = %v, %v; want x, nil", got, err)
	}
}

func TestValue(t *testing.T) {
	ctx, tok := Open(context.Background(), map[string]any{"n": 42, "s": "str"})
	defer tok.Close()

	n, ok, err := Value[int](ctx, "n")
	if err != nil || !ok || n != 42 {
		t.Errorf("Value[int](n) = %v, %v, %v", n, ok, err)
	}

	_, ok, err = Value[int](ctx, "missing")
	if err != nil || ok {
		t.Errorf("Value[int](missing) ok = %v, err = %v; want false, nil", ok, err)
	}

	if _, _, err := Value[int](ctx, "s"); err == nil {
		t.Error("Value[int](s) expected type error")
	}
}

func TestCopyIsSnapshot(t *testing.T) {
	ctx, tok := Open(context.Background(), map[string]any{"k": "before"})

	snap, err := Copy(ctx)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	_ = Set(ctx, "k", "after")
	_ = Set(ctx, "new", true)
	snap["mutated"] = 1

	if snap["k"] != "before" {
		t.Errorf("snapshot k = %v, want before", snap["k"])
	}
	if _, ok := snap["new"]; ok {
		t.Error("snapshot observed a later Set")
	}
	if _, found, _ := Lookup(ctx, "mutated"); found {
		t.Error("store observed a write to the snapshot")
	}

	tok.Close()
	if snap["k"] != "before" {
		t.Error("snapshot changed after Close")
	}
}

func TestNestedScopes(t *testing.T) {
	outer, outerTok := Open(context.Background(), map[string]any{"level": "outer"})
	defer outerTok.Close()

	inner, innerTok := Open(outer, map[string]any{"level": "inner"})
	if v, _ := Get(inner, "level"); v != "inner" {
		t.Errorf("inner level = %v, want inner", v)
	}
	innerTok.Close()

	if v, _ := Get(outer, "level"); v != "outer" {
		t.Errorf("outer level after inner close = %v, want outer", v)
	}
	if Exists(inner) {
		t.Error("inner scope still exists after Close")
	}
}

func TestRun(t *testing.T) {
	t.Run("closes on success", func(t *testing.T) {
		var scoped context.Context
		err := Run(context.Background(), map[string]any{"k": "v"}, func(ctx context.Context) error {
			scoped = ctx
			v, err := Get(ctx, "k")
			if err != nil || v != "v" {
				t.Errorf("Get() = %v, %v", v, err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if Exists(scoped) {
			t.Error("scope still open after Run returned")
		}
	})

	t.Run("closes and propagates error", func(t *testing.T) {
		want := errors.New("handler failed")
		var scoped context.Context
		err := Run(context.Background(), nil, func(ctx context.Context) error {
			scoped = ctx
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("Run() error = %v, want %v", err, want)
		}
		if _, err := Get(scoped, "k"); !errors.Is(err, ErrScopeNotActive) {
			t.Errorf("Get() after failed Run error = %v, want ErrScopeNotActive", err)
		}
	})

	t.Run("closes on panic", func(t *testing.T) {
		var scoped context.Context
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_ = Run(context.Background(), nil, func(ctx context.Context) error {
				scoped = ctx
				panic("boom")
			})
		}()
		if Exists(scoped) {
			t.Error("scope still open after panic")
		}
	})
}

func TestIsolationAcrossGoroutines(t *testing.T) {
	const requests = 50
	const writes = 100

	var wg sync.WaitGroup
	errs := make(chan error, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := Run(context.Background(), map[string]any{"owner": id}, func(ctx context.Context) error {
				for j := 0; j < writes; j++ {
					key := fmt.Sprintf("k%d", j)
					if err := Set(ctx, key, id); err != nil {
						return err
					}
				}
				snap, err := Copy(ctx)
				if err != nil {
					return err
				}
				for k, v := range snap {
					if v != id {
						return fmt.Errorf("request %d saw %s=%v", id, k, v)
					}
				}
				return nil
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestInterleavedScopes(t *testing.T) {
	// Two requests take turns on the same goroutine; each must only ever see
	// its own keys.
	a, aTok := Open(context.Background(), nil)
	b, bTok := Open(context.Background(), nil)
	defer aTok.Close()
	defer bTok.Close()

	_ = Set(a, "a-only", 1)
	_ = Set(b, "b-only", 2)
	_ = Set(a, "shared-name", "a")
	_ = Set(b, "shared-name", "b")

	if _, found, _ := Lookup(a, "b-only"); found {
		t.Error("scope A observed a write from scope B")
	}
	if _, found, _ := Lookup(b, "a-only"); found {
		t.Error("scope B observed a write from scope A")
	}
	if v, _ := Get(a, "shared-name"); v != "a" {
		t.Errorf("A shared-name = %v, want a", v)
	}
	if v, _ := Get(b, "shared-name"); v != "b" {
		t.Errorf("B shared-name = %v, want b", v)
	}
}

func TestConcurrentAccessWithinScope(t *testing.T) {
	ctx, tok := Open(context.Background(), nil)
	defer tok.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = Set(ctx, fmt.Sprintf("k%d", i), i)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = Copy(ctx)
		}()
	}
	wg.Wait()

	snap, _ := Copy(ctx)
	if len(snap) != 20 {
		t.Errorf("len(snapshot) = %d, want 20", len(snap))
	}
}

func BenchmarkSetGet(b *testing.B) {
	ctx, tok := Open(context.Background(), nil)
	defer tok.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Set(ctx, "key", i)
		_, _ = Get(ctx, "key")
	}
}

func BenchmarkCopy(b *testing.B) {
	ctx, tok := Open(context.Background(), map[string]any{"req_id": "123", "user": "alice"})
	defer tok.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Copy(ctx)
	}
}
