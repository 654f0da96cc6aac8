package services

import (
	"context"
	"errors"
	"testing"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store/memory"
)

func newUnlockManager(accessCode string) *UnlockManager {
	return NewUnlockManager(memory.New(), accessCode, log.New(log.DefaultConfig()))
}

func TestUnlockUseAndExhaustion(t *testing.T) {
	m := newUnlockManager("geheim")
	ctx := context.Background()

	for i := 1; i <= core.TotalUnlocks; i++ {
		state, err := m.Use(ctx)
		if err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
		if state.Remaining != core.TotalUnlocks-i {
			t.Fatalf("after %d uses remaining = %d", i, state.Remaining)
		}
	}

	if _, err := m.Use(ctx); !errors.Is(err, ErrNoUnlocksLeft) {
		t.Fatalf("4th use: expected ErrNoUnlocksLeft, got %v", err)
	}
}

func TestUnlockResetWithAccessCode(t *testing.T) {
	m := newUnlockManager("geheim")
	ctx := context.Background()

	if _, err := m.Use(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Reset(ctx, "falsch"); !errors.Is(err, ErrBadAccessCode) {
		t.Fatalf("wrong code: expected ErrBadAccessCode, got %v", err)
	}
	state, err := m.Reset(ctx, "geheim")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if state.Remaining != core.TotalUnlocks {
		t.Fatalf("remaining = %d, want %d", state.Remaining, core.TotalUnlocks)
	}
}

func TestUnlockResetWithoutConfiguredCode(t *testing.T) {
	m := newUnlockManager("")
	ctx := context.Background()

	if _, err := m.Reset(ctx, ""); !errors.Is(err, ErrBadAccessCode) {
		t.Fatal("empty code must be rejected even without configuration")
	}
	if _, err := m.Reset(ctx, "irgendwas"); err != nil {
		t.Fatalf("non-empty code should pass without configuration: %v", err)
	}
}

func TestUnlockStatus(t *testing.T) {
	m := newUnlockManager("geheim")
	state, err := m.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state.Remaining != core.TotalUnlocks || state.Total != core.TotalUnlocks {
		t.Fatalf("fresh state = %+v", state)
	}
}
