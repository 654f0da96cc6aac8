package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
)

// UnlockManager tracks the block-override counter. Each use lets one blocked
// transaction through; the counter only refills on an authorized reset.
type UnlockManager struct {
	unlocks    store.UnlockStore
	accessCode string
	logger     *log.Logger
}

// NewUnlockManager builds the manager. An empty accessCode disables the code
// check on reset; any non-empty code is then accepted.
func NewUnlockManager(unlocks store.UnlockStore, accessCode string, logger *log.Logger) *UnlockManager {
	l := logger.WithComponent(log.ComponentUnlock)
	if accessCode == "" {
		l.Warn("no unlock access code configured, resets accept any non-empty code")
	}
	return &UnlockManager{unlocks: unlocks, accessCode: accessCode, logger: l}
}

func (m *UnlockManager) Status(ctx context.Context) (core.UnlockState, error) {
	state, err := m.unlocks.GetUnlocks(ctx)
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("load unlocks: %w", err)
	}
	return state, nil
}

// Use consumes one unlock. ErrNoUnlocksLeft when the counter is empty.
func (m *UnlockManager) Use(ctx context.Context) (core.UnlockState, error) {
	state, err := m.unlocks.GetUnlocks(ctx)
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("load unlocks: %w", err)
	}
	if state.Remaining <= 0 {
		return state, ErrNoUnlocksLeft
	}
	state, err = m.unlocks.DecrementUnlocks(ctx)
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("decrement unlocks: %w", err)
	}
	m.logger.InfoContext(ctx, "unlock used", log.FieldRemaining, state.Remaining)
	return state, nil
}

// Reset refills the counter after validating the access code.
func (m *UnlockManager) Reset(ctx context.Context, code string) (core.UnlockState, error) {
	if !m.codeValid(code) {
		m.logger.WarnContext(ctx, "unlock reset rejected")
		return core.UnlockState{}, ErrBadAccessCode
	}
	state, err := m.unlocks.ResetUnlocks(ctx)
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("reset unlocks: %w", err)
	}
	m.logger.InfoContext(ctx, "unlocks reset", log.FieldRemaining, state.Remaining)
	return state, nil
}

func (m *UnlockManager) codeValid(code string) bool {
	if m.accessCode == "" {
		return code != ""
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(m.accessCode)) == 1
}
