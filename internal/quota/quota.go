// Package quota enforces the per team embedding token allowance.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrorIDTokenAllowanceExceeded is the stable identifier callers match on to
// render an upgrade prompt.
const ErrorIDTokenAllowanceExceeded = "token_allowance_exceeded"

var ErrQuotaExceeded = errors.New("token allowance exceeded")

type QuotaExceededError struct {
	TeamID          string
	PlanTokens      int64
	AttemptedTokens int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("token allowance exceeded: team %s attempted %d of %d tokens",
		e.TeamID, e.AttemptedTokens, e.PlanTokens)
}

func (e *QuotaExceededError) ID() string {
	return ErrorIDTokenAllowanceExceeded
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Allowance is a team's plan and what it has already consumed. A zero
// PlanTokens means the team is not limited.
type Allowance struct {
	PlanTokens int64
	UsedTokens int64
}

type AllowanceProvider interface {
	Allowance(ctx context.Context, teamID string) (Allowance, error)
}

// Ledger tracks one team's consumption during a batch. Tokens are reserved
// while a file is in flight and either committed or released once the file
// concludes, so parallel files never overshoot the plan together.
type Ledger struct {
	mu       sync.Mutex
	teamID   string
	plan     int64
	used     int64
	reserved int64
}

func NewLedger(teamID string, a Allowance) *Ledger {
	return &Ledger{teamID: teamID, plan: a.PlanTokens, used: a.UsedTokens}
}

func (l *Ledger) Reserve(n int64) error {
	if n <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	attempted := l.used + l.reserved + n
	if l.plan > 0 && attempted > l.plan {
		return &QuotaExceededError{TeamID: l.teamID, PlanTokens: l.plan, AttemptedTokens: attempted}
	}
	l.reserved += n
	return nil
}

func (l *Ledger) Release(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved -= n
	if l.reserved < 0 {
		l.reserved = 0
	}
}

func (l *Ledger) Commit(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved -= n
	if l.reserved < 0 {
		l.reserved = 0
	}
	l.used += n
}

func (l *Ledger) Used() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

func (l *Ledger) Reserved() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}

// Remaining returns the unreserved allowance, or -1 when unlimited.
func (l *Ledger) Remaining() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.plan <= 0 {
		return -1
	}
	left := l.plan - l.used - l.reserved
	if left < 0 {
		return 0
	}
	return left
}

func (l *Ledger) NewBudget() *Budget {
	return &Budget{ledger: l}
}

// Budget is the running token total of one file against a shared Ledger.
// It is not safe for concurrent use.
type Budget struct {
	ledger *Ledger
	tokens int64
}

// Reserve charges an estimated chunk cost before the provider is called.
func (b *Budget) Reserve(n int64) error {
	if err := b.ledger.Reserve(n); err != nil {
		return err
	}
	b.tokens += n
	return nil
}

// Reconcile replaces an earlier estimate with the provider reported cost.
func (b *Budget) Reconcile(estimated, actual int64) error {
	switch {
	case actual > estimated:
		return b.Reserve(actual - estimated)
	case actual < estimated:
		diff := estimated - actual
		if diff > b.tokens {
			diff = b.tokens
		}
		b.ledger.Release(diff)
		b.tokens -= diff
	}
	return nil
}

func (b *Budget) Tokens() int64 {
	return b.tokens
}

// Commit turns the file's reservations into usage.
func (b *Budget) Commit() int64 {
	n := b.tokens
	b.ledger.Commit(n)
	b.tokens = 0
	return n
}

// Rollback gives the file's reservations back to the team.
func (b *Budget) Rollback() {
	b.ledger.Release(b.tokens)
	b.tokens = 0
}
