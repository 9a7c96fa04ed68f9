package quota

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReserveWithinPlan(t *testing.T) {
	l := NewLedger("team", Allowance{PlanTokens: 100, UsedTokens: 40})
	require.NoError(t, l.Reserve(60))
	assert.Equal(t, int64(0), l.Remaining())

	err := l.Reserve(1)
	require.Error(t, err)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ErrorIDTokenAllowanceExceeded, qe.ID())
	assert.Equal(t, int64(100), qe.PlanTokens)
	assert.Equal(t, int64(101), qe.AttemptedTokens)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestLedgerUnlimited(t *testing.T) {
	l := NewLedger("team", Allowance{})
	require.NoError(t, l.Reserve(1<<40))
	assert.Equal(t, int64(-1), l.Remaining())
}

func TestBudgetCommitAndRollback(t *testing.T) {
	l := NewLedger("team", Allowance{PlanTokens: 100})
	a := l.NewBudget()
	b := l.NewBudget()
	require.NoError(t, a.Reserve(30))
	require.NoError(t, b.Reserve(50))
	require.Error(t, b.Reserve(30))
	assert.Equal(t, int64(50), b.Tokens())

	b.Rollback()
	assert.Equal(t, int64(30), l.Reserved())
	assert.Equal(t, int64(30), a.Commit())
	assert.Equal(t, int64(30), l.Used())
	assert.Equal(t, int64(0), l.Reserved())
	assert.Equal(t, int64(70), l.Remaining())
}

func TestBudgetReconcile(t *testing.T) {
	l := NewLedger("team", Allowance{PlanTokens: 10})
	b := l.NewBudget()
	require.NoError(t, b.Reserve(5))
	require.NoError(t, b.Reconcile(5, 3))
	assert.Equal(t, int64(3), b.Tokens())
	assert.Equal(t, int64(3), l.Reserved())

	require.NoError(t, b.Reserve(4))
	require.Error(t, b.Reconcile(4, 8))
	assert.Equal(t, int64(7), b.Tokens())
}

func TestLedgerConcurrentReservations(t *testing.T) {
	l := NewLedger("team", Allowance{PlanTokens: 1000})
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Reserve(30) == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 33, granted)
	assert.LessOrEqual(t, l.Reserved(), int64(1000))
}

type fakeUsage struct {
	used int64
	err  error
}

func (f *fakeUsage) UsedTokens(context.Context, string) (int64, error) {
	return f.used, f.err
}

func TestConfigAllowanceProvider(t *testing.T) {
	p := NewConfigAllowanceProvider(PlanConfig{
		DefaultPlanTokens: 500,
		Teams:             map[string]int64{"pro": 5000},
	}, &fakeUsage{used: 42})

	a, err := p.Allowance(context.Background(), "pro")
	require.NoError(t, err)
	assert.Equal(t, Allowance{PlanTokens: 5000, UsedTokens: 42}, a)

	a, err = p.Allowance(context.Background(), "free")
	require.NoError(t, err)
	assert.Equal(t, int64(500), a.PlanTokens)

	p = NewConfigAllowanceProvider(PlanConfig{}, &fakeUsage{err: errors.New("db")})
	_, err = p.Allowance(context.Background(), "x")
	require.Error(t, err)
}
