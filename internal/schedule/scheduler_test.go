package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
}

func (j *countJob) Name() string {
	return j.name
}

func (j *countJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countJob{name: "b"}, "0 4 * * *"))
	require.NoError(t, s.AddJob(&countJob{name: "a"}, "*/5 * * * *"))
	require.Error(t, s.AddJob(&countJob{name: "a"}, "0 4 * * *"))
	require.Error(t, s.AddJob(&countJob{name: "c"}, "not a spec"))
	require.Equal(t, []string{"a", "b"}, s.Jobs())
}

func TestWrapSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &countJob{name: "slow", block: make(chan struct{})}
	fn := s.wrap(job, "* * * * *")

	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	fn()
	close(job.block)
	<-done
	require.Equal(t, int32(1), job.runs.Load())
}
