// Package trainer drives a batch of source files through the ingest
// pipeline on a bounded worker pool.
package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docembed/internal/checksum"
	"github.com/xxxsen/docembed/internal/convert"
	"github.com/xxxsen/docembed/internal/ingest"
	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/quota"
	"github.com/xxxsen/docembed/internal/source"
)

const DefaultConcurrency = 10

type FileProcessor interface {
	Process(ctx context.Context, in ingest.Input) *ingest.Result
}

type ChecksumStore interface {
	ListChecksums(ctx context.Context, sourceID string) (map[string]string, error)
}

type UsageRecorder interface {
	AddUsage(ctx context.Context, u *model.TokenUsage) error
}

// Observer receives a copy of the job on every change.
type Observer func(job *model.TrainingJob)

type Options struct {
	Concurrency int
	// Allowance limits team token spend. Nil means unlimited.
	Allowance quota.AllowanceProvider
	// Usage records the tokens of every stored file. Optional.
	Usage UsageRecorder
}

type Request struct {
	JobID     string
	SourceID  string
	ProjectID string
	TeamID    string
	Source    source.Source
	Include   []string
	Exclude   []string
	Selectors convert.Options

	// ContentType overrides extension based detection when set.
	ContentType string
}

type Trainer struct {
	processor FileProcessor
	checksums ChecksumStore
	opts      Options
}

func New(processor FileProcessor, checksums ChecksumStore, opts Options) *Trainer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Trainer{processor: processor, checksums: checksums, opts: opts}
}

// run is the mutable state of one Run call.
type run struct {
	mu       sync.Mutex
	job      *model.TrainingJob
	observer Observer
	started  int
}

func (r *run) update(fn func(job *model.TrainingJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.job)
	r.job.Mtime = time.Now().Unix()
	if r.observer != nil {
		r.observer(r.job.Clone())
	}
}

func (r *run) setState(state model.JobState) {
	r.update(func(job *model.TrainingJob) {
		job.State = state
	})
}

func (r *run) fail(path string, err error) {
	r.update(func(job *model.TrainingJob) {
		job.Errors = append(job.Errors, model.FileError{Path: path, Message: err.Error()})
	})
}

// Run processes every file of the request's source that passes the path
// filters. It never returns an error: problems land in the job's error list
// and the job always ends back in idle. ctx aborts the run only on shutdown;
// the cancel token is the way to stop a run early.
func (t *Trainer) Run(ctx context.Context, req Request, cancel *CancelToken, observer Observer) *model.TrainingJob {
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	now := time.Now().Unix()
	r := &run{
		job: &model.TrainingJob{
			ID:       jobID,
			SourceID: req.SourceID,
			State:    model.JobStateIdle,
			Ctime:    now,
			Mtime:    now,
		},
		observer: observer,
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID), zap.String("source_id", req.SourceID))
	logger.Info("training job start")

	t.execute(ctx, req, cancel, r)

	r.mu.Lock()
	cancelled := r.job.Cancelled
	r.mu.Unlock()
	if !cancelled {
		r.setState(model.JobStateComplete)
	}
	r.mu.Lock()
	logger.Info("training job finished",
		zap.Int("total", r.job.Total),
		zap.Int("processed", r.job.Processed),
		zap.Int("skipped", r.job.Skipped),
		zap.Int("failed", r.job.Failed),
		zap.Int("errors", len(r.job.Errors)),
		zap.Int("warnings", len(r.job.Warnings)),
		zap.Bool("cancelled", r.job.Cancelled),
	)
	r.mu.Unlock()
	r.setState(model.JobStateIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Clone()
}

// requestCancel moves the job to cancel_requested once, while files that
// already started keep running.
func (r *run) requestCancel() bool {
	marked := false
	r.update(func(job *model.TrainingJob) {
		if job.Cancelled {
			return
		}
		job.State = model.JobStateCancelRequested
		job.Cancelled = true
		marked = true
	})
	return marked
}

func (t *Trainer) execute(ctx context.Context, req Request, cancel *CancelToken, r *run) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", r.job.ID))
	if req.Source == nil {
		r.fail("", fmt.Errorf("source %s is not configured", req.SourceID))
		return
	}
	filter, err := NewPathFilter(req.Include, req.Exclude)
	if err != nil {
		r.fail("", err)
		return
	}

	r.setState(model.JobStateFetchingData)
	if err := req.Source.Fetch(ctx); err != nil {
		logger.Error("fetch source failed", zap.Error(err))
		r.fail("", fmt.Errorf("fetch source: %w", err))
		return
	}
	candidates := make([]int, 0, req.Source.Len())
	for i := 0; i < req.Source.Len(); i++ {
		if filter.Match(req.Source.FilePath(i)) {
			candidates = append(candidates, i)
		}
	}
	sums, err := t.checksums.ListChecksums(ctx, req.SourceID)
	if err != nil {
		r.fail("", fmt.Errorf("load checksums: %w", err))
		return
	}
	index := checksum.NewIndex(sums)
	ledger, err := t.newLedger(ctx, req.TeamID)
	if err != nil {
		r.fail("", err)
		return
	}
	logger.Info("source fetched",
		zap.Int("files", req.Source.Len()),
		zap.Int("candidates", len(candidates)),
		zap.Int("known_checksums", index.Len()),
	)

	r.update(func(job *model.TrainingJob) {
		job.State = model.JobStateLoading
		job.Total = len(candidates)
	})

	pool, err := ants.NewPool(t.opts.Concurrency)
	if err != nil {
		r.fail("", fmt.Errorf("create worker pool: %w", err))
		return
	}
	defer pool.Release()

	watchDone := make(chan struct{})
	watchExited := make(chan struct{})
	go func() {
		defer close(watchExited)
		select {
		case <-cancel.Done():
		case <-ctx.Done():
		case <-watchDone:
			return
		}
		if r.requestCancel() {
			logger.Info("training job cancel requested, waiting for running files")
		}
	}()

	var wg sync.WaitGroup
	for _, idx := range candidates {
		if cancel.Cancelled() || ctx.Err() != nil {
			break
		}
		idx := idx
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			t.processFile(ctx, req, idx, index, ledger, cancel, r)
		})
		if err != nil {
			wg.Done()
			r.fail(req.Source.FilePath(idx), fmt.Errorf("submit file: %w", err))
		}
	}
	wg.Wait()
	close(watchDone)
	<-watchExited

	if cancel.Cancelled() || ctx.Err() != nil {
		r.requestCancel()
	}
}

func (t *Trainer) newLedger(ctx context.Context, teamID string) (*quota.Ledger, error) {
	if t.opts.Allowance == nil {
		return quota.NewLedger(teamID, quota.Allowance{}), nil
	}
	a, err := t.opts.Allowance.Allowance(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load token allowance: %w", err)
	}
	return quota.NewLedger(teamID, a), nil
}

func (t *Trainer) processFile(ctx context.Context, req Request, idx int, index *checksum.Index,
	ledger *quota.Ledger, cancel *CancelToken, r *run) {
	// the pool may hand out a slot after cancel was requested
	if cancel.Cancelled() || ctx.Err() != nil {
		return
	}
	path := req.Source.FilePath(idx)
	r.update(func(job *model.TrainingJob) {
		r.started++
		job.Progress = r.started
		job.Filename = path
	})

	file, err := req.Source.ReadFile(ctx, idx)
	if err != nil {
		r.update(func(job *model.TrainingJob) {
			job.Failed++
			job.Errors = append(job.Errors, model.FileError{Path: path, Message: fmt.Sprintf("read file: %v", err)})
		})
		return
	}
	file.Path = path
	if req.ContentType != "" {
		file.ContentType = req.ContentType
	}
	res := t.processor.Process(ctx, ingest.Input{
		SourceID:  req.SourceID,
		ProjectID: req.ProjectID,
		File:      *file,
		Selectors: req.Selectors,
		Checksums: index,
		Budget:    ledger.NewBudget(),
	})
	r.update(func(job *model.TrainingJob) {
		switch {
		case res.Skipped:
			job.Skipped++
		case res.OK():
			job.Processed++
		default:
			job.Failed++
			job.Errors = append(job.Errors, res.Errors...)
		}
		for _, w := range res.Warnings {
			job.Warnings = append(job.Warnings, model.FileError{Path: path, Message: w})
		}
	})
	if !res.OK() || res.Skipped || res.Tokens == 0 || t.opts.Usage == nil {
		return
	}
	err = t.opts.Usage.AddUsage(ctx, &model.TokenUsage{
		TeamID:   req.TeamID,
		SourceID: req.SourceID,
		JobID:    r.job.ID,
		Tokens:   res.Tokens,
		Ctime:    time.Now().Unix(),
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("record token usage failed",
			zap.String("job_id", r.job.ID), zap.String("path", path), zap.Error(err))
	}
}
