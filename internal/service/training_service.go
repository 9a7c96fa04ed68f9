package service

import (
	"context"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/convert"
	"github.com/xxxsen/docembed/internal/model"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
	"github.com/xxxsen/docembed/internal/pkg/timeutil"
	"github.com/xxxsen/docembed/internal/source"
	"github.com/xxxsen/docembed/internal/trainer"
)

type Runner interface {
	Run(ctx context.Context, req trainer.Request, cancel *trainer.CancelToken, observer trainer.Observer) *model.TrainingJob
}

type SourceFactory func(cfg config.SourceConfig) (source.Source, error)

type activeJob struct {
	id     string
	cancel *trainer.CancelToken
}

// TrainingService allows one running job per source and keeps the latest
// snapshot of every source's job for status queries.
type TrainingService struct {
	runner    Runner
	newSource SourceFactory
	sources   []config.SourceConfig

	mu     sync.Mutex
	active map[string]*activeJob
	latest map[string]*model.TrainingJob
	wg     sync.WaitGroup
}

func NewTrainingService(runner Runner, sources []config.SourceConfig, newSource SourceFactory) *TrainingService {
	if newSource == nil {
		newSource = source.New
	}
	return &TrainingService{
		runner:    runner,
		newSource: newSource,
		sources:   sources,
		active:    make(map[string]*activeJob),
		latest:    make(map[string]*model.TrainingJob),
	}
}

func (s *TrainingService) Sources() []config.SourceConfig {
	return append([]config.SourceConfig(nil), s.sources...)
}

func (s *TrainingService) sourceConfig(sourceID string) (config.SourceConfig, bool) {
	for _, src := range s.sources {
		if src.ID == sourceID {
			return src, true
		}
	}
	return config.SourceConfig{}, false
}

// Start launches a job in the background and returns its first snapshot.
func (s *TrainingService) Start(ctx context.Context, sourceID string) (*model.TrainingJob, error) {
	req, cancel, err := s.begin(sourceID)
	if err != nil {
		return nil, err
	}
	snapshot := s.Status(sourceID)
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, req, cancel)
	}()
	return snapshot, nil
}

// Train runs a job and returns its final snapshot.
func (s *TrainingService) Train(ctx context.Context, sourceID string) (*model.TrainingJob, error) {
	req, cancel, err := s.begin(sourceID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, req, cancel), nil
}

func (s *TrainingService) begin(sourceID string) (trainer.Request, *trainer.CancelToken, error) {
	cfg, ok := s.sourceConfig(sourceID)
	if !ok {
		return trainer.Request{}, nil, appErr.ErrNotFound
	}
	src, err := s.newSource(cfg)
	if err != nil {
		return trainer.Request{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[sourceID]; busy {
		return trainer.Request{}, nil, appErr.ErrBusy
	}
	jobID := newID()
	cancel := trainer.NewCancelToken()
	s.active[sourceID] = &activeJob{id: jobID, cancel: cancel}
	now := timeutil.NowUnix()
	s.latest[sourceID] = &model.TrainingJob{
		ID:       jobID,
		SourceID: sourceID,
		State:    model.JobStateIdle,
		Ctime:    now,
		Mtime:    now,
	}
	return trainer.Request{
		JobID:     jobID,
		SourceID:  cfg.ID,
		ProjectID: cfg.ProjectID,
		TeamID:    cfg.TeamID,
		Source:    src,
		Include:   cfg.Include,
		Exclude:   cfg.Exclude,
		Selectors: convert.Options{
			IncludeSelectors: cfg.Selectors.Include,
			ExcludeSelectors: cfg.Selectors.Exclude,
		},
		ContentType: cfg.ContentType,
	}, cancel, nil
}

func (s *TrainingService) run(ctx context.Context, req trainer.Request, cancel *trainer.CancelToken) *model.TrainingJob {
	defer func() {
		s.mu.Lock()
		if job, ok := s.active[req.SourceID]; ok && job.id == req.JobID {
			delete(s.active, req.SourceID)
		}
		s.mu.Unlock()
	}()
	job := s.runner.Run(ctx, req, cancel, func(job *model.TrainingJob) {
		s.mu.Lock()
		s.latest[req.SourceID] = job
		s.mu.Unlock()
	})
	s.mu.Lock()
	s.latest[req.SourceID] = job
	s.mu.Unlock()
	if len(job.Errors) > 0 {
		logutil.GetLogger(ctx).Warn("training job finished with errors",
			zap.String("job_id", job.ID),
			zap.String("source_id", job.SourceID),
			zap.Int("errors", len(job.Errors)),
		)
	}
	return job
}

// Status returns the latest snapshot of the source's job, or an idle job
// when nothing ran yet. Nil means the source is unknown.
func (s *TrainingService) Status(sourceID string) *model.TrainingJob {
	if _, ok := s.sourceConfig(sourceID); !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.latest[sourceID]; ok {
		return job.Clone()
	}
	return &model.TrainingJob{SourceID: sourceID, State: model.JobStateIdle}
}

// Cancel asks the running job of the source to stop starting new files.
func (s *TrainingService) Cancel(sourceID string) error {
	if _, ok := s.sourceConfig(sourceID); !ok {
		return appErr.ErrNotFound
	}
	s.mu.Lock()
	job, ok := s.active[sourceID]
	s.mu.Unlock()
	if !ok {
		return appErr.ErrInvalid
	}
	job.cancel.Cancel()
	return nil
}

// Running reports whether the source has a job in flight.
func (s *TrainingService) Running(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[sourceID]
	return ok
}

// CancelAll stops every running job from starting new files.
func (s *TrainingService) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.active {
		job.cancel.Cancel()
	}
}

// Wait blocks until every background job has returned.
func (s *TrainingService) Wait() {
	s.wg.Wait()
}
