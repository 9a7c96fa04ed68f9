package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/docembed/internal/model"
)

type Trainer interface {
	Train(ctx context.Context, sourceID string) (*model.TrainingJob, error)
}

// SourceTrainingJob re-ingests one source on a schedule.
type SourceTrainingJob struct {
	trainer  Trainer
	sourceID string
}

func NewSourceTrainingJob(trainer Trainer, sourceID string) *SourceTrainingJob {
	return &SourceTrainingJob{trainer: trainer, sourceID: sourceID}
}

func (j *SourceTrainingJob) Name() string {
	return "source_training:" + j.sourceID
}

func (j *SourceTrainingJob) Run(ctx context.Context) error {
	job, err := j.trainer.Train(ctx, j.sourceID)
	if err != nil {
		return err
	}
	if job.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", job.Failed, job.Total)
	}
	return nil
}
