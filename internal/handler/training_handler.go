package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/model"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
	"github.com/xxxsen/docembed/internal/pkg/response"
)

type TrainingController interface {
	Sources() []config.SourceConfig
	Start(ctx context.Context, sourceID string) (*model.TrainingJob, error)
	Status(sourceID string) *model.TrainingJob
	Cancel(sourceID string) error
	Running(sourceID string) bool
}

type TrainingHandler struct {
	training TrainingController
}

func NewTrainingHandler(training TrainingController) *TrainingHandler {
	return &TrainingHandler{training: training}
}

type sourceView struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	TeamID    string `json:"team_id"`
	Type      string `json:"type"`
	Cron      string `json:"cron,omitempty"`
	Running   bool   `json:"running"`
}

func (h *TrainingHandler) ListSources(c *gin.Context) {
	sources := h.training.Sources()
	items := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		items = append(items, sourceView{
			ID:        src.ID,
			ProjectID: src.ProjectID,
			TeamID:    src.TeamID,
			Type:      src.Type,
			Cron:      src.Cron,
			Running:   h.training.Running(src.ID),
		})
	}
	response.Success(c, items)
}

func (h *TrainingHandler) Start(c *gin.Context) {
	job, err := h.training.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, job)
}

func (h *TrainingHandler) Status(c *gin.Context) {
	job := h.training.Status(c.Param("id"))
	if job == nil {
		handleError(c, appErr.ErrNotFound)
		return
	}
	response.Success(c, job)
}

func (h *TrainingHandler) Cancel(c *gin.Context) {
	sourceID := c.Param("id")
	if err := h.training.Cancel(sourceID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, h.training.Status(sourceID))
}
