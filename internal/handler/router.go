package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docembed/internal/middleware"
)

type RouterDeps struct {
	Training *TrainingHandler
	// TrainLimit spaces out repeated train triggers per client and source.
	TrainLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/sources", deps.Training.ListSources)
	api.GET("/sources/:id/train", deps.Training.Status)
	api.POST("/sources/:id/train", middleware.RateLimit(deps.TrainLimit), deps.Training.Start)
	api.POST("/sources/:id/train/cancel", deps.Training.Cancel)
}
