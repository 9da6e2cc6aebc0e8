package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"logwhisperer/config"
	"logwhisperer/internal/dto"
	"logwhisperer/internal/model"
	"logwhisperer/internal/report"
	"logwhisperer/internal/service"
	"logwhisperer/internal/util"
)

type ReportController struct {
	pipeline  service.Pipeline
	cfg       *config.Config
	startedAt time.Time
}

func NewReportController(pipeline service.Pipeline, cfg *config.Config) *ReportController {
	return &ReportController{
		pipeline:  pipeline,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

func RegisterReportRoutes(router *gin.Engine, controller *ReportController) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controller.Health)
		v1.GET("/status", controller.GetStatus)
		v1.GET("/reports", controller.ListReports)
		v1.POST("/summarize", controller.Summarize)
	}
}

func (c *ReportController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.NewResponse("ok", nil))
}

// GetStatus reports the running configuration and the last report of this process.
func (c *ReportController) GetStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.StatusResponse{
		Version:    config.Version,
		Source:     c.cfg.Source,
		Model:      c.cfg.Model,
		StartedAt:  c.startedAt,
		LastReport: toReportSummary(c.pipeline.LastReport()),
	})
}

// ListReports returns the markdown reports in the report directory, newest first.
// Optional query parameters: limit caps the list, since (RFC 3339, date or epoch millis)
// drops reports last modified before it.
func (c *ReportController) ListReports(ctx *gin.Context) {
	var query struct {
		Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
		Since string `form:"since"`
	}
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid query parameters: "+err.Error(), nil))
		return
	}

	var since time.Time
	if query.Since != "" {
		t, err := util.ParseTimeFlexible(query.Since)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid since parameter: "+err.Error(), nil))
			return
		}
		since = t
	}

	files, err := report.List(c.cfg.ReportDir)
	if err != nil {
		log.Error().Err(err).Str("dir", c.cfg.ReportDir).Msg("Failed to list reports")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to list reports", nil))
		return
	}

	resp := dto.ReportListResponse{Reports: make([]dto.ReportFile, 0, len(files))}
	for _, f := range files {
		if f.ModTime.Before(since) {
			continue
		}
		resp.Total++
		if query.Limit > 0 && len(resp.Reports) >= query.Limit {
			break
		}
		resp.Reports = append(resp.Reports, dto.ReportFile{Name: f.Name, Size: f.Size, ModTime: f.ModTime})
	}
	ctx.JSON(http.StatusOK, resp)
}

// Summarize runs one cycle right away. Only one cycle runs at a time: a request arriving
// during a cycle gets 409.
func (c *ReportController) Summarize(ctx *gin.Context) {
	r, err := c.pipeline.RunCycle(ctx.Request.Context())
	switch {
	case errors.Is(err, service.ErrCycleInProgress):
		ctx.JSON(http.StatusConflict, model.NewResponse(err.Error(), nil))
	case errors.Is(err, service.ErrNoMessages):
		ctx.Status(http.StatusNoContent)
	case err != nil:
		log.Error().Err(err).Msg("On-demand summarization failed")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Summarization failed", toReportSummary(r)))
	default:
		ctx.JSON(http.StatusOK, toReportSummary(r))
	}
}

func toReportSummary(r *model.Report) *dto.ReportSummary {
	if r == nil {
		return nil
	}
	return &dto.ReportSummary{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Source:       r.Source,
		Model:        r.Model,
		Summary:      r.Summary,
		Failed:       r.Failed(),
		MessageCount: r.MessageCount,
		Path:         r.Path,
	}
}
