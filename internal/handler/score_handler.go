package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakchai-dev/school-grading-api/internal/service"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/response"
)

// ScoreHandler exposes score entry endpoints.
type ScoreHandler struct {
	scores *service.ScoreService
}

// NewScoreHandler constructs handler.
func NewScoreHandler(scores *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// Upsert godoc
// @Summary Record one score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.UpsertScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /scores [post]
func (h *ScoreHandler) Upsert(c *gin.Context) {
	var req service.UpsertScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Bulk godoc
// @Summary Record a batch of scores atomically
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.BulkScoresRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /scores/bulk [post]
func (h *ScoreHandler) Bulk(c *gin.Context) {
	var req service.BulkScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	count, err := h.scores.BulkUpsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"saved": count}, nil)
}

// Group godoc
// @Summary Record a group assignment score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.UpsertGroupScoreRequest true "Group score payload"
// @Success 200 {object} response.Envelope
// @Router /scores/group [post]
func (h *ScoreHandler) Group(c *gin.Context) {
	var req service.UpsertGroupScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.UpsertGroupScore(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Qualitative godoc
// @Summary Record a rubric rating
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.UpsertQualitativeRequest true "Rubric payload"
// @Success 200 {object} response.Envelope
// @Router /scores/qualitative [post]
func (h *ScoreHandler) Qualitative(c *gin.Context) {
	var req service.UpsertQualitativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.UpsertQualitative(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}
