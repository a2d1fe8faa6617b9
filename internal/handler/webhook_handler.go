package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakchai-dev/school-grading-api/internal/service"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/response"
)

// WebhookHandler exposes the score ingestion webhook and token minting.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Ingest godoc
// @Summary Ingest a score pushed by an external form tool
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param payload body service.ScoreEvent true "Score event"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /webhooks/scores [post]
func (h *WebhookHandler) Ingest(c *gin.Context) {
	var event service.ScoreEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.webhooks.Ingest(c.Request.Context(), event)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MintToken godoc
// @Summary Issue a capability token for an external form
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param payload body service.MintTokenRequest true "Token request"
// @Success 201 {object} response.Envelope
// @Router /webhooks/tokens [post]
func (h *WebhookHandler) MintToken(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.MintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	minted, err := h.webhooks.MintToken(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, minted)
}
