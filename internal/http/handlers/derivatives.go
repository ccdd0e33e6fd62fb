package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/http/response"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

// GET /api/sessions/:id/derivatives
func (h *SessionHandler) ListDerivatives(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := h.sessions.Derivatives(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"derivatives":               derivativeResponses(s),
		"current_authority_version": s.CurrentAuthorityVersion,
	})
}

// POST /api/sessions/:id/derivatives
func (h *SessionHandler) RecordDerivative(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req derivativeRequest
	if !bindJSON(c, &req, false) {
		return
	}
	d, err := h.sessions.RecordDerivative(c.Request.Context(), types.RecordDerivativeInput{
		SessionID:        id,
		Type:             types.DerivativeType(req.Type),
		InputDescription: req.InputDescription,
		OutputURL:        req.OutputURL,
		LinkedSessions:   req.LinkedSessions,
		CommunityScope:   req.CommunityScope,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"derivative": derivativeResponse{Derivative: d}})
}
