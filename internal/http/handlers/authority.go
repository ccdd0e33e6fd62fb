package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/http/response"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

// GET /api/sessions/:id/authority
func (h *SessionHandler) ListAuthority(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	history, err := h.sessions.AuthorityHistory(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": history})
}

// GET /api/sessions/:id/authority/:version
func (h *SessionHandler) GetAuthorityVersion(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(c.Param("version")))
	if err != nil || n < 1 {
		respondValidation(c, "version must be a positive integer")
		return
	}
	v, err := h.sessions.AuthorityVersion(dbctx.Context{Ctx: c.Request.Context()}, id, n)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}

// POST /api/sessions/:id/authority
// body: { "expectedVersion": 2, "computed_visibility": "community", "reason": "..." }
func (h *SessionHandler) AppendAuthority(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req appendAuthorityRequest
	if !bindJSON(c, &req, false) {
		return
	}
	v, err := h.sessions.AppendAuthority(c.Request.Context(), types.AppendAuthorityInput{
		SessionID:       id,
		ExpectedVersion: req.ExpectedVersion,
		Patch:           req.authorityRequest.patch(),
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"version": v})
}
