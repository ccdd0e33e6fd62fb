package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/http/response"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

// GET /api/sessions/:id/delegates
func (h *SessionHandler) ListDelegates(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	list, err := h.sessions.Delegations(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	if list == nil {
		list = []types.AuthorityDelegation{}
	}
	response.RespondOK(c, gin.H{"delegates": list})
}

// POST /api/sessions/:id/delegates
// body: { "delegateId": "..." }
func (h *SessionHandler) GrantDelegate(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req delegateRequest
	if !bindJSON(c, &req, false) {
		return
	}
	d, err := h.sessions.GrantDelegation(c.Request.Context(), types.DelegationInput{
		SessionID:  id,
		DelegateID: strings.TrimSpace(req.DelegateID),
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"delegate": d})
}

// DELETE /api/sessions/:id/delegates/:delegateId
func (h *SessionHandler) RevokeDelegate(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	delegateID := strings.TrimSpace(c.Param("delegateId"))
	if delegateID == "" {
		respondValidation(c, "missing delegate id")
		return
	}
	if err := h.sessions.RevokeDelegation(c.Request.Context(), types.DelegationInput{
		SessionID:  id,
		DelegateID: delegateID,
	}); err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
