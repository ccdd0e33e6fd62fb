package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/http/response"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

// GET /api/archive?tier=all|community|public&limit=
func (h *SessionHandler) BrowseArchive(c *gin.Context) {
	tier := strings.ToLower(strings.TrimSpace(c.Query("tier")))
	if tier == "all" {
		tier = ""
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	list, err := h.sessions.Browse(dbctx.Context{Ctx: c.Request.Context()}, types.VisibilityTier(tier), limit)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, newSessionResponse(s))
	}
	response.RespondOK(c, gin.H{"sessions": out})
}
