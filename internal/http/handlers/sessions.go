package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/http/response"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
	"github.com/yungbote/gmr-archive-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions services.SessionService
}

func NewSessionHandler(log *logger.Logger, sessions services.SessionService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		sessions: sessions,
	}
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if !bindJSON(c, &req, true) {
		return
	}
	s, err := h.sessions.Create(c.Request.Context(), types.CreateDraftInput{
		Descriptive: req.descriptive(),
		Bodies:      req.bodies(),
		Authority:   req.Authority.patch(),
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"session": newSessionResponse(s)})
}

// GET /api/sessions?status=&limit=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	status := types.SessionStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	list, err := h.sessions.List(dbctx.Context{Ctx: c.Request.Context()}, status, limit)
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

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": newSessionResponse(s)})
}

// PATCH /api/sessions/:id
// Authority fields never edit the ledger in place; they append a new version.
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req sessionRequest
	if !bindJSON(c, &req, false) {
		return
	}
	s, err := h.sessions.Update(c.Request.Context(), types.UpdateSessionInput{
		SessionID:       id,
		Descriptive:     req.descriptive(),
		Bodies:          req.bodies(),
		Authority:       req.Authority.patch(),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": newSessionResponse(s)})
}

// POST /api/sessions/:id/deposit
func (h *SessionHandler) DepositSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req depositRequest
	if !bindJSON(c, &req, true) {
		return
	}
	in := types.DepositInput{SessionID: id}
	if req.Authority != nil {
		p := req.Authority.patch()
		in.Authority = &p
	}
	s, err := h.sessions.Deposit(c.Request.Context(), in)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": newSessionResponse(s)})
}

// POST /api/sessions/:id/review
func (h *SessionHandler) RequestReview(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	if !bindJSON(c, &req, true) {
		return
	}
	s, err := h.sessions.RequestReview(c.Request.Context(), types.ReviewInput{SessionID: id, Reason: req.Reason})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": newSessionResponse(s)})
}

// POST /api/sessions/:id/review/resolve
func (h *SessionHandler) ResolveReview(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := h.sessions.ResolveReview(c.Request.Context(), types.TransitionInput{SessionID: id})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": newSessionResponse(s)})
}

// POST /api/sessions/:id/withdraw
func (h *SessionHandler) WithdrawSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := h.sessions.Withdraw(c.Request.Context(), types.TransitionInput{SessionID: id})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": newSessionResponse(s)})
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		respondValidation(c, fmt.Sprintf("invalid session id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into dst. When optional is set an empty body is
// accepted as the zero request.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondValidation(c, err.Error())
		return false
	}
	return true
}

func respondValidation(c *gin.Context, msg string) {
	response.RespondAggregateError(c, domainagg.NewError(domainagg.CodeValidation, "Archive.HTTP.Bind", msg, nil))
}

// limitQuery reads ?limit=; zero means the repo default.
func limitQuery(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondValidation(c, "invalid limit")
		return 0, false
	}
	return n, true
}
