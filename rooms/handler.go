package rooms

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/WalidA2D/NEURALINKED/domain"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(ctx *gin.Context) {
	record, err := h.service.Create(ctx.Request.Context(), ctx.GetString("id"))
	if err != nil {
		log.Error().Err(err).Msg("room creation failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	ctx.JSON(http.StatusCreated, record)
}

type joinRequest struct {
	Code string `json:"code"`
}

func (h *Handler) Join(ctx *gin.Context) {
	var req joinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || !IsValidCode(req.Code) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-room-code"})
		return
	}

	record, err := h.service.Join(ctx.Request.Context(), req.Code, ctx.GetString("id"))
	if err != nil {
		h.writeRoomError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, record)
}

func (h *Handler) Start(ctx *gin.Context) {
	code := ctx.Param("code")
	if !IsValidCode(code) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-room-code"})
		return
	}

	if err := h.service.Start(ctx.Request.Context(), code, ctx.GetString("id")); err != nil {
		h.writeRoomError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) Get(ctx *gin.Context) {
	code := ctx.Param("code")
	if !IsValidCode(code) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-room-code"})
		return
	}

	record, err := h.service.Get(ctx.Request.Context(), code)
	if err != nil {
		h.writeRoomError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, record)
}

func (h *Handler) Leave(ctx *gin.Context) {
	code := ctx.Param("code")
	if !IsValidCode(code) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-room-code"})
		return
	}

	deleted, err := h.service.Leave(ctx.Request.Context(), code, ctx.GetString("id"))
	if err != nil {
		h.writeRoomError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) Messages(ctx *gin.Context) {
	code := ctx.Param("code")
	if !IsValidCode(code) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-room-code"})
		return
	}

	msgs, err := h.service.History(ctx.Request.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("history lookup failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	ctx.JSON(http.StatusOK, msgs)
}

func (h *Handler) writeRoomError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "room-not-found"})
	case errors.Is(err, domain.ErrRoomNotJoinable):
		ctx.JSON(http.StatusConflict, gin.H{"error": "room-not-joinable"})
	case errors.Is(err, domain.ErrRoomFull):
		ctx.JSON(http.StatusConflict, gin.H{"error": "room-full"})
	case errors.Is(err, domain.ErrAlreadyInRoom):
		ctx.JSON(http.StatusConflict, gin.H{"error": "already-in-room"})
	case errors.Is(err, domain.ErrNotInRoom):
		ctx.JSON(http.StatusConflict, gin.H{"error": "not-in-room"})
	case errors.Is(err, domain.ErrNotHost):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "not-host"})
	case errors.Is(err, domain.ErrNotEnoughPlayers):
		ctx.JSON(http.StatusConflict, gin.H{"error": "not-enough-players"})
	case errors.Is(err, domain.ErrRoomAlreadyStarted):
		ctx.JSON(http.StatusConflict, gin.H{"error": "room-already-started"})
	default:
		log.Error().Err(err).Msg("room operation failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
	}
}
