package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/WalidA2D/NEURALINKED/domain"
)

const TokenCookie = "token"

type Handler struct {
	service       AuthService
	cookieMaxAge  int
	secureCookies bool
}

func NewHandler(service AuthService, cookieMaxAge int, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		cookieMaxAge:  cookieMaxAge,
		secureCookies: secureCookies,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Signup(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-body"})
		return
	}

	id, err := h.service.Signup(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidUsername):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-username"})
		case errors.Is(err, domain.ErrPasswordTooShort):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "password-too-short"})
		case errors.Is(err, domain.ErrPasswordTooLong):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "password-too-long"})
		case errors.Is(err, domain.ErrDuplicateUsername):
			ctx.JSON(http.StatusConflict, gin.H{"error": "username-taken"})
		default:
			log.Error().Err(err).Msg("signup failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) Login(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid-body"})
		return
	}

	user, err := h.service.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid-credentials"})
		default:
			log.Error().Err(err).Msg("login failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		}
		return
	}

	token, err := h.service.Token(user.Id)
	if err != nil {
		log.Error().Err(err).Msg("token generation failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	ctx.SetCookie(TokenCookie, token, h.cookieMaxAge, "/", "", h.secureCookies, true)
	ctx.JSON(http.StatusOK, gin.H{"id": user.Id, "username": user.Username})
}

func (h *Handler) Logout(ctx *gin.Context) {
	ctx.SetCookie(TokenCookie, "", -1, "/", "", h.secureCookies, true)
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) Me(ctx *gin.Context) {
	id := ctx.GetString("id")

	user, err := h.service.UserById(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user-not-found"})
		default:
			log.Error().Err(err).Msg("me lookup failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": user.Id, "username": user.Username})
}

// RequireAuth verifies the token cookie and stores the user id in the
// gin context under "id".
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(TokenCookie)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := h.service.VerifyToken(token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx.Set("id", id)
		ctx.Next()
	}
}
