package handler

import (
	"net/http"

	"github.com/GoPolymarket/housevault/internal/middleware"
	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	svc *service.GameService
}

func NewGameHandler(svc *service.GameService) *GameHandler {
	return &GameHandler{svc: svc}
}

func (h *GameHandler) Register(c *gin.Context) {
	var req model.RegisterGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	rec, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "game_key", rec.Key)
	c.JSON(http.StatusCreated, rec)
}

func (h *GameHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List())
}

func (h *GameHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Claim is unauthenticated: the EIP-712 signature of the module is the proof.
func (h *GameHandler) Claim(c *gin.Context) {
	var req model.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	resp, err := h.svc.Claim(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *GameHandler) Unregister(c *gin.Context) {
	if err := h.svc.Unregister(c.Request.Context(), c.Param("key")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GameHandler) UpdateLimits(c *gin.Context) {
	var req model.LimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	rec, err := h.svc.UpdateLimits(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RequestLimits is the game's own limit change and may only tighten them.
func (h *GameHandler) RequestLimits(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing game session", nil))
		return
	}
	var req model.LimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	rec, err := h.svc.RequestLimitUpdate(c.Request.Context(), session, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *GameHandler) Sweep(c *gin.Context) {
	amount, err := h.svc.Sweep(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "swept", amount)
	c.JSON(http.StatusOK, gin.H{"game_key": c.Param("key"), "swept": amount})
}
