package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GoPolymarket/housevault/internal/middleware"
	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/gin-gonic/gin"
)

type BetHandler struct {
	svc *service.BetService
}

func NewBetHandler(svc *service.BetService) *BetHandler {
	return &BetHandler{svc: svc}
}

func (h *BetHandler) Place(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing game session", nil))
		return
	}
	var req model.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	resp, err := h.svc.Place(c.Request.Context(), session, req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "bet_id", resp.BetID)
	middleware.AddAuditContext(c, "source", resp.Source)
	c.JSON(http.StatusCreated, resp)
}

func (h *BetHandler) Settle(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing game session", nil))
		return
	}
	betID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("bet id must be an unsigned integer"))
		return
	}
	var req model.SettleBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	resp, err := h.svc.Settle(c.Request.Context(), session, betID, req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "bet_id", betID)
	middleware.AddAuditContext(c, "rebalance", resp.Rebalance)
	c.JSON(http.StatusOK, resp)
}

func (h *BetHandler) Open(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing game session", nil))
		return
	}
	bets, err := h.svc.OpenBets(session)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bets)
}

func (h *BetHandler) Get(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing game session", nil))
		return
	}
	betID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("bet id must be an unsigned integer"))
		return
	}
	bet, err := h.svc.Bet(session, betID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bet)
}

func (h *BetHandler) History(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing game session", nil))
		return
	}
	limit := 100
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = parsed
		}
	}
	bets, err := h.svc.History(c.Request.Context(), session, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bets)
}

// Stats reports one game's counters for ?date=YYYY-MM-DD, today by default.
func (h *BetHandler) Stats(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	stats, err := h.svc.DailyStats(c.Request.Context(), c.Param("key"), day)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "house_result": stats.HouseResult()})
}
