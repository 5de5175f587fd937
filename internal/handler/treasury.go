package handler

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/housevault/internal/middleware"
	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type TreasuryHandler struct {
	treasury *treasury.Treasury
	payouts  *service.PayoutLedger
}

func NewTreasuryHandler(t *treasury.Treasury, payouts *service.PayoutLedger) *TreasuryHandler {
	return &TreasuryHandler{treasury: t, payouts: payouts}
}

func (h *TreasuryHandler) Deposit(c *gin.Context) {
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.treasury.DepositToCentral(req.Amount); err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "deposit", req.Amount)
	c.JSON(http.StatusOK, gin.H{"deposited": req.Amount, "central": h.treasury.CentralBalance()})
}

func (h *TreasuryHandler) Redeem(c *gin.Context) {
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	amount, err := h.treasury.RedeemFromCentral(req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "redeem", amount)
	c.JSON(http.StatusOK, gin.H{"redeemed": amount, "central": h.treasury.CentralBalance()})
}

// NAV returns a consistent snapshot of every partition. With ?supply=N it
// also reports the value of one investor share.
func (h *TreasuryHandler) NAV(c *gin.Context) {
	snap := h.treasury.Snapshot()
	resp := gin.H{"nav": snap}
	if raw := c.Query("supply"); raw != "" {
		supply, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("supply must be an unsigned integer"))
			return
		}
		resp["per_share"] = snap.PerShare(supply).String()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TreasuryHandler) Balance(c *gin.Context) {
	snap := h.treasury.Snapshot()
	c.JSON(http.StatusOK, gin.H{"total": snap.Total, "central": snap.Central})
}

func (h *TreasuryHandler) GameBalance(c *gin.Context) {
	balance, err := h.treasury.PerGameBalance(c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_key": c.Param("key"), "balance": balance})
}

func (h *TreasuryHandler) Payouts(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.Error(apperrors.NewInvalidRequest("address must be a hex address"))
		return
	}
	c.JSON(http.StatusOK, h.payouts.Payouts(common.HexToAddress(raw)))
}
