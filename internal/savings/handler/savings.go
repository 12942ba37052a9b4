package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/internal/savings/service"
	"github.com/samiecode/babylon/pkg/common"
	"github.com/samiecode/babylon/pkg/xerr"
)

type Savings struct {
	Config      *service.ConfigService
	Auth        *service.AuthorizationService
	Withdrawals *service.WithdrawalService
	Overview    *service.OverviewService
}

type configReq struct {
	WalletAddress          string `json:"walletAddress"`
	SavingPercentBps       *int   `json:"savingPercentBps"`
	WithdrawalDelaySeconds *int64 `json:"withdrawalDelaySeconds"`
}

func (h *Savings) Configure(c *gin.Context) {
	var req configReq
	if !bind(c, &req) {
		return
	}
	if req.SavingPercentBps == nil {
		fail(c, xerr.Validation("savingPercentBps", "savingPercentBps is required"))
		return
	}
	if req.WithdrawalDelaySeconds == nil {
		fail(c, xerr.Validation("withdrawalDelaySeconds", "withdrawalDelaySeconds is required"))
		return
	}
	res, err := h.Config.Configure(c.Request.Context(), service.SaverConfig{
		WalletAddress:          req.WalletAddress,
		SavingPercentBps:       *req.SavingPercentBps,
		WithdrawalDelaySeconds: *req.WithdrawalDelaySeconds,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, gin.H{"user": res.User, "wallet": res.Wallet, "transactionHash": res.VaultTxHash})
}

type resyncReq struct {
	WalletAddress string `json:"walletAddress"`
}

func (h *Savings) Resync(c *gin.Context) {
	var req resyncReq
	if !bind(c, &req) {
		return
	}
	res, err := h.Config.Resync(c.Request.Context(), req.WalletAddress)
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, gin.H{"user": res.User, "wallet": res.Wallet, "transactionHash": res.VaultTxHash})
}

type authorizeReq struct {
	TransactionID string `json:"transactionId"`
	Action        string `json:"action"`
	AmountWei     Wei    `json:"amountWei"`
	Reason        string `json:"reason"`
}

func (h *Savings) Authorize(c *gin.Context) {
	var req authorizeReq
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		fail(c, xerr.Validation("transactionId", "transactionId is required"))
		return
	}

	var (
		res *service.AuthorizationResult
		err error
	)
	ctx := c.Request.Context()
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "approve":
		res, err = h.Auth.Approve(ctx, req.TransactionID, req.AmountWei.Value())
	case "reject":
		res, err = h.Auth.Reject(ctx, req.TransactionID, req.Reason)
	default:
		err = xerr.Validation("action", "action must be either approve or reject")
	}
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, res)
}

type reconcileReq struct {
	TransactionID string `json:"transactionId"`
}

func (h *Savings) Reconcile(c *gin.Context) {
	var req reconcileReq
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		fail(c, xerr.Validation("transactionId", "transactionId is required"))
		return
	}
	res, err := h.Auth.Reconcile(c.Request.Context(), req.TransactionID)
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, res)
}

type withdrawReq struct {
	Action        string `json:"action"`
	UserID        string `json:"userId"`
	WalletAddress string `json:"walletAddress"`
	AmountWei     Wei    `json:"amountWei"`
}

func (h *Savings) Withdraw(c *gin.Context) {
	var req withdrawReq
	if !bind(c, &req) {
		return
	}

	var (
		res *service.WithdrawalView
		err error
	)
	ctx := c.Request.Context()
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "request":
		res, err = h.Withdrawals.Request(ctx, req.UserID, req.WalletAddress, req.AmountWei.Value())
	case "execute":
		res, err = h.Withdrawals.Execute(ctx, req.UserID, req.WalletAddress)
	case "cancel":
		res, err = h.Withdrawals.Cancel(ctx, req.UserID, req.WalletAddress)
	case "reconcile":
		res, err = h.Withdrawals.Reconcile(ctx, req.UserID, req.WalletAddress)
	default:
		err = xerr.Validation("action", "action must be request, execute, cancel or reconcile")
	}
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, res)
}

func (h *Savings) ListWithdrawals(c *gin.Context) {
	rs, err := h.Withdrawals.List(c.Request.Context(), c.Query("userId"), c.Query("walletAddress"))
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, rs)
}

func (h *Savings) GetOverview(c *gin.Context) {
	ov, err := h.Overview.Get(c.Request.Context(), c.Query("address"))
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, ov)
}
