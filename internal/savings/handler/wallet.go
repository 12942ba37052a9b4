package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/internal/savings/service"
	"github.com/samiecode/babylon/pkg/common"
	"github.com/samiecode/babylon/pkg/xerr"
)

type Wallet struct {
	Wallets *service.WalletService
}

func (h *Wallet) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	ws, err := h.Wallets.List(c.Request.Context(), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, ws)
}

type createWalletReq struct {
	Address  string `json:"address"`
	Label    string `json:"label"`
	IsActive *bool  `json:"isActive"`
	UserID   string `json:"userId"`
	ChainID  int64  `json:"chainId"`
}

func (h *Wallet) Create(c *gin.Context) {
	var req createWalletReq
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		fail(c, xerr.Validation("address", "Address is required"))
		return
	}
	w, err := h.Wallets.Create(c.Request.Context(), service.CreateWalletInput{
		Address:  req.Address,
		Label:    req.Label,
		IsActive: req.IsActive,
		UserID:   req.UserID,
		ChainID:  req.ChainID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.JSON(c, http.StatusCreated, w)
}

type autoRegisterReq struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	ChainID int64  `json:"chainId"`
}

func (h *Wallet) AutoRegister(c *gin.Context) {
	var req autoRegisterReq
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		fail(c, xerr.Validation("address", "Address is required"))
		return
	}
	res, err := h.Wallets.AutoRegister(c.Request.Context(), req.Address, req.Label, req.ChainID)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyExists {
		status = http.StatusOK
	}
	common.JSON(c, status, res)
}
