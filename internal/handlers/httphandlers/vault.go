package httphandlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/orchestrator"
)

// OpenVault starts refreshing the vault position of the session account until the view is closed
func (h *HTTPHandler) OpenVault(ctx *gin.Context) {
	account, ok := h.account(ctx)
	if !ok {
		return
	}
	h.vault.Open(h.ctx, account)
	ctx.JSON(http.StatusOK, h.vault.View())
}

func (h *HTTPHandler) CloseVault(ctx *gin.Context) {
	<-h.vault.Close()
	ctx.JSON(http.StatusOK, h.vault.View())
}

func (h *HTTPHandler) GetVault(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.vault.View())
}

func (h *HTTPHandler) Deposit(ctx *gin.Context) {
	var req AmountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}
	amount, ok := h.amount(ctx, req.Amount)
	if !ok {
		return
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.Deposit(c, amount, opts...)
	})
}

func (h *HTTPHandler) Withdraw(ctx *gin.Context) {
	var req AmountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}
	amount, ok := h.amount(ctx, req.Amount)
	if !ok {
		return
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.Withdraw(c, amount, opts...)
	})
}
