package httphandlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
)

func (h *HTTPHandler) Connect(ctx *gin.Context) {
	if _, err := h.gateway.Connect(ctx.Request.Context()); err != nil {
		h.fail(ctx, err)
		return
	}
	h.GetSession(ctx)
}

// Disconnect clears the session, the wallet keeps its accounts
func (h *HTTPHandler) Disconnect(ctx *gin.Context) {
	h.gateway.Disconnect()
	h.GetSession(ctx)
}

func (h *HTTPHandler) GetSession(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, SessionResponse{
		Session: h.gateway.Session(),
		Network: h.gateway.Network(),
	})
}

// EnsureNetwork asks the wallet to move to the configured network, adding it when unknown
func (h *HTTPHandler) EnsureNetwork(ctx *gin.Context) {
	expected := h.gateway.Network().ChainID
	ok := h.gateway.EnsureNetwork(ctx.Request.Context(), expected)
	if !ok {
		h.fail(ctx, errors.WrongNetwork("session.network", expected, h.gateway.Session().ChainID))
		return
	}
	ctx.JSON(http.StatusOK, NetworkResponse{OnExpectedNetwork: true, ChainID: expected})
}

func (h *HTTPHandler) GetBalance(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.tracker.View())
}

// CheckAllowance re-reads the allowance for a new input amount and tells whether the action
// will start with an approval
func (h *HTTPHandler) CheckAllowance(ctx *gin.Context) {
	var req AllowanceCheckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}
	owner, ok := h.account(ctx)
	if !ok {
		return
	}
	amount, ok := h.amount(ctx, req.Amount)
	if !ok {
		return
	}

	var spender common.Address
	switch {
	case common.IsHexAddress(req.Spender):
		spender = common.HexToAddress(req.Spender)
	default:
		spender = h.registry.Address(contracts.Name(req.Spender))
		if spender == (common.Address{}) {
			h.badRequest(ctx, contracts.ErrUnknownContract)
			return
		}
	}

	needsApproval, err := h.tracker.OnAmountChanged(ctx.Request.Context(), owner, spender, amount)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	res := AllowanceCheckResponse{NeedsApproval: needsApproval}
	if snap, ok := h.tracker.Allowance(owner, spender); ok {
		res.Allowance = &snap
	}
	ctx.JSON(http.StatusOK, res)
}
