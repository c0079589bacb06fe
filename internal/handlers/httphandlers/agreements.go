package httphandlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/orchestrator"
)

// GetAgreements lists the agreements where ?account= (or the session account) is landlord or tenant
func (h *HTTPHandler) GetAgreements(ctx *gin.Context) {
	account, ok := h.account(ctx)
	if !ok {
		return
	}
	batch, err := h.fetcher.AgreementsFor(ctx.Request.Context(), account)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, batchResponse(batch, "agreements"))
}

func (h *HTTPHandler) GetAgreement(ctx *gin.Context) {
	id, ok := h.paramID(ctx)
	if !ok {
		return
	}
	a, err := h.fetcher.CachedAgreement(ctx.Request.Context(), id)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, a)
}

func (h *HTTPHandler) GetFactoryStats(ctx *gin.Context) {
	stats, err := h.fetcher.FactoryStats(ctx.Request.Context())
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func (h *HTTPHandler) CreateAgreement(ctx *gin.Context) {
	var req CreateAgreementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}
	rent, ok := h.amount(ctx, req.MonthlyRent)
	if !ok {
		return
	}
	deposit, ok := h.amount(ctx, req.SecurityDeposit)
	if !ok {
		return
	}
	create := orchestrator.CreateAgreementRequest{
		PropertyID:      req.PropertyID,
		Tenant:          common.HexToAddress(req.Tenant),
		MonthlyRent:     rent,
		SecurityDeposit: deposit,
		DurationMonths:  req.DurationMonths,
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.CreateAgreement(c, create, opts...)
	})
}

func (h *HTTPHandler) SignAgreement(ctx *gin.Context) {
	id, ok := h.paramID(ctx)
	if !ok {
		return
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.SignAgreement(c, id, opts...)
	})
}

func (h *HTTPHandler) PaySecurityDeposit(ctx *gin.Context) {
	id, ok := h.paramID(ctx)
	if !ok {
		return
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.PaySecurityDeposit(c, id, opts...)
	})
}

func (h *HTTPHandler) PayRent(ctx *gin.Context) {
	id, ok := h.paramID(ctx)
	if !ok {
		return
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.PayRent(c, id, opts...)
	})
}
