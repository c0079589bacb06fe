package httphandlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/orchestrator"
	"github.com/rentchain/rental-client/internal/resources/rental"
)

// GetProperties lists all properties, or those of ?landlord=. Items that could not be read are
// listed in the failed map and reported in the warning, the request still succeeds.
func (h *HTTPHandler) GetProperties(ctx *gin.Context) {
	var (
		batch rental.Batch[rental.Property]
		err   error
	)
	if landlord := ctx.Query("landlord"); landlord != "" {
		if !common.IsHexAddress(landlord) {
			h.badRequest(ctx, fmt.Errorf("invalid landlord %q", landlord))
			return
		}
		batch, err = h.fetcher.PropertiesByLandlord(ctx.Request.Context(), common.HexToAddress(landlord))
	} else {
		batch, err = h.fetcher.AllProperties(ctx.Request.Context())
	}
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, batchResponse(batch, "properties"))
}

func (h *HTTPHandler) GetProperty(ctx *gin.Context) {
	id, ok := h.paramID(ctx)
	if !ok {
		return
	}
	p, err := h.fetcher.CachedProperty(ctx.Request.Context(), id)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) RegisterProperty(ctx *gin.Context) {
	var req RegisterPropertyRequest
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
	reg := req.PropertyRegistration
	reg.MonthlyRent = rent
	reg.SecurityDeposit = deposit

	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.RegisterProperty(c, reg, opts...)
	})
}

func (h *HTTPHandler) VerifyProperty(ctx *gin.Context) {
	id, ok := h.paramID(ctx)
	if !ok {
		return
	}
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.VerifyProperty(c, id, opts...)
	})
}

func batchResponse[T any](batch rental.Batch[T], op string) BatchResponse[T] {
	res := BatchResponse[T]{Batch: batch}
	if err := batch.Partial(op); err != nil {
		res.Warning = errors.UserMessage(err)
	}
	return res
}
