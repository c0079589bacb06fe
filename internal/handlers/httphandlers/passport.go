package httphandlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/orchestrator"
)

func (h *HTTPHandler) GetPassport(ctx *gin.Context) {
	account, ok := h.account(ctx)
	if !ok {
		return
	}
	rep, err := h.fetcher.Passport(ctx.Request.Context(), account)
	if err != nil {
		h.fail(ctx, err)
		return
	}

	res := PassportResponse{
		Account:     account.Hex(),
		HasPassport: rep != nil,
		Passport:    rep,
		Badges:      []string{},
	}
	if rep != nil {
		res.Badges = rep.EarnedBadges()
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) MintPassport(ctx *gin.Context) {
	h.runFlow(ctx, func(c context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error) {
		return h.orch.MintPassport(c, opts...)
	})
}
