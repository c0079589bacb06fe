package httphandlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentchain/rental-client/internal/errors"
)

func newFlowID() string {
	return uuid.NewString()
}

func (h *HTTPHandler) GetFlows(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.orch.RecentFlows())
}

// GetFlow returns the latest status of a flow started with ?async=true
func (h *HTTPHandler) GetFlow(ctx *gin.Context) {
	id := ctx.Param("ID")
	if _, err := uuid.Parse(id); err != nil {
		h.badRequest(ctx, fmt.Errorf("invalid flow id %q", id))
		return
	}
	status, ok := h.orch.FlowStatus(id)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "flow not found", Kind: errors.KindInvalidRequest})
		return
	}
	ctx.JSON(http.StatusOK, status)
}
