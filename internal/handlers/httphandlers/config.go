package httphandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/config"
)

func (h *HTTPHandler) GetConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, ConfigResponse{
		Version: config.BuildVersion,
		Config:  h.config.GetSanitized(),
	})
}
