package httphandlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rentchain/rental-client/internal/chain"
	"github.com/rentchain/rental-client/internal/config"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/metrics"
	"github.com/rentchain/rental-client/internal/notify"
	"github.com/rentchain/rental-client/internal/orchestrator"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources/balance"
	"github.com/rentchain/rental-client/internal/resources/rental"
	"github.com/rentchain/rental-client/internal/resources/vault"
)

type Sanitizable interface {
	GetSanitized() interface{}
}

type HTTPHandler struct {
	// ctx outlives requests, asynchronous flows and view polling run under it
	ctx context.Context

	gateway  *chain.Gateway
	registry *contracts.Registry
	tracker  *balance.Tracker
	vault    *vault.Reconciler
	fetcher  *rental.Fetcher
	orch     *orchestrator.Orchestrator
	hub      *notify.Hub
	config   Sanitizable
	log      interfaces.ILogger
}

func NewHTTPHandler(ctx context.Context, gateway *chain.Gateway, registry *contracts.Registry, tracker *balance.Tracker, reconciler *vault.Reconciler, fetcher *rental.Fetcher, orch *orchestrator.Orchestrator, hub *notify.Hub, cfg Sanitizable, log interfaces.ILogger) *gin.Engine {
	handl := &HTTPHandler{
		ctx:      ctx,
		gateway:  gateway,
		registry: registry,
		tracker:  tracker,
		vault:    reconciler,
		fetcher:  fetcher,
		orch:     orch,
		hub:      hub,
		config:   cfg,
		log:      log,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthcheck", handl.HealthCheck)
	r.GET("/config", handl.GetConfig)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/notifications", handl.GetNotifications)
	r.GET("/notifications/stream", handl.StreamNotifications)
	r.GET("/flows", handl.GetFlows)
	r.GET("/flows/:ID", handl.GetFlow)

	r.POST("/session/connect", handl.Connect)
	r.POST("/session/disconnect", handl.Disconnect)
	r.GET("/session", handl.GetSession)
	r.POST("/session/network", handl.EnsureNetwork)

	r.GET("/balance", handl.GetBalance)
	r.POST("/allowance/check", handl.CheckAllowance)

	r.POST("/vault/open", handl.OpenVault)
	r.POST("/vault/close", handl.CloseVault)
	r.GET("/vault", handl.GetVault)
	r.POST("/vault/deposit", handl.Deposit)
	r.POST("/vault/withdraw", handl.Withdraw)

	r.GET("/properties", handl.GetProperties)
	r.GET("/properties/:ID", handl.GetProperty)
	r.POST("/properties", handl.RegisterProperty)
	r.POST("/properties/:ID/verify", handl.VerifyProperty)

	r.GET("/agreements", handl.GetAgreements)
	r.GET("/agreements/stats", handl.GetFactoryStats)
	r.GET("/agreements/:ID", handl.GetAgreement)
	r.POST("/agreements", handl.CreateAgreement)
	r.POST("/agreements/:ID/sign", handl.SignAgreement)
	r.POST("/agreements/:ID/deposit", handl.PaySecurityDeposit)
	r.POST("/agreements/:ID/rent", handl.PayRent)

	r.GET("/passport", handl.GetPassport)
	r.POST("/passport/mint", handl.MintPassport)

	err := r.SetTrustedProxies(nil)
	if err != nil {
		panic(err)
	}

	return r
}

func (h *HTTPHandler) HealthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": config.BuildVersion,
	})
}

func (h *HTTPHandler) GetNotifications(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	ctx.JSON(http.StatusOK, h.hub.Recent(limit))
}

const notificationStreamBuffer = 16

// StreamNotifications replays the recent history as server-sent events, oldest first, then
// forwards new notifications until the client goes away
func (h *HTTPHandler) StreamNotifications(ctx *gin.Context) {
	notes, unsubscribe := h.hub.Subscribe(notificationStreamBuffer)
	defer unsubscribe()

	limit, _ := strconv.Atoi(ctx.Query("limit"))
	recent := h.hub.Recent(limit)
	replayed := make(map[string]bool, len(recent))

	ctx.Header("Cache-Control", "no-cache")
	ctx.Status(http.StatusOK)
	for i := len(recent) - 1; i >= 0; i-- {
		replayed[recent[i].ID] = true
		ctx.SSEvent("notification", recent[i])
	}
	ctx.Writer.Flush()

	for {
		select {
		case <-ctx.Request.Context().Done():
			return
		case <-h.ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			if replayed[n.ID] {
				continue
			}
			ctx.SSEvent("notification", n)
			ctx.Writer.Flush()
		}
	}
}

// fail writes err with the status of its kind and the user facing message
func (h *HTTPHandler) fail(ctx *gin.Context, err error) {
	res := ErrorResponse{
		Error:     errors.UserMessage(err),
		Kind:      errors.KindOf(err),
		Retriable: errors.IsRetriable(err),
	}

	var e *errors.Error
	if stderrors.As(err, &e) {
		res.Details = e.Details
	}
	var flowErr *orchestrator.FlowError
	if stderrors.As(err, &flowErr) {
		res.Error = flowErr.Error()
		res.Flow = gin.H{
			"flowId":     flowErr.FlowID,
			"flow":       flowErr.Flow,
			"completed":  flowErr.Completed,
			"failedStep": flowErr.FailedStep,
		}
	}

	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s: %s", ctx.Request.Method, ctx.Request.URL.Path, err)
	}
	ctx.AbortWithStatusJSON(status, res)
}

func (h *HTTPHandler) badRequest(ctx *gin.Context, err error) {
	h.fail(ctx, errors.InvalidRequest(ctx.Request.URL.Path, err.Error()))
}

func (h *HTTPHandler) paramID(ctx *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(ctx.Param("ID"), 10, 64)
	if err != nil {
		h.badRequest(ctx, fmt.Errorf("invalid id %q", ctx.Param("ID")))
		return 0, false
	}
	return id, true
}

// account resolves the ?account= query, falling back to the session account
func (h *HTTPHandler) account(ctx *gin.Context) (common.Address, bool) {
	if q := ctx.Query("account"); q != "" {
		if !common.IsHexAddress(q) {
			h.badRequest(ctx, fmt.Errorf("invalid account %q", q))
			return common.Address{}, false
		}
		return common.HexToAddress(q), true
	}
	session := h.gateway.Session()
	if !session.IsConnected {
		h.fail(ctx, errors.NoSigner(ctx.Request.URL.Path))
		return common.Address{}, false
	}
	return session.Address, true
}

// amount parses a human readable amount in token units
func (h *HTTPHandler) amount(ctx *gin.Context, value string) (*big.Int, bool) {
	amount, err := lib.ParseUnits(value, h.registry.Decimals(contracts.Token))
	if err != nil {
		h.badRequest(ctx, err)
		return nil, false
	}
	return amount, true
}

func isAsync(ctx *gin.Context) bool {
	async, _ := strconv.ParseBool(ctx.Query("async"))
	return async
}

// runFlow runs an orchestrated action. With ?async=true the flow id is returned right away and the
// outcome is published as a notification and through /flows/:ID.
func (h *HTTPHandler) runFlow(ctx *gin.Context, run func(ctx context.Context, opts ...orchestrator.Option) (*orchestrator.Result, error)) {
	if isAsync(ctx) {
		id := newFlowID()
		go func() {
			_, _ = run(h.ctx, orchestrator.WithFlowID(id))
		}()
		ctx.JSON(http.StatusAccepted, FlowAccepted{FlowID: id, Status: string(orchestrator.StateIdle)})
		return
	}

	res, err := run(ctx.Request.Context())
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}
