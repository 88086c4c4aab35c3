package handlers

import (
	"net/http"

	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/models"
	"hvac_gateway/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options tunes the HTTP layer. Zero values get defaults.
type Options struct {
	// Policy gives the minimum role per operation; nil means models.DefaultPolicy.
	Policy models.Policy
	// RateLimit is the allowed mutations per second per client IP; <= 0 disables limiting.
	RateLimit float64
	Burst     int
	// CORSOrigins lists allowed origins; empty or "*" allows any.
	CORSOrigins []string
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	policy   models.Policy
	origins  []string
	limiter  *ipRateLimiter
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Policy == nil {
		opts.Policy = models.DefaultPolicy()
	}
	h := &Handler{
		services: services,
		log:      log,
		policy:   opts.Policy,
		origins:  opts.CORSOrigins,
	}
	if opts.RateLimit > 0 {
		h.limiter = newIPRateLimiter(opts.RateLimit, opts.Burst)
	}
	return h
}

// route is one gated endpoint of the control surface.
type route struct {
	method  string
	path    string
	op      models.Operation
	handler gin.HandlerFunc
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(
		h.recovery(),
		h.requestID,
		h.accessLog,
		h.cors,
		h.errorResponder,
	)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	// Token issuance authenticates on its own: it accepts a JSON body as well as Basic.
	router.POST("/auth/token", h.rateLimit, h.issueToken)

	for _, rt := range h.routes() {
		chain := make([]gin.HandlerFunc, 0, 4)
		if rt.method != http.MethodGet {
			chain = append(chain, h.rateLimit)
		}
		chain = append(chain, h.authenticate, h.require(rt.op), rt.handler)
		router.Handle(rt.method, rt.path, chain...)
	}

	return router
}

func (h *Handler) routes() []route {
	return []route{
		{http.MethodGet, "/temperatureHe/:number", models.OpReadTemperatureHe, h.getTemperatureHe},
		{http.MethodGet, "/temperatureOutside", models.OpReadTemperatureOutside, h.getTemperatureOutside},
		{http.MethodGet, "/temperatureInside", models.OpReadTemperatureInside, h.getTemperatureInside},
		{http.MethodGet, "/temperatureFeed", models.OpReadTemperatureFeed, h.getTemperatureFeed},
		{http.MethodPost, "/temperatureFeed", models.OpSetTemperatureFeed, h.setTemperatureFeed},
		{http.MethodGet, "/hysteresis", models.OpReadHysteresis, h.getHysteresis},
		{http.MethodPost, "/hysteresis", models.OpSetHysteresis, h.setHysteresis},
		{http.MethodGet, "/mode", models.OpReadMode, h.getMode},
		{http.MethodPost, "/mode", models.OpSetMode, h.setMode},
		{http.MethodGet, "/valve/:number", models.OpReadValve, h.getValve},
		{http.MethodPost, "/valve/:number", models.OpSetValve, h.setValve},
		{http.MethodGet, "/valveActivated/:number", models.OpReadValveActivated, h.getValveActivated},
		{http.MethodPost, "/valveActivated/:number", models.OpSetValveActivated, h.setValveActivated},
		{http.MethodGet, "/fullState", models.OpReadFullState, h.getFullState},
		{http.MethodGet, "/suAccess", models.OpReadSuAccess, h.getSuAccess},
		{http.MethodGet, "/logs", models.OpReadLogs, h.getLogs},
		{http.MethodGet, "/ws", models.OpReadFullState, h.wsConnect},
	}
}

// @Summary      Health check
// @Description  Reports whether the device snapshot has been populated and when it was last refreshed.
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	st := h.services.Status()
	status := statusOK
	switch {
	case !st.Populated:
		status = statusStarting
	case st.LastError != "":
		status = statusDegraded
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"cache":  st,
	})
}
