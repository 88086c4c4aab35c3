package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"hvac_gateway/internal/models"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusStarting = "starting"
	statusDegraded = "degraded"

	errInvalidBodyPref = "invalid body: "
	errNumberPath      = "number must be an integer"
)

// Request DTOs. Fields bind from a JSON body, a form body or the query string.
type (
	floatValueRequest struct {
		Value *float64 `form:"value" json:"value" binding:"required" example:"45.5"`
	}
	boolValueRequest struct {
		Value *bool `form:"value" json:"value" binding:"required" example:"true"`
	}
	modeRequest struct {
		Type string `form:"type" json:"type" binding:"required" example:"autoWinter"`
	}
	valveActionRequest struct {
		Action string `form:"action" json:"action" binding:"required" example:"open"`
	}
)

// fail attaches err for errorResponder and logs it under logKey.
func (h *Handler) fail(c *gin.Context, logKey string, err error, kv ...interface{}) {
	fields := append([]interface{}{"err", err, "request_id", c.GetString(ctxRequestID)}, kv...)
	h.log.Errorw(logKey, fields...)
	_ = c.Error(err)
}

// respond writes v as a JSON scalar, or hands err to errorResponder.
func (h *Handler) respond(c *gin.Context, logKey string, v any, err error) {
	if err != nil {
		h.fail(c, logKey, err, "path", c.Request.URL.Path)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		h.log.Infow("bad_request_body", "path", c.Request.URL.Path, "err", err)
		_ = c.Error(fmt.Errorf("%s%w", errInvalidBodyPref, err))
		return false
	}
	return true
}

// pathNumber parses the :number segment. Range checks belong to the
// service; only the integer syntax is checked here.
func pathNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.String(http.StatusNotFound, errNumberPath)
		return 0, false
	}
	return n, true
}

// @Summary      Heat exchanger temperature
// @Tags         temperature
// @Produce      json
// @Param        number  path      int  true  "Heat exchanger number (1-3)"
// @Success      200     {number}  number
// @Failure      401     {string}  string
// @Failure      500     {string}  string
// @Router       /temperatureHe/{number} [get]
// @Security     BasicAuth
func (h *Handler) getTemperatureHe(c *gin.Context) {
	n, ok := pathNumber(c)
	if !ok {
		return
	}
	v, err := h.services.HeatExchangerTemperature(c.Request.Context(), n)
	h.respond(c, "read_temperature_he_failed", v, err)
}

// @Summary      Outside temperature
// @Tags         temperature
// @Produce      json
// @Success      200  {number}  number
// @Failure      401  {string}  string
// @Failure      500  {string}  string
// @Router       /temperatureOutside [get]
// @Security     BasicAuth
func (h *Handler) getTemperatureOutside(c *gin.Context) {
	v, err := h.services.OutsideTemperature(c.Request.Context())
	h.respond(c, "read_temperature_outside_failed", v, err)
}

// @Summary      Inside temperature
// @Tags         temperature
// @Produce      json
// @Success      200  {number}  number
// @Failure      401  {string}  string
// @Failure      500  {string}  string
// @Router       /temperatureInside [get]
// @Security     BasicAuth
func (h *Handler) getTemperatureInside(c *gin.Context) {
	v, err := h.services.InsideTemperature(c.Request.Context())
	h.respond(c, "read_temperature_inside_failed", v, err)
}

// @Summary      Feed temperature set point
// @Tags         temperature
// @Produce      json
// @Success      200  {number}  number
// @Failure      401  {string}  string
// @Failure      500  {string}  string
// @Router       /temperatureFeed [get]
// @Security     BasicAuth
func (h *Handler) getTemperatureFeed(c *gin.Context) {
	v, err := h.services.FeedTemperature(c.Request.Context())
	h.respond(c, "read_temperature_feed_failed", v, err)
}

// @Summary      Set feed temperature
// @Description  Returns whether the device accepted the new value.
// @Tags         temperature
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body      floatValueRequest  true  "New feed temperature"
// @Success      200   {boolean}  boolean
// @Failure      401   {string}  string
// @Failure      403   {string}  string
// @Failure      500   {string}  string
// @Router       /temperatureFeed [post]
// @Security     BasicAuth
func (h *Handler) setTemperatureFeed(c *gin.Context) {
	var req floatValueRequest
	if !h.bind(c, &req) {
		return
	}
	ok, err := h.services.SetFeedTemperature(c.Request.Context(), *req.Value)
	h.respond(c, "set_temperature_feed_failed", ok, err)
}

// @Summary      Hysteresis
// @Tags         control
// @Produce      json
// @Success      200  {number}  number
// @Failure      401  {string}  string
// @Failure      500  {string}  string
// @Router       /hysteresis [get]
// @Security     BasicAuth
func (h *Handler) getHysteresis(c *gin.Context) {
	v, err := h.services.Hysteresis(c.Request.Context())
	h.respond(c, "read_hysteresis_failed", v, err)
}

// @Summary      Set hysteresis
// @Tags         control
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body       floatValueRequest  true  "New hysteresis"
// @Success      200   {boolean}  boolean
// @Failure      401   {string}   string
// @Failure      403   {string}   string
// @Failure      500   {string}   string
// @Router       /hysteresis [post]
// @Security     BasicAuth
func (h *Handler) setHysteresis(c *gin.Context) {
	var req floatValueRequest
	if !h.bind(c, &req) {
		return
	}
	ok, err := h.services.SetHysteresis(c.Request.Context(), *req.Value)
	h.respond(c, "set_hysteresis_failed", ok, err)
}

// @Summary      Operation mode
// @Tags         control
// @Produce      json
// @Success      200  {string}  string  "manual, autoWinter or autoSummer"
// @Failure      401  {string}  string
// @Failure      500  {string}  string
// @Router       /mode [get]
// @Security     BasicAuth
func (h *Handler) getMode(c *gin.Context) {
	m, err := h.services.Mode(c.Request.Context())
	h.respond(c, "read_mode_failed", m.String(), err)
}

// @Summary      Set operation mode
// @Tags         control
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body       modeRequest  true  "Mode token"
// @Success      200   {boolean}  boolean
// @Failure      401   {string}   string
// @Failure      403   {string}   string
// @Failure      500   {string}   string
// @Router       /mode [post]
// @Security     BasicAuth
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if !h.bind(c, &req) {
		return
	}
	mode, err := models.ParseOperationMode(req.Type)
	if err != nil {
		h.fail(c, "set_mode_failed", err, "type", req.Type)
		return
	}
	ok, err := h.services.SetMode(c.Request.Context(), mode)
	h.respond(c, "set_mode_failed", ok, err)
}

// @Summary      Valve open state
// @Tags         valves
// @Produce      json
// @Param        number  path       int  true  "Valve number (1-4)"
// @Success      200     {boolean}  boolean
// @Failure      401     {string}   string
// @Failure      500     {string}   string
// @Router       /valve/{number} [get]
// @Security     BasicAuth
func (h *Handler) getValve(c *gin.Context) {
	n, ok := pathNumber(c)
	if !ok {
		return
	}
	v, err := h.services.ValveOpen(c.Request.Context(), n)
	h.respond(c, "read_valve_failed", v, err)
}

// @Summary      Open or close a valve
// @Tags         valves
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        number  path       int                 true  "Valve number (1-4)"
// @Param        body    body       valveActionRequest  true  "open or close"
// @Success      200     {boolean}  boolean
// @Failure      401     {string}   string
// @Failure      403     {string}   string
// @Failure      500     {string}   string
// @Router       /valve/{number} [post]
// @Security     BasicAuth
func (h *Handler) setValve(c *gin.Context) {
	n, ok := pathNumber(c)
	if !ok {
		return
	}
	var req valveActionRequest
	if !h.bind(c, &req) {
		return
	}
	action, err := models.ParseValveAction(req.Action)
	if err != nil {
		h.fail(c, "set_valve_failed", err, "action", req.Action)
		return
	}

	ctx := c.Request.Context()
	var accepted bool
	switch action {
	case models.ValveOpen:
		accepted, err = h.services.OpenValve(ctx, n)
	case models.ValveClose:
		accepted, err = h.services.CloseValve(ctx, n)
	}
	h.respond(c, "set_valve_failed", accepted, err)
}

// @Summary      Valve activation
// @Tags         valves
// @Produce      json
// @Param        number  path       int  true  "Valve number (1-4)"
// @Success      200     {boolean}  boolean
// @Failure      401     {string}   string
// @Failure      500     {string}   string
// @Router       /valveActivated/{number} [get]
// @Security     BasicAuth
func (h *Handler) getValveActivated(c *gin.Context) {
	n, ok := pathNumber(c)
	if !ok {
		return
	}
	v, err := h.services.ValveActivated(c.Request.Context(), n)
	h.respond(c, "read_valve_activated_failed", v, err)
}

// @Summary      Activate or deactivate a valve
// @Tags         valves
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        number  path       int               true  "Valve number (1-4)"
// @Param        body    body       boolValueRequest  true  "Activation flag"
// @Success      200     {boolean}  boolean
// @Failure      401     {string}   string
// @Failure      403     {string}   string
// @Failure      500     {string}   string
// @Router       /valveActivated/{number} [post]
// @Security     BasicAuth
func (h *Handler) setValveActivated(c *gin.Context) {
	n, ok := pathNumber(c)
	if !ok {
		return
	}
	var req boolValueRequest
	if !h.bind(c, &req) {
		return
	}
	accepted, err := h.services.SetValveActivated(c.Request.Context(), n, *req.Value)
	h.respond(c, "set_valve_activated_failed", accepted, err)
}

// @Summary      Full device state
// @Description  Every property of the cached snapshot as one flat object.
// @Tags         state
// @Produce      json
// @Success      200  {object}  models.FlatState
// @Failure      401  {string}  string
// @Failure      500  {string}  string
// @Router       /fullState [get]
// @Security     BasicAuth
func (h *Handler) getFullState(c *gin.Context) {
	st, err := h.services.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, "read_full_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st.Flat())
}

// @Summary      Superuser check
// @Description  Whether the caller authenticated with superuser credentials.
// @Tags         auth
// @Produce      json
// @Success      200  {boolean}  boolean
// @Failure      401  {string}   string
// @Router       /suAccess [get]
// @Security     BasicAuth
func (h *Handler) getSuAccess(c *gin.Context) {
	p, _ := principalFrom(c)
	c.JSON(http.StatusOK, p.Role.Satisfies(models.RoleSuperuser))
}
