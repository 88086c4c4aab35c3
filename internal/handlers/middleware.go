package handlers

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"hvac_gateway/internal/models"
	"hvac_gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"

	ctxRequestID = "requestId"
	ctxPrincipal = "principal"

	// accessTokenParam carries a bearer token for clients that cannot set
	// headers, such as browser websockets.
	accessTokenParam = "access_token"

	basicChallenge = `Basic realm="hvac_gateway", charset="UTF-8"`
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errBadAuthScheme      = errors.New("unsupported Authorization scheme")
)

func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		h.log.Errorw("panic_recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(ctxRequestID),
		)
		c.String(http.StatusInternalServerError, "internal server error")
		c.Abort()
	})
}

// requestID propagates an incoming X-Request-ID or assigns a new one.
func (h *Handler) requestID(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(ctxRequestID, id)
	c.Header(headerRequestID, id)
	c.Next()
}

func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"latency_ms", time.Since(start).Milliseconds(),
		"client_ip", c.ClientIP(),
		"request_id", c.GetString(ctxRequestID),
	}
	if p, ok := principalFrom(c); ok {
		fields = append(fields, "user", p.Username)
	}
	if status >= http.StatusInternalServerError {
		h.log.Warnw("http_request", fields...)
		return
	}
	h.log.Infow("http_request", fields...)
}

func (h *Handler) allowedOrigin(origin string) (string, bool) {
	if len(h.origins) == 0 || slices.Contains(h.origins, "*") {
		return "*", true
	}
	if slices.Contains(h.origins, origin) {
		return origin, true
	}
	return "", false
}

// cors answers preflight requests itself and decorates every response with
// the allow-origin header.
func (h *Handler) cors(c *gin.Context) {
	if allow, ok := h.allowedOrigin(c.GetHeader("Origin")); ok {
		c.Header("Access-Control-Allow-Origin", allow)
		if allow != "*" {
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+headerRequestID)
		c.Header("Access-Control-Expose-Headers", headerRequestID)
	}
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// errorResponder turns the last error a handler attached with c.Error into
// a plain-text 500 unless something was written already.
func (h *Handler) errorResponder(c *gin.Context) {
	c.Next()
	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	c.String(http.StatusInternalServerError, c.Errors.Last().Err.Error())
}

func (h *Handler) rateLimit(c *gin.Context) {
	if h.limiter != nil && !h.limiter.allow(c.ClientIP()) {
		h.log.Infow("rate_limited", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	c.Next()
}

// authenticate resolves the caller from Basic credentials or a bearer token
// and stores the principal on the context. The username is attached to the
// request context for the audit log.
func (h *Handler) authenticate(c *gin.Context) {
	p, err := h.principal(c)
	if err != nil {
		if !errors.Is(err, errMissingCredentials) {
			h.log.Infow("auth_failed", "path", c.Request.URL.Path, "client_ip", c.ClientIP(), "err", err)
		}
		c.Header("WWW-Authenticate", basicChallenge)
		c.String(http.StatusUnauthorized, unauthorizedMessage(err))
		c.Abort()
		return
	}

	c.Set(ctxPrincipal, p)
	c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), p.Username))
	c.Next()
}

func (h *Handler) principal(c *gin.Context) (models.Principal, error) {
	if username, password, ok := c.Request.BasicAuth(); ok {
		return h.services.Authenticate(username, password)
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query(accessTokenParam); token != "" {
			return h.services.ParseToken(token)
		}
		return models.Principal{}, errMissingCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return models.Principal{}, errBadAuthScheme
	}
	return h.services.ParseToken(token)
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return "invalid or expired token"
	case errors.Is(err, errMissingCredentials), errors.Is(err, errBadAuthScheme):
		return err.Error()
	default:
		return "invalid credentials"
	}
}

// require rejects callers whose role is below the policy minimum for op.
func (h *Handler) require(op models.Operation) gin.HandlerFunc {
	required := h.policy.Required(op)
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			c.Header("WWW-Authenticate", basicChallenge)
			c.String(http.StatusUnauthorized, errMissingCredentials.Error())
			c.Abort()
			return
		}
		if !p.Role.Satisfies(required) {
			h.log.Infow("access_denied", "user", p.Username, "role", p.Role.String(), "operation", op, "required", required.String())
			c.String(http.StatusForbidden, "forbidden: %s requires role %s", op, required)
			c.Abort()
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
