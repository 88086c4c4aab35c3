package handlers

import (
	"net/http"

	"hvac_gateway/internal/models"

	"github.com/gin-gonic/gin"
)

// authCredentials is the JSON body accepted by token issuance when no Basic
// header is sent.
type authCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned by POST /auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type" example:"Bearer"`
	Role      string `json:"role" example:"superuser"`
}

// @Summary      Issue a bearer token
// @Description  Exchanges Basic credentials, or a JSON username/password body, for a JWT usable as "Authorization: Bearer".
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  false  "Credentials when no Basic header is sent"
// @Success      200   {object}  TokenResponse
// @Failure      401   {string}  string
// @Failure      403   {string}  string
// @Failure      500   {string}  string
// @Router       /auth/token [post]
// @Security     BasicAuth
func (h *Handler) issueToken(c *gin.Context) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		var input authCredentials
		if err := c.ShouldBindJSON(&input); err != nil {
			h.log.Infow("auth_bad_request_body", "err", err)
			c.Header("WWW-Authenticate", basicChallenge)
			c.String(http.StatusUnauthorized, errMissingCredentials.Error())
			return
		}
		username, password = input.Username, input.Password
	}

	p, err := h.services.Authenticate(username, password)
	if err != nil {
		h.log.Infow("auth_token_denied", "username", username, "client_ip", c.ClientIP(), "err", err)
		c.Header("WWW-Authenticate", basicChallenge)
		c.String(http.StatusUnauthorized, unauthorizedMessage(err))
		return
	}
	if required := h.policy.Required(models.OpIssueToken); !p.Role.Satisfies(required) {
		c.String(http.StatusForbidden, "forbidden: %s requires role %s", models.OpIssueToken, required)
		return
	}

	token, err := h.services.GenerateToken(p)
	if err != nil {
		h.fail(c, "auth_token_failed", err, "username", username)
		return
	}
	h.log.Infow("auth_token_issued", "username", p.Username, "role", p.Role.String())
	c.JSON(http.StatusOK, TokenResponse{Token: token, TokenType: "Bearer", Role: p.Role.String()})
}
