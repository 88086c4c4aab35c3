package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"hvac_gateway/internal/models"
)

func TestIssueToken(t *testing.T) {
	s, _, auth, _ := newTestServices()
	r := newTestRouter(s)

	// Basic credentials
	w := doRequest(r, http.MethodPost, "/auth/token", "", suAuth())
	if w.Code != http.StatusOK {
		t.Fatalf("basic: status=%d, body=%s", w.Code, w.Body.String())
	}
	var out TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Token != "issued-token" || out.TokenType != "Bearer" || out.Role != "superuser" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if auth.lastGenerated != (models.Principal{Username: "su", Role: models.RoleSuperuser}) {
		t.Fatalf("token generated for %+v", auth.lastGenerated)
	}

	// JSON body
	w = doRequest(r, http.MethodPost, "/auth/token", `{"username":"user","password":"pass"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("json: status=%d, body=%s", w.Code, w.Body.String())
	}
	if auth.lastGenerated.Role != models.RoleUser {
		t.Fatalf("token generated for %+v", auth.lastGenerated)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		s, _, _, _ := newTestServices()
		w := doRequest(newTestRouter(s), http.MethodPost, "/auth/token", "", nil)
		if w.Code != http.StatusUnauthorized || w.Body.String() != "missing credentials" {
			t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		s, _, _, _ := newTestServices()
		w := doRequest(newTestRouter(s), http.MethodPost, "/auth/token", `{"username":"user","password":"wrong"}`, nil)
		if w.Code != http.StatusUnauthorized || w.Body.String() != "invalid credentials" {
			t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
		}
	})

	t.Run("signing failure", func(t *testing.T) {
		s, _, auth, _ := newTestServices()
		auth.genErr = errors.New("sign: key is invalid")
		w := doRequest(newTestRouter(s), http.MethodPost, "/auth/token", "", userAuth())
		if w.Code != http.StatusInternalServerError || w.Body.String() != auth.genErr.Error() {
			t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
		}
	})

	t.Run("policy requires superuser", func(t *testing.T) {
		policy, err := models.DefaultPolicy().WithOverrides(map[string]string{"issue_token": "superuser"})
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
		s, _, _, _ := newTestServices()
		r := newTestRouterWith(s, Options{Policy: policy})
		if w := doRequest(r, http.MethodPost, "/auth/token", "", userAuth()); w.Code != http.StatusForbidden {
			t.Fatalf("user: expected 403, got %d", w.Code)
		}
		if w := doRequest(r, http.MethodPost, "/auth/token", "", suAuth()); w.Code != http.StatusOK {
			t.Fatalf("superuser: expected 200, got %d", w.Code)
		}
	})
}

func TestIssuedTokenAuthenticates(t *testing.T) {
	s, _, auth, _ := newTestServices()
	auth.genToken = "su-token"
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/auth/token", "", suAuth())
	var out TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = doRequest(r, http.MethodPost, "/mode", "type=manual", bearerHeader(out.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("write with bearer: status=%d, body=%s", w.Code, w.Body.String())
	}
}
