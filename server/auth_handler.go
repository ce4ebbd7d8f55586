package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"geojournal/core/auth"
	"geojournal/logger"
)

// TokenCookie carries the owner token for browser navigation and WebSockets,
// which cannot set an Authorization header.
const TokenCookie = "geojournal_token"

// LoginRequest represents the login request body
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginHandler exchanges the owner password for a token.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.AuthEnabled() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"token":       "",
			"authEnabled": false,
		})
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	if !auth.CheckPasswordHash(req.Password, h.cfg.OwnerPasswordHash) {
		logger.Warn("[Login] 密码验证失败", logger.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid password")
		return
	}

	token, err := h.issuer.IssueToken()
	if err != nil {
		logger.Error("[Login] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.cfg.TokenTTL.Seconds()),
	})

	logger.Info("[Login] 登录成功", logger.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"token":       token,
		"authEnabled": true,
	})
}

// requestToken looks in the Authorization header, then the cookie, then the
// token query parameter.
func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// authorized reports whether the request carries a valid owner token.
func (h *Handler) authorized(r *http.Request) bool {
	if !h.cfg.AuthEnabled() {
		return true
	}
	token := requestToken(r)
	if token == "" {
		return false
	}
	_, err := h.issuer.ParseToken(token)
	return err == nil
}

// AuthMiddleware rejects requests without a valid owner token. It lets
// everything through when no owner password is configured.
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "a valid token is required")
			return
		}
		next.ServeHTTP(w, r)
	}
}
