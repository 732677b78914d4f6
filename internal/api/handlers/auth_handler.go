package handlers

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"spreadmonitor/pkg/crypto"
)

// AuthHandler issues short-lived JWTs for the mutating control
// endpoints. It is the only token-issuance path this service exposes:
// one operator credential, checked against a bcrypt hash, never a
// plaintext password at rest.
type AuthHandler struct {
	username     string
	passwordHash string
	jwtSecret    string
	sessionTTL   time.Duration
}

// NewAuthHandler builds an AuthHandler. If passwordHash is empty, token
// issuance is disabled (PostToken always returns 403) — this is the
// default, since there is no safe default operator password.
func NewAuthHandler(username, passwordHash, jwtSecret string, sessionTTL time.Duration) *AuthHandler {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &AuthHandler{username: username, passwordHash: passwordHash, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// PostToken handles POST /api/v1/auth/token, authenticated with HTTP
// Basic Auth against the configured operator credential.
func (h *AuthHandler) PostToken(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		writeError(w, http.StatusForbidden, "token issuance disabled: ADMIN_PASSWORD_HASH is not set")
		return
	}

	user, pass, ok := r.BasicAuth()
	if !ok || user != h.username {
		w.Header().Set("WWW-Authenticate", `Basic realm="spreadmonitor"`)
		writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	if err := crypto.VerifyPassword(pass, h.passwordHash); err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="spreadmonitor"`)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	expiresAt := time.Now().Add(h.sessionTTL)
	claims := jwt.RegisteredClaims{
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: signed, ExpiresAt: expiresAt.Unix()})
}
