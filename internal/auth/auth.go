package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/giftcards/internal/auth/config"
	"github.com/iurnickita/giftcards/internal/token"
)

type Auth interface {
	Unlock(w http.ResponseWriter, r *http.Request)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const cookieUnlockToken = "giftcardsUnlockToken"

type auth struct {
	cfg config.Config
	now func() time.Time
}

func NewAuth(cfg config.Config) Auth {
	// без секрета токены живут до перезапуска
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = uuid.NewString()
	}
	return &auth{cfg: cfg, now: time.Now}
}

type UnlockJSONRequest struct {
	PIN string `json:"pin"`
}

type UnlockJSONResponse struct {
	Token string `json:"token"`
}

func (a *auth) Unlock(w http.ResponseWriter, r *http.Request) {
	var request UnlockJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if a.cfg.UnlockPIN != "" &&
		subtle.ConstantTimeCompare([]byte(request.PIN), []byte(a.cfg.UnlockPIN)) != 1 {
		http.Error(w, "wrong pin", http.StatusUnauthorized)
		return
	}

	tokenString, err := token.BuildJWTString(a.cfg.TokenSecret, a.cfg.TokenTTL, a.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cookie := &http.Cookie{
		Name:     cookieUnlockToken,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if a.cfg.TokenTTL > 0 {
		cookie.Expires = a.now().Add(a.cfg.TokenTTL)
	}
	http.SetCookie(w, cookie)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UnlockJSONResponse{Token: tokenString})
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// блокировка отключена
		if a.cfg.UnlockPIN == "" {
			h.ServeHTTP(w, r)
			return
		}

		if err := token.Check(a.cfg.TokenSecret, a.getToken(r)); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r)
	}
}

func (a *auth) getToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	tokenCookie, err := r.Cookie(cookieUnlockToken)
	if err != nil {
		return ""
	}
	return tokenCookie.Value
}
