package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/metrics/export/prometheus"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const refreshCookie = "refresh_token"

type server struct {
	engine       *sessionguard.Engine
	logger       *slog.Logger
	cookieMaxAge int
	secureCookie bool
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientMetadata)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", prometheus.New(s.engine).Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/verify", s.verify)
		r.Post("/resend", s.resend)
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Post("/logout", s.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAccess(s.engine))
		r.Get("/me", s.me)
	})
	return r
}

type credentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	id, err := s.engine.Register(r.Context(), body.Email, body.Username, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": id})
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	pair, err := s.engine.VerifyEmail(r.Context(), body.Email, body.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.issue(w, pair)
}

func (s *server) resend(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ResendVerificationCode(r.Context(), body.Email, body.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	pair, err := s.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.issue(w, pair)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.engine.Refresh(r.Context(), presentedRefreshToken(w, r))
	if err != nil {
		s.clearRefreshCookie(w)
		s.fail(w, r, err)
		return
	}
	s.issue(w, pair)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Logout(r.Context(), presentedRefreshToken(w, r))
	s.clearRefreshCookie(w)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	out := map[string]any{"user_id": claims.UID, "role": claims.Role}
	if claims.ExpiresAt != nil {
		out["expires_at"] = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) issue(w http.ResponseWriter, pair sessionguard.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/auth",
		MaxAge:   s.cookieMaxAge,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

func (s *server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// fail writes the public rendition of err. Only unexpected failures are
// logged; the engine already audits the expected ones.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := sessionguard.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// presentedRefreshToken prefers the cookie and falls back to a JSON body.
func presentedRefreshToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body)
	}
	return body.RefreshToken
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request too large"})
			return false
		}
		status, msg := sessionguard.HTTPStatus(sessionguard.ErrInvalidRequest)
		writeJSON(w, status, map[string]string{"error": msg})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
