package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/store/memory"
)

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) SendVerificationCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

func newTestServer(t *testing.T) (*httptest.Server, *mailbox) {
	t.Helper()
	sc := serverConfig{JWTSecret: "0123456789abcdef0123456789abcdef", Issuer: "sessionguard"}
	cfg, _, err := sc.engineConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	box := &mailbox{codes: map[string]string{}}
	engine, err := sessionguard.New().
		WithConfig(cfg).
		WithUserStore(memory.New()).
		WithCache(cache.NewLRU(cache.LRUOptions{Size: 64})).
		WithNotifier(box).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	s := &server{
		engine:       engine,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		cookieMaxAge: refreshCookieMaxAge(cfg),
	}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts, box
}

func post(t *testing.T, url string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func refreshCookieFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no refresh cookie set")
	return nil
}

func decodeTokens(t *testing.T, resp *http.Response) tokenResponse {
	t.Helper()
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	return out
}

func TestServerSessionLifecycle(t *testing.T) {
	ts, box := newTestServer(t)
	creds := map[string]string{"email": "a@x.com", "username": "alice", "password": "Passw0rd!"}

	if resp := post(t, ts.URL+"/auth/register", creds); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/auth/login", map[string]string{"email": "a@x.com", "password": "Passw0rd!"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login before verification: %d", resp.StatusCode)
	}

	resp := post(t, ts.URL+"/auth/verify", map[string]string{"email": "a@x.com", "code": box.code("a@x.com")})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d", resp.StatusCode)
	}
	first := refreshCookieFrom(t, resp)
	tokens := decodeTokens(t, resp)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	me, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer me.Body.Close()
	var profile map[string]any
	if err := json.NewDecoder(me.Body).Decode(&profile); err != nil || me.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %v", me.StatusCode, err)
	}
	if profile["role"] != "user" || profile["user_id"] == "" {
		t.Fatalf("unexpected profile %v", profile)
	}

	resp = post(t, ts.URL+"/auth/refresh", nil, first)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d", resp.StatusCode)
	}
	second := refreshCookieFrom(t, resp)
	if second.Value == first.Value {
		t.Fatal("refresh must rotate the cookie")
	}

	if resp := post(t, ts.URL+"/auth/logout", map[string]string{"refresh_token": second.Value}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/auth/refresh", nil, second); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: %d", resp.StatusCode)
	}
}

func TestServerRejectsMalformedBodies(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/auth/login", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp2 := post(t, ts.URL+"/auth/login", map[string]string{"email": "a@x.com", "password": "x", "extra": "y"})
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown fields must be rejected, got %d", resp2.StatusCode)
	}
}

func TestServerGenericLoginFailure(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := post(t, ts.URL+"/auth/login", map[string]string{"email": "nobody@x.com", "password": "Passw0rd!"})
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "invalid credentials" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
}

func TestServerMetricsAndHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	post(t, ts.URL+"/auth/login", map[string]string{"email": "nobody@x.com", "password": "Passw0rd!"})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "sessionguard_login_failure_total 1") {
		t.Fatalf("unexpected metrics:\n%s", raw)
	}

	health, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", health.StatusCode)
	}
}

func TestEngineConfigSigningKeys(t *testing.T) {
	cfg, ephemeral, err := serverConfig{}.engineConfig()
	if err != nil || !ephemeral || cfg.JWT.SigningMethod != "ed25519" {
		t.Fatalf("expected throwaway ed25519 key, got %q ephemeral=%v err=%v", cfg.JWT.SigningMethod, ephemeral, err)
	}

	seed := "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="
	cfg, ephemeral, err = serverConfig{JWTSeed: seed}.engineConfig()
	if err != nil || ephemeral || len(cfg.JWT.PublicKey) != 32 {
		t.Fatalf("seeded key: ephemeral=%v err=%v", ephemeral, err)
	}

	if _, _, err := (serverConfig{JWTSeed: "short"}).engineConfig(); err == nil {
		t.Fatal("expected invalid seed error")
	}

	cfg, _, _ = serverConfig{JWTSecret: "s", IPThrottle: true}.engineConfig()
	if cfg.JWT.SigningMethod != "hs256" || cfg.Security.EnableIPThrottle {
		t.Fatal("throttle needs redis; secret selects hs256")
	}
}
