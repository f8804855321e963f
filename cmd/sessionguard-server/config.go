package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard"
)

type serverConfig struct {
	Addr         string
	Store        string
	MongoURI     string
	MongoDB      string
	PostgresDSN  string
	RedisURL     string
	JWTSecret    string
	JWTSeed      string
	Issuer       string
	Audience     string
	AuditLog     bool
	AuditFile    string
	IPThrottle   bool
	SecureCookie bool
}

func loadConfig() serverConfig {
	return serverConfig{
		Addr:         getEnv("SG_ADDR", ":8080"),
		Store:        strings.ToLower(getEnv("SG_STORE", "memory")),
		MongoURI:     getEnv("SG_MONGO_URI", ""),
		MongoDB:      getEnv("SG_MONGO_DB", "sessionguard"),
		PostgresDSN:  getEnv("SG_POSTGRES_DSN", ""),
		RedisURL:     getEnv("SG_REDIS_URL", ""),
		JWTSecret:    getEnv("SG_JWT_SECRET", ""),
		JWTSeed:      getEnv("SG_JWT_ED25519_SEED", ""),
		Issuer:       getEnv("SG_JWT_ISSUER", "sessionguard"),
		Audience:     getEnv("SG_JWT_AUDIENCE", ""),
		AuditLog:     getBool("SG_AUDIT_LOG", true),
		AuditFile:    getEnv("SG_AUDIT_FILE", ""),
		IPThrottle:   getBool("SG_IP_THROTTLE", false),
		SecureCookie: getBool("SG_SECURE_COOKIE", false),
	}
}

// engineConfig maps the environment onto the engine defaults. Without a
// secret or seed it signs with a throwaway ed25519 key.
func (c serverConfig) engineConfig() (sessionguard.Config, bool, error) {
	cfg := sessionguard.DefaultConfig()
	cfg.JWT.Issuer = c.Issuer
	cfg.JWT.Audience = c.Audience
	cfg.Audit.Enabled = c.AuditLog
	cfg.Metrics.Enabled = true
	cfg.Security.EnableIPThrottle = c.IPThrottle && c.RedisURL != ""

	switch {
	case c.JWTSecret != "":
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
		return cfg, false, nil
	case c.JWTSeed != "":
		seed, err := base64.StdEncoding.DecodeString(c.JWTSeed)
		if err != nil || len(seed) != ed25519.SeedSize {
			return cfg, false, fmt.Errorf("SG_JWT_ED25519_SEED must be %d base64 bytes", ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		cfg.JWT.SigningMethod = "ed25519"
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = priv.Public().(ed25519.PublicKey)
		return cfg, false, nil
	default:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return cfg, false, err
		}
		cfg.JWT.SigningMethod = "ed25519"
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
		return cfg, true, nil
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// refreshCookieMaxAge follows the engine's refresh lifetime.
func refreshCookieMaxAge(cfg sessionguard.Config) int {
	return int(cfg.Session.RefreshTTL / time.Second)
}
