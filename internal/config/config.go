package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr     string
	AllowedOrigins []string

	RedisURL          string
	DatabaseURL       string
	SummaryWebhookURL string
	SummaryQueueSize  int
	HistoryLimit      int

	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	LobbyTTL         time.Duration

	// TimeoutInsufficientPolicy is "draw" or "loss".
	TimeoutInsufficientPolicy string
	EndLobbyOnDisconnect      bool

	TimePresetsFile string
	MessagesDir     string
}

func Default() *AppConfig {
	return &AppConfig{
		ListenAddr:                ":8080",
		SummaryQueueSize:          256,
		HistoryLimit:              20,
		HeartbeatTimeout:          30 * time.Second,
		SweepInterval:             250 * time.Millisecond,
		LobbyTTL:                  30 * time.Minute,
		TimeoutInsufficientPolicy: "draw",
		EndLobbyOnDisconnect:      true,
	}
}

// Load reads the environment. Unparseable values keep their defaults; an
// unknown timeout policy is an error.
func Load() (*AppConfig, error) {
	cfg := Default()

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.AllowedOrigins = csv(env("ALLOWED_ORIGINS"))

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.SummaryWebhookURL = env("SUMMARY_WEBHOOK_URL")
	if n, ok := positiveInt(env("SUMMARY_QUEUE_SIZE")); ok {
		cfg.SummaryQueueSize = n
	}
	if n, ok := positiveInt(env("HISTORY_LIMIT")); ok {
		cfg.HistoryLimit = n
	}

	if d, ok := duration(env("HEARTBEAT_TIMEOUT")); ok && d > 0 {
		cfg.HeartbeatTimeout = d
	}
	if d, ok := duration(env("SWEEP_INTERVAL")); ok && d > 0 {
		cfg.SweepInterval = d
	}
	if d, ok := duration(env("LOBBY_TTL")); ok && d >= 0 {
		cfg.LobbyTTL = d
	}

	if v := env("TIMEOUT_INSUFFICIENT_POLICY"); v != "" {
		cfg.TimeoutInsufficientPolicy = strings.ToLower(v)
	}
	switch cfg.TimeoutInsufficientPolicy {
	case "draw", "loss":
	default:
		return nil, fmt.Errorf("TIMEOUT_INSUFFICIENT_POLICY must be draw or loss, got %q", cfg.TimeoutInsufficientPolicy)
	}
	if v := env("END_LOBBY_ON_DISCONNECT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EndLobbyOnDisconnect = b
		}
	}

	cfg.TimePresetsFile = env("TIME_PRESETS_FILE")
	cfg.MessagesDir = env("MESSAGES_DIR")
	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func csv(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func positiveInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// duration accepts Go durations ("45s") or bare seconds ("45").
func duration(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
