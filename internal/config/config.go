package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	BotAppID       string
	BotAppPassword string
	BotServiceURL  string

	JiraDefaultBaseURL string
	JiraRequestSec     int

	BridgeResponseSec     int
	BridgeMaxPayloadBytes int
	BridgePingSec         int

	CardsDir         string
	CardsWatch       bool
	CacheTTLSec      int
	CacheSweepSec    int
	StateStaleHours  int
	StateCleanupCron string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	FeedbackTo   string

	GraphNotifyURL   string
	GraphNotifySec   int
	GraphTenantID    string
	GraphClientID    string
	GraphClientToken string
}

func FromEnv() Config {
	dataDir := stringOrDefault("JIRA_BRIDGE_DATA_DIR", "/data")
	dbPath := stringOrDefault("JIRA_BRIDGE_DB_PATH", filepath.Join(dataDir, "jira-bridge", "meta.sqlite"))

	return Config{
		Environment: stringOrDefault("JIRA_BRIDGE_ENV", "development"),
		HTTPAddr:    stringOrDefault("JIRA_BRIDGE_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      dbPath,

		BotAppID:       strings.TrimSpace(os.Getenv("JIRA_BRIDGE_BOT_APP_ID")),
		BotAppPassword: strings.TrimSpace(os.Getenv("JIRA_BRIDGE_BOT_APP_PASSWORD")),
		BotServiceURL:  strings.TrimSpace(os.Getenv("JIRA_BRIDGE_BOT_SERVICE_URL")),

		JiraDefaultBaseURL: strings.TrimSpace(os.Getenv("JIRA_BRIDGE_JIRA_BASE_URL")),
		JiraRequestSec:     intOrDefault("JIRA_BRIDGE_JIRA_REQUEST_SECONDS", 30),

		BridgeResponseSec:     intOrDefault("JIRA_BRIDGE_RESPONSE_SECONDS", 25),
		BridgeMaxPayloadBytes: intOrDefault("JIRA_BRIDGE_MAX_PAYLOAD_BYTES", 1<<20),
		BridgePingSec:         intOrDefault("JIRA_BRIDGE_PING_SECONDS", 30),

		CardsDir:         stringOrDefault("JIRA_BRIDGE_CARDS_DIR", filepath.Join(dataDir, "cards")),
		CardsWatch:       boolOrDefault("JIRA_BRIDGE_CARDS_WATCH", true),
		CacheTTLSec:      intOrDefault("JIRA_BRIDGE_CACHE_TTL_SECONDS", 300),
		CacheSweepSec:    intOrDefault("JIRA_BRIDGE_CACHE_SWEEP_SECONDS", 60),
		StateStaleHours:  intOrDefault("JIRA_BRIDGE_STATE_STALE_HOURS", 24),
		StateCleanupCron: stringOrDefault("JIRA_BRIDGE_STATE_CLEANUP_CRON", "17 3 * * *"),

		SMTPHost:     strings.TrimSpace(os.Getenv("JIRA_BRIDGE_SMTP_HOST")),
		SMTPPort:     intOrDefault("JIRA_BRIDGE_SMTP_PORT", 587),
		SMTPUsername: strings.TrimSpace(os.Getenv("JIRA_BRIDGE_SMTP_USERNAME")),
		SMTPPassword: strings.TrimSpace(os.Getenv("JIRA_BRIDGE_SMTP_PASSWORD")),
		SMTPFrom:     strings.TrimSpace(os.Getenv("JIRA_BRIDGE_SMTP_FROM")),
		FeedbackTo:   strings.TrimSpace(os.Getenv("JIRA_BRIDGE_FEEDBACK_TO")),

		GraphNotifyURL:   strings.TrimSpace(os.Getenv("JIRA_BRIDGE_GRAPH_NOTIFY_URL")),
		GraphNotifySec:   intOrDefault("JIRA_BRIDGE_GRAPH_NOTIFY_SECONDS", 15),
		GraphTenantID:    strings.TrimSpace(os.Getenv("JIRA_BRIDGE_GRAPH_TENANT_ID")),
		GraphClientID:    strings.TrimSpace(os.Getenv("JIRA_BRIDGE_GRAPH_CLIENT_ID")),
		GraphClientToken: strings.TrimSpace(os.Getenv("JIRA_BRIDGE_GRAPH_CLIENT_TOKEN")),
	}
}

func stringOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolOrDefault(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
