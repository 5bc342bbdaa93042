package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string // MOTION_HTTP_ADDR (default ":3000")
	GRPCAddr    string // MOTION_GRPC_ADDR (optional, empty = gRPC disabled)
	DatabaseURL string // MOTION_DATABASE_URL (optional, empty = in-memory store)
	DBMaxConns  int    // MOTION_DB_MAX_CONNS (default 10)
	HistorySize int    // MOTION_HISTORY_SIZE (default 100)
	StaticDir   string // MOTION_STATIC_DIR (default "static"; embedded page when missing)
	AuthToken   string // MOTION_AUTH_TOKEN (optional, empty = auth disabled)
	TrustProxy  bool   // MOTION_TRUST_PROXY (honour X-Forwarded-For for reporter sources)
	LogLevel    slog.Level

	// TLS settings
	TLSCert           string // MOTION_TLS_CERT
	TLSKey            string // MOTION_TLS_KEY
	TLSAutocertDomain string // MOTION_TLS_AUTOCERT_DOMAIN (ACME; overrides cert/key)
	TLSCacheDir       string // MOTION_TLS_CACHE_DIR (default "certs/autocert")

	// Event bus settings
	NATSURL      string   // MOTION_NATS_URL (optional)
	MQTTBroker   string   // MOTION_MQTT_BROKER (optional, e.g. "tcp://localhost:1883")
	MQTTTopic    string   // MOTION_MQTT_TOPIC (default "motion/readings")
	KafkaBrokers []string // MOTION_KAFKA_BROKERS (optional, comma separated)
	KafkaTopic   string   // MOTION_KAFKA_TOPIC (default "motion.readings")

	// Sync settings
	SyncInterval   time.Duration // MOTION_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // MOTION_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // MOTION_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // MOTION_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // MOTION_SYNC_S3_KEY (default "motion/readings.jsonl")
	SyncGitRepo    string        // MOTION_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // MOTION_SYNC_GIT_FILE (default "readings.jsonl")
	SyncGitBranch  string        // MOTION_SYNC_GIT_BRANCH (default "main")

	PresenceIdle time.Duration // MOTION_PRESENCE_IDLE (default 2m)

	// Event hooks: shell commands run on relay events
	HookJoined         string        // MOTION_HOOK_JOINED
	HookIdle           string        // MOTION_HOOK_IDLE
	HookRejected       string        // MOTION_HOOK_REJECTED
	HookShake          string        // MOTION_HOOK_SHAKE
	HookShakeThreshold float64       // MOTION_HOOK_SHAKE_THRESHOLD (default 5 m/s² from gravity)
	HookTimeout        time.Duration // MOTION_HOOK_TIMEOUT (default 30s)
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:          envOrDefault("MOTION_HTTP_ADDR", ":3000"),
		GRPCAddr:          os.Getenv("MOTION_GRPC_ADDR"),
		DatabaseURL:       os.Getenv("MOTION_DATABASE_URL"),
		StaticDir:         envOrDefault("MOTION_STATIC_DIR", "static"),
		AuthToken:         os.Getenv("MOTION_AUTH_TOKEN"),
		TLSCert:           os.Getenv("MOTION_TLS_CERT"),
		TLSKey:            os.Getenv("MOTION_TLS_KEY"),
		TLSAutocertDomain: os.Getenv("MOTION_TLS_AUTOCERT_DOMAIN"),
		TLSCacheDir:       envOrDefault("MOTION_TLS_CACHE_DIR", "certs/autocert"),
		NATSURL:           os.Getenv("MOTION_NATS_URL"),
		MQTTBroker:        os.Getenv("MOTION_MQTT_BROKER"),
		MQTTTopic:         envOrDefault("MOTION_MQTT_TOPIC", "motion/readings"),
		KafkaBrokers:      splitList(os.Getenv("MOTION_KAFKA_BROKERS")),
		KafkaTopic:        envOrDefault("MOTION_KAFKA_TOPIC", "motion.readings"),
		SyncS3Bucket:      os.Getenv("MOTION_SYNC_S3_BUCKET"),
		SyncS3Endpoint:    os.Getenv("MOTION_SYNC_S3_ENDPOINT"),
		SyncS3Region:      envOrDefault("MOTION_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:         envOrDefault("MOTION_SYNC_S3_KEY", "motion/readings.jsonl"),
		SyncGitRepo:       os.Getenv("MOTION_SYNC_GIT_REPO"),
		SyncGitFile:       envOrDefault("MOTION_SYNC_GIT_FILE", "readings.jsonl"),
		SyncGitBranch:     envOrDefault("MOTION_SYNC_GIT_BRANCH", "main"),
		HookJoined:        os.Getenv("MOTION_HOOK_JOINED"),
		HookIdle:          os.Getenv("MOTION_HOOK_IDLE"),
		HookRejected:      os.Getenv("MOTION_HOOK_REJECTED"),
		HookShake:         os.Getenv("MOTION_HOOK_SHAKE"),
	}

	size, err := strconv.Atoi(envOrDefault("MOTION_HISTORY_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("MOTION_HISTORY_SIZE: %w", err)
	}
	if size <= 0 {
		return nil, fmt.Errorf("MOTION_HISTORY_SIZE must be positive, got %d", size)
	}
	c.HistorySize = size

	if c.DBMaxConns, err = strconv.Atoi(envOrDefault("MOTION_DB_MAX_CONNS", "10")); err != nil {
		return nil, fmt.Errorf("MOTION_DB_MAX_CONNS: %w", err)
	}
	if c.DBMaxConns <= 0 {
		return nil, fmt.Errorf("MOTION_DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}

	if c.SyncInterval, err = parseDuration("MOTION_SYNC_INTERVAL", "0"); err != nil {
		return nil, err
	}
	if c.PresenceIdle, err = parseDuration("MOTION_PRESENCE_IDLE", "2m"); err != nil {
		return nil, err
	}

	if c.HookTimeout, err = parseDuration("MOTION_HOOK_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if c.HookShakeThreshold, err = strconv.ParseFloat(envOrDefault("MOTION_HOOK_SHAKE_THRESHOLD", "5"), 64); err != nil {
		return nil, fmt.Errorf("MOTION_HOOK_SHAKE_THRESHOLD: %w", err)
	}
	if c.HookShakeThreshold <= 0 {
		return nil, fmt.Errorf("MOTION_HOOK_SHAKE_THRESHOLD must be positive, got %v", c.HookShakeThreshold)
	}

	if v := os.Getenv("MOTION_TRUST_PROXY"); v != "" {
		if c.TrustProxy, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("MOTION_TRUST_PROXY: %w", err)
		}
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("MOTION_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("MOTION_LOG_LEVEL: %w", err)
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return nil, fmt.Errorf("MOTION_TLS_CERT and MOTION_TLS_KEY must be set together")
	}

	return c, nil
}

// TLSEnabled reports whether the HTTP listener serves HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSAutocertDomain != "" || (c.TLSCert != "" && c.TLSKey != "")
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
