package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port              int
	DBDSN             string
	DBMigrate         bool
	RedisURL          string
	JWTAccessTTL      time.Duration
	JWTRefreshTTL     time.Duration
	PendingProfileTTL time.Duration
	JWTSecret         string
	AllowOrigins      []string
	RateLimitPublic   RateLimitConfig
	RateLimitAuth     RateLimitConfig
	Login             LoginConfig
	Federated         FederatedConfig
	Notify            NotifyConfig
	Storage           StorageConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoginConfig limita tentativas de login com senha por email.
type LoginConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// FederatedConfig descreve o emissor de asserções do login federado.
type FederatedConfig struct {
	Issuer   string
	Audience string
	Secret   string
}

// Enabled indica se o login federado foi configurado.
func (f FederatedConfig) Enabled() bool {
	return f.Issuer != "" && f.Secret != ""
}

// NotifyConfig aponta o webhook que espelha avisos de locais liberados.
type NotifyConfig struct {
	WebhookURL string
}

// StorageConfig seleciona onde os relatórios exportados são gravados.
type StorageConfig struct {
	Provider    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
	S3PublicURL string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}
	cfg.DBMigrate = parseBoolEnv("DB_MIGRATE", true)

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PendingProfileTTL, err = parseDurationEnv("PENDING_PROFILE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	maxAttempts, err := strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "5"))
	if err != nil || maxAttempts <= 0 {
		return nil, errors.New("LOGIN_MAX_ATTEMPTS inválido")
	}
	cfg.Login.MaxAttempts = maxAttempts
	if cfg.Login.Window, err = parseDurationEnv("LOGIN_ATTEMPT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.Federated = FederatedConfig{
		Issuer:   strings.TrimSpace(getEnv("FEDERATED_ISSUER", "")),
		Audience: strings.TrimSpace(getEnv("FEDERATED_AUDIENCE", "coop-gestao")),
		Secret:   strings.TrimSpace(getEnv("FEDERATED_SECRET", "")),
	}
	if cfg.Federated.Issuer != "" && len(cfg.Federated.Secret) < 32 {
		return nil, errors.New("FEDERATED_SECRET deve ter pelo menos 32 caracteres")
	}

	cfg.Notify.WebhookURL = strings.TrimSpace(getEnv("NOTIFY_WEBHOOK_URL", ""))

	cfg.Storage = StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop"))),
		S3Bucket:    strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3Region:    strings.TrimSpace(getEnv("S3_REGION", "us-east-1")),
		S3Endpoint:  strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3AccessKey: strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey: strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PathStyle: parseBoolEnv("S3_PATH_STYLE", false),
		S3PublicURL: strings.TrimSpace(getEnv("S3_PUBLIC_URL", "")),
	}
	if cfg.Storage.Provider == "s3" && cfg.Storage.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET obrigatório quando STORAGE_PROVIDER=s3")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return def
	}
	return val
}
