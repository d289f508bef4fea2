package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL string // postgres://... （無ければPOSTGRES_*から組み立て）
	DBMaxConns  int    // コネクションプール上限

	JWTSecret string // JWT署名シークレット

	GatewayBaseURL   string        // 決済代行API
	GatewayKeyID     string        // 決済代行 key_id
	GatewayKeySecret string        // 決済代行 key_secret
	GatewayTimeout   time.Duration // 決済代行呼び出しのタイムアウト

	SignatureSecret string // 署名検証用。未設定ならGatewayKeySecret
	Currency        string // INRなど

	OperationTimeout time.Duration // 決済が絡む処理の上限時間

	RedisAddr       string        // 空ならキャッシュ無し
	HistoryCacheTTL time.Duration // 注文履歴キャッシュ

	KafkaBrokers []string // 空ならイベントはログのみ

	LogLevel string // debug/info/warn/error
	GoEnv    string // dev/prod
}

func (c Config) IsDev() bool {
	return c.GoEnv == "" || c.GoEnv == "dev"
}

// Loadは環境変数（.envはmainでgodotenvが読む）
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("GATEWAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("OPERATION_TIMEOUT", "15s")
	v.SetDefault("HISTORY_CACHE_TTL", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GO_ENV", "dev")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	cfg := Config{
		Port: strings.TrimPrefix(v.GetString("PORT"), ":"),

		DatabaseURL: v.GetString("DATABASE_URL"),
		DBMaxConns:  v.GetInt("DB_MAX_CONNS"),

		JWTSecret: v.GetString("JWT_SECRET"),

		GatewayBaseURL:   strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
		GatewayKeyID:     v.GetString("GATEWAY_KEY_ID"),
		GatewayKeySecret: v.GetString("GATEWAY_KEY_SECRET"),
		GatewayTimeout:   v.GetDuration("GATEWAY_TIMEOUT"),

		SignatureSecret: v.GetString("PAYMENT_SIGNATURE_SECRET"),
		Currency:        strings.ToUpper(strings.TrimSpace(v.GetString("CURRENCY"))),

		OperationTimeout: v.GetDuration("OPERATION_TIMEOUT"),

		RedisAddr:       v.GetString("REDIS_ADDR"),
		HistoryCacheTTL: v.GetDuration("HISTORY_CACHE_TTL"),

		KafkaBrokers: splitCSV(v.GetString("KAFKA_BROKERS")),

		LogLevel: v.GetString("LOG_LEVEL"),
		GoEnv:    v.GetString("GO_ENV"),
	}

	if cfg.DatabaseURL == "" {
		dsn, err := buildDatabaseURL(v)
		if err != nil {
			return Config{}, err
		}
		cfg.DatabaseURL = dsn
	}
	if cfg.SignatureSecret == "" {
		cfg.SignatureSecret = cfg.GatewayKeySecret
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GatewayKeyID == "" {
		return Config{}, fmt.Errorf("GATEWAY_KEY_ID is required")
	}
	if cfg.GatewayKeySecret == "" {
		return Config{}, fmt.Errorf("GATEWAY_KEY_SECRET is required")
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("CURRENCY must be a 3 letter code")
	}
	if cfg.GatewayTimeout <= 0 {
		return Config{}, fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if cfg.OperationTimeout <= 0 {
		return Config{}, fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}

	return cfg, nil
}

// POSTGRES_USER / POSTGRES_PASSWORD / POSTGRES_DB は必須
func buildDatabaseURL(v *viper.Viper) (string, error) {
	user := v.GetString("POSTGRES_USER")
	pass := v.GetString("POSTGRES_PASSWORD")
	name := v.GetString("POSTGRES_DB")
	if user == "" {
		return "", fmt.Errorf("DATABASE_URL or POSTGRES_USER is required")
	}
	if pass == "" {
		return "", fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if name == "" {
		return "", fmt.Errorf("POSTGRES_DB is required")
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(v.GetString("POSTGRES_HOST"), v.GetString("POSTGRES_PORT")),
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(v.GetString("POSTGRES_SSLMODE")),
	}
	return u.String(), nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
