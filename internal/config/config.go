package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultBotTokenFile はボットトークンのシークレットファイルのデフォルトパス。
const defaultBotTokenFile = "/run/secrets/bot_token"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Bot
	BotToken      string
	BotAPIBaseURL string

	// Poll
	PollInterval      time.Duration
	PollMaxConcurrent int

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Send
	SendRatePerSec float64
	SendBurst      int

	// Router
	PromptUnregistered bool

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// DATABASE_URLが未設定の場合はDB_USER/DB_PASSWORD_FILE/DB_HOST/DB_NAMEから
// 接続URLを組み立てる（パスワードはURLエンコードする）。
// ボットトークンはBOT_TOKEN_FILEで指定されたファイルから読み込む。
// 必須項目が欠けている場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	dbURL, err := loadDatabaseURL()
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dbURL

	token, err := loadBotToken()
	if err != nil {
		return nil, err
	}
	cfg.BotToken = token

	// Optional fields with defaults
	cfg.BotAPIBaseURL = getEnvString("BOT_API_BASE_URL", "https://api.telegram.org")
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 30*time.Second)
	cfg.PollMaxConcurrent = getEnvInt("POLL_MAX_CONCURRENT", 10)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.SendRatePerSec = getEnvFloat("SEND_RATE_PER_SEC", 30)
	cfg.SendBurst = getEnvInt("SEND_BURST", 30)
	cfg.PromptUnregistered = getEnvBool("PROMPT_UNREGISTERED", true)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// loadDatabaseURL はDATABASE_URL、またはDB_*環境変数群からDB接続URLを決定する。
func loadDatabaseURL() (string, error) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}

	user := os.Getenv("DB_USER")
	passwordFile := os.Getenv("DB_PASSWORD_FILE")
	host := os.Getenv("DB_HOST")
	name := os.Getenv("DB_NAME")

	var missing []string
	if user == "" {
		missing = append(missing, "DB_USER")
	}
	if passwordFile == "" {
		missing = append(missing, "DB_PASSWORD_FILE")
	}
	if host == "" {
		missing = append(missing, "DB_HOST")
	}
	if name == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("required environment variables are not set: DATABASE_URL or %v", missing)
	}

	password, err := os.ReadFile(passwordFile)
	if err != nil {
		return "", fmt.Errorf("failed to read DB_PASSWORD_FILE %s: %w", passwordFile, err)
	}

	// パスワードの特殊文字をエスケープする
	encoded := url.QueryEscape(strings.TrimSpace(string(password)))
	return fmt.Sprintf("postgres://%s:%s@%s:5432/%s", user, encoded, host, name), nil
}

// loadBotToken はBOT_TOKEN_FILEで指定されたファイルからボットトークンを読み込む。
func loadBotToken() (string, error) {
	path := getEnvString("BOT_TOKEN_FILE", defaultBotTokenFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read bot token file %s: %w", path, err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("bot token file %s is empty", path)
	}

	return token, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
