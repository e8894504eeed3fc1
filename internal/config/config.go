// Package config はサーバーの設定を環境変数（と開発時の .env）から読み込みます。
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はサーバー全体の設定です。
type Config struct {
	Port           string   // PORT
	DatabaseURL    string   // DATABASE_URL（空なら結果を保存しない）
	JWTSecret      string   // SUPABASE_JWT_SECRET
	BypassAuth     bool     // BYPASS_AUTH（開発用。JWT検証を省略する）
	AllowedOrigins []string // ALLOWED_ORIGINS（カンマ区切り）
	Seed           int64    // TETRIS_SEED（0なら時刻ベース）
}

// Load は APP_ENV が production 以外なら .env を読み込み、環境変数から Config を作ります。
// 値の形式が不正な場合はエラーを返します。
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("[Config] warning: Error loading .env file (this is fine in production): %v", err)
		}
	}

	cfg := &Config{
		Port:           GetEnv("PORT", "8080"),
		DatabaseURL:    GetEnv("DATABASE_URL", ""),
		JWTSecret:      GetEnv("SUPABASE_JWT_SECRET", ""),
		AllowedOrigins: splitList(GetEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.BypassAuth, err = strconv.ParseBool(GetEnv("BYPASS_AUTH", "false")); err != nil {
		return nil, fmt.Errorf("BYPASS_AUTH の値が不正です: %w", err)
	}
	if cfg.Seed, err = strconv.ParseInt(GetEnv("TETRIS_SEED", "0"), 10, 64); err != nil {
		return nil, fmt.Errorf("TETRIS_SEED の値が不正です: %w", err)
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT の値が不正です: %w", err)
	}
	if !cfg.BypassAuth && cfg.JWTSecret == "" {
		log.Printf("[Config] warning: SUPABASE_JWT_SECRET is empty; authenticated endpoints will reject every request")
	}
	return cfg, nil
}

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not set.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
