package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQLドライバー
)

// connectTimeout は起動時の接続確認（Ping）とスキーマ作成に使うタイムアウトです。
const connectTimeout = 10 * time.Second

// schema は結果保存に必要なテーブルです。盤面などのゲーム途中の状態は保存しません。
const schema = `
CREATE TABLE IF NOT EXISTS results (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT        NOT NULL,
	score         INTEGER     NOT NULL,
	level         INTEGER     NOT NULL DEFAULT 1,
	lines_cleared INTEGER     NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS results_score_idx ON results (score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS results_user_idx ON results (user_id);
`

// DatabaseService provides methods for interacting with the database.
type DatabaseService struct {
	DB *sql.DB
}

// NewDatabaseService creates a new instance of DatabaseService and establishes a database connection.
func NewDatabaseService(ctx context.Context, databaseURL string) (*DatabaseService, error) {
	log.Printf("[Database] 接続を試行中: URLの最初の20文字: %s...", databaseURL[:min(len(databaseURL), 20)])
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	log.Println("[Database] データベースに正常に接続しました。")
	return &DatabaseService{DB: db}, nil
}

// EnsureSchema は results テーブルとインデックスがなければ作成します。
func (s *DatabaseService) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
	}
	return nil
}

// Close はコネクションプールを閉じます。
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}
