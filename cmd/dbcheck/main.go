// dbcheck は結果保存用データベースへの接続とスキーマを確認するツールです。
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("エラー: 設定の読み込みに失敗しました: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("エラー: DATABASE_URL 環境変数が設定されていません。")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("テスト開始: データベース接続を試行中...")
	dbService, err := database.NewDatabaseService(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("エラー: データベースに接続できません。接続情報やネットワークを確認してください: %v", err)
	}
	defer dbService.Close()
	fmt.Println("成功: データベースに正常に接続し、Pingが成功しました！")

	var version string
	if err := dbService.DB.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		log.Printf("警告: SELECT version() クエリの実行に失敗しました: %v", err)
	} else {
		fmt.Printf("データベースバージョン: %s\n", version)
	}

	if err := dbService.EnsureSchema(ctx); err != nil {
		log.Fatalf("エラー: results テーブルの作成に失敗しました: %v", err)
	}

	repo := database.NewResultRepository(dbService.DB)
	top, err := repo.GetTopResults(ctx, 5)
	if err != nil {
		log.Fatalf("エラー: ランキングの取得に失敗しました: %v", err)
	}
	fmt.Printf("保存済みの上位スコア: %d件\n", len(top))
	for _, r := range top {
		fmt.Printf("  #%d %s score=%d level=%d lines=%d\n", r.Rank, r.UserID, r.Score, r.Level, r.LinesCleared)
	}
}
