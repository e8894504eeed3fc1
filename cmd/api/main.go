package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/services/tetris"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// DATABASE_URL がなければ結果の保存なしで起動する
	var resultRepo database.ResultRepository
	if cfg.DatabaseURL != "" {
		dbService, err := database.NewDatabaseService(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("データベースの初期化に失敗しました: %v", err)
		}
		defer dbService.Close()
		if err := dbService.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("データベースの初期化に失敗しました: %v", err)
		}
		resultRepo = database.NewResultRepository(dbService.DB)
	} else {
		log.Println("warning: DATABASE_URL is not set; game results will not be saved")
	}

	sessionManager := tetris.NewSessionManager(resultRepo, tetris.RealClock(), tetris.SeededRandom(cfg.Seed))

	router := api.NewRouter(api.RouterDeps{
		Game:           handlers.NewGameHandler(sessionManager, cfg.AllowedOrigins),
		Results:        handlers.NewResultHandler(resultRepo),
		Public:         handlers.NewPublicHandler(sessionManager, resultRepo != nil),
		Auth:           middleware.AuthConfig{JWTSecret: cfg.JWTSecret, BypassAuth: cfg.BypassAuth},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Server starting on :%s", cfg.Port)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	// 新しい接続を止めてから、ゲームループとWebSocketを閉じる
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	sessionManager.Shutdown()
	log.Println("Server stopped")
}
