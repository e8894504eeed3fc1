package models

import (
	"time"
)

// Result はresultsテーブルのレコードに対応する構造体です。
// ゲームオーバーになったセッションの最終状態だけを保存し、盤面は保存しません。
type Result struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"` // UUID
	Score        int       `json:"score"`
	Level        int       `json:"level"`
	LinesCleared int       `json:"lines_cleared"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResultResponse はランキングAPIのレスポンス用の構造体です。
type ResultResponse struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Score        int       `json:"score"`
	Level        int       `json:"level"`
	LinesCleared int       `json:"lines_cleared"`
	CreatedAt    time.Time `json:"created_at"`
	Rank         int       `json:"rank"` // ランキング順位
}
