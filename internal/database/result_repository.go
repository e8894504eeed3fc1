package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models"
)

// MaxResultsLimit はランキング取得で一度に返す件数の上限です。
const MaxResultsLimit = 100

// ResultRepository はゲーム結果関連のデータベース操作を定義するインターフェースです。
type ResultRepository interface {
	// CreateResult は新しいゲーム結果レコードを作成します
	CreateResult(ctx context.Context, userID string, score, level, linesCleared int) (*models.Result, error)

	// GetTopResults は上位N件の結果を取得します（ランキング用）
	GetTopResults(ctx context.Context, limit int) ([]models.ResultResponse, error)

	// GetUserBestScore は指定したユーザーの最高スコアを順位付きで取得します。記録がなければ nil です
	GetUserBestScore(ctx context.Context, userID string) (*models.ResultResponse, error)
}

// resultRepositoryImpl はResultRepositoryインターフェースの実装です。
type resultRepositoryImpl struct {
	db *sql.DB
}

// NewResultRepository はResultRepositoryの新しいインスタンスを作成します。
func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepositoryImpl{db: db}
}

// CreateResult は新しいゲーム結果レコードを作成します。
func (r *resultRepositoryImpl) CreateResult(ctx context.Context, userID string, score, level, linesCleared int) (*models.Result, error) {
	now := time.Now()
	var id int64

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO results (user_id, score, level, lines_cleared, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		userID, score, level, linesCleared, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果レコードの作成に失敗しました: %w", err)
	}

	return &models.Result{
		ID:           id,
		UserID:       userID,
		Score:        score,
		Level:        level,
		LinesCleared: linesCleared,
		CreatedAt:    now,
	}, nil
}

// GetTopResults は上位N件の結果を取得します（ランキング用）。limit は 1..MaxResultsLimit に丸めます。
func (r *resultRepositoryImpl) GetTopResults(ctx context.Context, limit int) ([]models.ResultResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxResultsLimit {
		limit = MaxResultsLimit
	}

	query := `
		SELECT
			id, user_id, score, level, lines_cleared, created_at,
			ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC) as rank
		FROM results
		ORDER BY score DESC, created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果取得に失敗しました: %w", err)
	}
	defer rows.Close()

	results := make([]models.ResultResponse, 0, limit)
	for rows.Next() {
		var result models.ResultResponse
		err := rows.Scan(&result.ID, &result.UserID, &result.Score, &result.Level, &result.LinesCleared, &result.CreatedAt, &result.Rank)
		if err != nil {
			return nil, fmt.Errorf("ゲーム結果データのスキャンに失敗しました: %w", err)
		}
		results = append(results, result)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ゲーム結果取得中にエラーが発生しました: %w", err)
	}

	return results, nil
}

// GetUserBestScore は指定したユーザーの最高スコアと、そのスコアの全体順位を取得します。
func (r *resultRepositoryImpl) GetUserBestScore(ctx context.Context, userID string) (*models.ResultResponse, error) {
	query := `
		SELECT id, user_id, score, level, lines_cleared, created_at
		FROM results
		WHERE user_id = $1
		ORDER BY score DESC, created_at ASC
		LIMIT 1
	`

	var best models.ResultResponse
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&best.ID, &best.UserID, &best.Score, &best.Level, &best.LinesCleared, &best.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // ユーザーのスコアが存在しない場合はnilを返す
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの最高スコア取得に失敗しました: %w", err)
	}

	// そのスコアでの順位を計算
	rankQuery := `
		SELECT COUNT(*) + 1 as rank
		FROM results
		WHERE score > $1 OR (score = $1 AND created_at < $2)
	`
	if err := r.db.QueryRowContext(ctx, rankQuery, best.Score, best.CreatedAt).Scan(&best.Rank); err != nil {
		return nil, fmt.Errorf("ユーザーランキング順位の計算に失敗しました: %w", err)
	}

	return &best, nil
}
