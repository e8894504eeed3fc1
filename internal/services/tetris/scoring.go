package tetris

import "time"

const (
	PointsPerLine    = 100                     // 1ラインあたりの基本点（レベル倍）
	PointsPerLevel   = 1000                    // レベルが1上がるのに必要な累計スコア
	BaseDropInterval = 1000 * time.Millisecond // レベル1の自動落下間隔
	DropIntervalStep = 100 * time.Millisecond  // レベルごとの短縮幅
	MinDropInterval  = 200 * time.Millisecond  // 自動落下間隔の下限
)

// Scoring はスコア・レベル・消去ライン数を管理します。
type Scoring struct {
	Score        int `json:"score"`
	Level        int `json:"level"`
	LinesCleared int `json:"lines_cleared"`
}

// NewScoring はレベル1・スコア0の初期状態を返します。
func NewScoring() Scoring {
	return Scoring{Level: 1}
}

// ApplyLineClear はライン消去イベントを反映し、レベルが変わったかどうかを返します。
// 加点には消去時点のレベルを使い、その後で累計スコアからレベルを再計算します。
// n == 0 のときはレベルを再計算しません。
func (s *Scoring) ApplyLineClear(n int) bool {
	if n < 0 {
		n = 0
	}
	s.Score += n * PointsPerLine * s.Level
	s.LinesCleared += n
	if n == 0 {
		return false
	}
	prev := s.Level
	s.Level = LevelForScore(s.Score)
	return s.Level != prev
}

// LevelForScore は累計スコアから求めたレベルを返します。
func LevelForScore(score int) int {
	return score/PointsPerLevel + 1
}

// DropInterval は現在のレベルに基づいた自動落下間隔を返します。
func DropInterval(level int) time.Duration {
	interval := BaseDropInterval - time.Duration(level-1)*DropIntervalStep
	if interval < MinDropInterval {
		interval = MinDropInterval
	}
	return interval
}
