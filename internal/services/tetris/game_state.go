package tetris

import (
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
)

// Action はゲームセッションに対する操作です。文字列値はクライアントとの通信でもそのまま使います。
type Action string

const (
	ActionStart     Action = "start"      // ゲーム開始、または一時停止からの再開
	ActionReset     Action = "reset"      // 初期状態に戻す（開始はしない）
	ActionPause     Action = "pause"      // 一時停止
	ActionMoveLeft  Action = "move_left"  // 左に1マス
	ActionMoveRight Action = "move_right" // 右に1マス
	ActionSoftDrop  Action = "soft_drop"  // 下に1マス（プレイヤー操作）
	ActionRotate    Action = "rotate"     // 時計回りに回転
	ActionTick      Action = "tick"       // 自動落下（ゲームループのみが発行）
)

// ErrUnknownAction は未知のアクション名を受け取ったときに返されます。
var ErrUnknownAction = errors.New("unknown action")

// ParseAction は文字列をActionに変換します。"tick" はゲームループ専用のため受け付けません。
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionReset, ActionPause, ActionMoveLeft, ActionMoveRight, ActionSoftDrop, ActionRotate:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Outcome はアクション1回分の結果です。
// 衝突で拒否された操作は Changed == false になるだけで、エラーにはなりません。
type Outcome struct {
	Changed      bool `json:"changed"`       // 状態が変化した
	Locked       bool `json:"locked"`        // ピースが固定された
	RowsCleared  int  `json:"rows_cleared"`  // 今回消えたライン数
	LevelChanged bool `json:"level_changed"` // レベル（＝落下間隔）が変わった
	GameOver     bool `json:"game_over"`     // このアクションでゲームオーバーになった（1度だけ true）
}

// GameState はUIに公開するゲーム状態です。
type GameState struct {
	Score        int  `json:"score"`
	Level        int  `json:"level"`
	LinesCleared int  `json:"lines_cleared"`
	IsRunning    bool `json:"is_running"`
	IsOver       bool `json:"is_over"`
}

// GameSession は1人分のテトリスゲームの状態です。
// ボードとスコアを書き換えるのはこの型だけで、外部からはアクションを通してのみ変更できます。
// 並行アクセスには対応していません。複数のゴルーチンから使う場合は GameLoop を通してください。
type GameSession struct {
	board      tetris.Board
	controller PieceController
	next       tetris.PieceType // 次に出現するピース（プレビュー用）
	scoring    Scoring
	running    bool
	over       bool
	rng        tetris.RandomSource
}

// NewGameSession は新しいゲームセッションを返します。最初のピースは Start で生成されます。
func NewGameSession(rng tetris.RandomSource) *GameSession {
	s := &GameSession{rng: rng}
	s.reset()
	return s
}

// Apply はアクションを1つ処理します。
func (s *GameSession) Apply(a Action) Outcome {
	switch a {
	case ActionStart:
		return s.Start()
	case ActionReset:
		return s.Reset()
	case ActionPause:
		return s.Pause()
	case ActionMoveLeft:
		return s.MoveLeft()
	case ActionMoveRight:
		return s.MoveRight()
	case ActionSoftDrop:
		return s.SoftDrop()
	case ActionRotate:
		return s.Rotate()
	case ActionTick:
		return s.Tick()
	default:
		return Outcome{}
	}
}

// Start はゲームを開始します。一時停止中なら再開します。
// ゲームオーバー後は Reset するまで何もしません。
func (s *GameSession) Start() Outcome {
	if s.over || s.running {
		return Outcome{}
	}
	s.running = true
	if s.controller.State() == StateNoPiece {
		if err := s.spawnNext(); err != nil {
			return s.gameOver(Outcome{Changed: true})
		}
	}
	return Outcome{Changed: true}
}

// Reset はボード・スコア・ピースをすべて初期状態に戻します。開始はしません。
func (s *GameSession) Reset() Outcome {
	s.reset()
	return Outcome{Changed: true}
}

func (s *GameSession) reset() {
	s.board = tetris.NewBoard()
	s.controller.Clear()
	s.scoring = NewScoring()
	s.next = tetris.RandomPiece(s.rng)
	s.running = false
	s.over = false
}

// Pause は自動落下と操作を止めます。ゲームは終了しません。
func (s *GameSession) Pause() Outcome {
	if !s.running {
		return Outcome{}
	}
	s.running = false
	return Outcome{Changed: true}
}

func (s *GameSession) MoveLeft() Outcome  { return s.move(-1, 0) }
func (s *GameSession) MoveRight() Outcome { return s.move(1, 0) }

// SoftDrop はプレイヤーの明示的な1段落下です。
func (s *GameSession) SoftDrop() Outcome { return s.move(0, 1) }

// Tick はゲームループの自動落下です。
func (s *GameSession) Tick() Outcome { return s.move(0, 1) }

// Rotate は落下中のピースを時計回りに回転します。無効な回転は何もしません。
func (s *GameSession) Rotate() Outcome {
	if !s.running {
		return Outcome{}
	}
	return Outcome{Changed: s.controller.Rotate(&s.board)}
}

func (s *GameSession) move(dx, dy int) Outcome {
	if !s.running {
		return Outcome{}
	}
	res := s.controller.Move(&s.board, dx, dy)
	if res.Locked != nil {
		return s.handlePieceLock(res.Locked)
	}
	return Outcome{Changed: res.Moved}
}

// handlePieceLock はピースがボードに固定された後の処理をすべて行います。
// ボードへのマージ、ライン消去、スコア・レベル更新、次のピース生成、ゲームオーバー判定が含まれます。
func (s *GameSession) handlePieceLock(p *tetris.Piece) Outcome {
	s.board.MergePiece(p)
	cleared := s.board.ClearFullRows()
	levelChanged := s.scoring.ApplyLineClear(cleared)

	out := Outcome{
		Changed:      true,
		Locked:       true,
		RowsCleared:  cleared,
		LevelChanged: levelChanged,
	}
	if err := s.spawnNext(); err != nil {
		return s.gameOver(out)
	}
	return out
}

// spawnNext は「次のピース」をスポーンさせ、直後に新しい次のピースを抽選します。
func (s *GameSession) spawnNext() error {
	current := s.next
	s.next = tetris.RandomPiece(s.rng)
	return s.controller.Spawn(current, &s.board)
}

func (s *GameSession) gameOver(out Outcome) Outcome {
	s.over = true
	s.running = false
	out.GameOver = true
	return out
}

// BoardSnapshot は固定済みのマスに落下中のピースを重ねたボードを返します。表示専用で状態は変えません。
func (s *GameSession) BoardSnapshot() tetris.Board {
	return s.board.WithPiece(s.controller.piece)
}

// Board は固定済みのマスだけのボードのコピーを返します。
func (s *GameSession) Board() tetris.Board {
	return s.board
}

// ActivePiece は落下中のピースのコピーです。ピースがなければ nil です。
func (s *GameSession) ActivePiece() *tetris.Piece {
	return s.controller.Piece()
}

// NextPiece は次に出現するピースの形状を返します。
func (s *GameSession) NextPiece() tetris.PieceShape {
	return s.next.Shape()
}

// State は現在のゲーム状態を返します。
func (s *GameSession) State() GameState {
	return GameState{
		Score:        s.scoring.Score,
		Level:        s.scoring.Level,
		LinesCleared: s.scoring.LinesCleared,
		IsRunning:    s.running,
		IsOver:       s.over,
	}
}

// DropInterval は現在のレベルでの自動落下間隔です。
func (s *GameSession) DropInterval() time.Duration {
	return DropInterval(s.scoring.Level)
}
