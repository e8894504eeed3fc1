package tetris

import (
	"errors"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
)

// スポーン位置（10列ボードでの列4、行0）
const (
	SpawnX = 4
	SpawnY = 0
)

// ErrSpawnBlocked はスポーン位置にピースを置けないとき（ゲームオーバー）に返されます。
var ErrSpawnBlocked = errors.New("spawn position is blocked")

// ControllerState はPieceControllerの状態です。
type ControllerState int

const (
	StateNoPiece  ControllerState = iota // 操作中のピースなし
	StateFalling                         // 落下中
	StateLocking                         // 固定処理中（外部からは観測されない）
	StateSpawning                        // 生成中（外部からは観測されない）
)

func (s ControllerState) String() string {
	switch s {
	case StateNoPiece:
		return "no_piece"
	case StateFalling:
		return "falling"
	case StateLocking:
		return "locking"
	case StateSpawning:
		return "spawning"
	default:
		return "unknown"
	}
}

// MoveResult は Move の結果です。
type MoveResult struct {
	Moved  bool          // 原点が更新された
	Locked *tetris.Piece // 下方向の移動が塞がれて固定されたピース（それ以外は nil）
}

// PieceController は落下中のピースを所有し、移動・回転を衝突判定に通して適用します。
// ボードは参照するだけで書き換えません。固定されたピースは Locked として呼び出し側に渡します。
type PieceController struct {
	piece *tetris.Piece
	state ControllerState
}

// State は現在の状態を返します。
func (c *PieceController) State() ControllerState {
	return c.state
}

// Piece は落下中のピースのコピーを返します。ピースがなければ nil です。
func (c *PieceController) Piece() *tetris.Piece {
	if c.piece == nil {
		return nil
	}
	return c.piece.Clone()
}

// Spawn は新しいピースをスポーン位置に置きます。
// スポーン位置が無効なら ErrSpawnBlocked を返し、ピースなしの状態に戻ります。
func (c *PieceController) Spawn(t tetris.PieceType, board *tetris.Board) error {
	c.state = StateSpawning
	p := tetris.NewPiece(t)
	p.X = SpawnX
	p.Y = SpawnY
	if !board.IsValidPosition(p.Matrix, p.X, p.Y) {
		c.piece = nil
		c.state = StateNoPiece
		return ErrSpawnBlocked
	}
	c.piece = p
	c.state = StateFalling
	return nil
}

// Move はピースを (dx, dy) だけ動かします。
// 移動先が無効で dy > 0 の場合のみピースを固定し、Locked に渡して自身はピースなしになります。
// 横方向・上方向の無効な移動は何もしません。
func (c *PieceController) Move(board *tetris.Board, dx, dy int) MoveResult {
	if c.state != StateFalling {
		return MoveResult{}
	}
	if !board.HasCollision(c.piece, dx, dy) {
		c.piece.X += dx
		c.piece.Y += dy
		return MoveResult{Moved: true}
	}
	if dy <= 0 {
		return MoveResult{}
	}

	c.state = StateLocking
	locked := c.piece
	c.piece = nil
	c.state = StateNoPiece
	return MoveResult{Locked: locked}
}

// Rotate は時計回りに回転した形状を同じ原点で試し、有効なときだけ採用します。
// 壁蹴り（wall kick）は行いません。
func (c *PieceController) Rotate(board *tetris.Board) bool {
	if c.state != StateFalling {
		return false
	}
	rotated := tetris.RotateClockwise(c.piece.Matrix)
	if !board.IsValidPosition(rotated, c.piece.X, c.piece.Y) {
		return false
	}
	c.piece.Matrix = rotated
	return true
}

// Clear は落下中のピースを捨ててピースなしの状態にします（リセット用）。
func (c *PieceController) Clear() {
	c.piece = nil
	c.state = StateNoPiece
}
