package tetris

const (
	BoardWidth  = 10 // テトリスボードの幅
	BoardHeight = 20 // テトリスボードの高さ
)

// Cell はボードの1マスです。0 は空、それ以外は固定されたブロックの ColorID です。
type Cell uint8

// CellEmpty は空のマスです。
const CellEmpty Cell = 0

// Filled は指定色で埋まったマスを返します。
func Filled(c ColorID) Cell {
	return Cell(c)
}

// IsEmpty はマスが空かどうかを返します。
func (c Cell) IsEmpty() bool {
	return c == CellEmpty
}

// Color はマスの色を返します。空のマスは ColorNone です。
func (c Cell) Color() ColorID {
	return ColorID(c)
}

// Board はテトリスのゲームボードを表す2次元配列です。
// Board[y][x] でアクセスします。yは行（0が最上段）、xは列です。
type Board [BoardHeight][BoardWidth]Cell

// NewBoard は新しい空のボードを返します。
// Goの配列はゼロ値（CellEmpty）で初期化されるため、特別な初期化は不要です。
func NewBoard() Board {
	var board Board
	return board
}

// IsEmpty は (x, y) のマスが空かどうかを返します。ボード外は空ではないとみなします。
func (b *Board) IsEmpty(x, y int) bool {
	if x < 0 || x >= BoardWidth || y < 0 || y >= BoardHeight {
		return false
	}
	return b[y][x].IsEmpty()
}

// IsValidPosition は行列 m を原点 (x, y) に置いたとき、有効な配置かどうかを判定します。
//
// 埋まっている各マスについて
//   - 列が [0, BoardWidth) に収まる
//   - 行が BoardHeight 未満
//   - 行が 0 以上の場合のみ、ボードのマスが空
//
// を満たす必要があります。ボードより上（行 < 0）のマスは占有チェックの対象外ですが、
// 左右の境界チェックは免除されません。
func (b *Board) IsValidPosition(m Matrix, x, y int) bool {
	for dy, row := range m {
		for dx, filled := range row {
			if !filled {
				continue
			}
			bx := x + dx
			by := y + dy
			if bx < 0 || bx >= BoardWidth || by >= BoardHeight {
				return false
			}
			if by >= 0 && !b[by][bx].IsEmpty() {
				return false
			}
		}
	}
	return true
}

// HasCollision はピースを (dx, dy) だけずらしたときに壁や既存のブロックと衝突するかどうかを返します。
func (b *Board) HasCollision(p *Piece, dx, dy int) bool {
	return !b.IsValidPosition(p.Matrix, p.X+dx, p.Y+dy)
}

// MergePiece は落下したピースをボードに固定します。
// ボードより上（行 < 0）にはみ出したマスは書き込まずに捨てます。
func (b *Board) MergePiece(p *Piece) {
	cell := Filled(p.Color())
	for _, block := range p.Blocks() {
		x := p.X + block[0]
		y := p.Y + block[1]
		if y < 0 {
			continue
		}
		if x >= 0 && x < BoardWidth && y < BoardHeight {
			b[y][x] = cell
		}
	}
}

// isRowFull は y 行目がすべて埋まっているかを返します。
func (b *Board) isRowFull(y int) bool {
	for x := 0; x < BoardWidth; x++ {
		if b[y][x].IsEmpty() {
			return false
		}
	}
	return true
}

// ClearFullRows は揃ったラインをすべて消し、残りの行を相対順序を保ったまま下に詰めます。
// 空いた上部の行は空のマスで埋めます。
//
// Returns:
//
//	int: クリアされたライン数（なければ0）
func (b *Board) ClearFullRows() int {
	cleared := 0
	newBoard := NewBoard()
	destY := BoardHeight - 1

	// ボードの最下部から上に向かって各行をチェック
	for y := BoardHeight - 1; y >= 0; y-- {
		if b.isRowFull(y) {
			cleared++
			continue
		}
		newBoard[destY] = b[y]
		destY--
	}
	*b = newBoard
	return cleared
}

// WithPiece はボードのコピーに落下中のピースを重ねたものを返します。表示専用です。
func (b Board) WithPiece(p *Piece) Board {
	if p != nil {
		b.MergePiece(p)
	}
	return b
}
