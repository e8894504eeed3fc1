package tetris

import (
	"encoding/json"
	"fmt"
)

// PieceType はテトリミノの種類を表します。
// 7種類で閉じた列挙型で、形状と色はすべてこの値から決まります。
type PieceType int

const (
	TypeI PieceType = iota // 0: I-ミノ (シアン)
	TypeO                  // 1: O-ミノ (黄色)
	TypeT                  // 2: T-ミノ (紫)
	TypeS                  // 3: S-ミノ (緑)
	TypeZ                  // 4: Z-ミノ (赤)
	TypeJ                  // 5: J-ミノ (青)
	TypeL                  // 6: L-ミノ (オレンジ)
)

// PieceTypeCount はテトリミノの種類数です。
const PieceTypeCount = 7

// ColorID は描画とボードへの固定にのみ使う色の識別子です。ゲームロジックには影響しません。
type ColorID uint8

const (
	ColorNone   ColorID = iota // 0: 色なし (空のマス)
	ColorCyan                  // 1: I
	ColorYellow                // 2: O
	ColorPurple                // 3: T
	ColorGreen                 // 4: S
	ColorRed                   // 5: Z
	ColorBlue                  // 6: J
	ColorOrange                // 7: L
)

// Matrix は正方形のビットマップです。Matrix[y][x] が true のマスが埋まっています。
type Matrix [][]bool

// PieceShape はテトリミノの基本形状（回転前）と色の組です。
type PieceShape struct {
	Type   PieceType `json:"type"`
	Color  ColorID   `json:"color"`
	Matrix Matrix    `json:"matrix"`
}

// pieceShapes は各PieceTypeの基本形状を定義します。
// 原点は左上で、回転は RotateClockwise で都度計算します（SRSのキックテーブルは持ちません）。
var pieceShapes = [PieceTypeCount]struct {
	color ColorID
	rows  []string
}{
	TypeI: {ColorCyan, []string{
		"....",
		"####",
		"....",
		"....",
	}},
	TypeO: {ColorYellow, []string{
		"##",
		"##",
	}},
	TypeT: {ColorPurple, []string{
		".#.",
		"###",
		"...",
	}},
	TypeS: {ColorGreen, []string{
		".##",
		"##.",
		"...",
	}},
	TypeZ: {ColorRed, []string{
		"##.",
		".##",
		"...",
	}},
	TypeJ: {ColorBlue, []string{
		"#..",
		"###",
		"...",
	}},
	TypeL: {ColorOrange, []string{
		"..#",
		"###",
		"...",
	}},
}

// RandomSource はピース抽選に使う一様乱数源です。*math/rand.Rand がそのまま満たします。
type RandomSource interface {
	Intn(n int) int
}

// RandomPiece は7種類から一様にピースを選びます。
// 7-bag のような偏り防止はしていないため、同じピースが連続することもあります。
func RandomPiece(r RandomSource) PieceType {
	return PieceType(r.Intn(PieceTypeCount))
}

// Valid はPieceTypeが7種類のいずれかであるかを返します。
func (t PieceType) Valid() bool {
	return t >= TypeI && t <= TypeL
}

// Shape はPieceTypeの基本形状を返します。返り値の Matrix は毎回新しく確保されます。
func (t PieceType) Shape() PieceShape {
	def := pieceShapes[t]
	m := make(Matrix, len(def.rows))
	for y, row := range def.rows {
		m[y] = make([]bool, len(row))
		for x, c := range row {
			m[y][x] = c == '#'
		}
	}
	return PieceShape{Type: t, Color: def.color, Matrix: m}
}

// Color はPieceTypeに対応する色を返します。
func (t PieceType) Color() ColorID {
	return pieceShapes[t].color
}

// String はPieceTypeを "I", "O" などの文字列に変換します。
func (t PieceType) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeO:
		return "O"
	case TypeT:
		return "T"
	case TypeS:
		return "S"
	case TypeZ:
		return "Z"
	case TypeJ:
		return "J"
	case TypeL:
		return "L"
	default:
		return fmt.Sprintf("PieceType(%d)", int(t))
	}
}

// ParsePieceType は文字列のテトリミノタイプ（"I", "O", "T"など）をPieceTypeに変換します。
func ParsePieceType(s string) (PieceType, bool) {
	switch s {
	case "I":
		return TypeI, true
	case "O":
		return TypeO, true
	case "T":
		return TypeT, true
	case "S":
		return TypeS, true
	case "Z":
		return TypeZ, true
	case "J":
		return TypeJ, true
	case "L":
		return TypeL, true
	default:
		return TypeI, false
	}
}

func (t PieceType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid piece type %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *PieceType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParsePieceType(s)
	if !ok {
		return fmt.Errorf("unknown piece type %q", s)
	}
	*t = parsed
	return nil
}

// RotateClockwise は行列を時計回りに90度回転した新しい行列を返します。
// result[x][rows-1-y] = m[y][x] の単純な転置+反転で、境界や衝突の判定は行いません。
// 4回適用すると元の行列と同じ配置に戻ります。
func RotateClockwise(m Matrix) Matrix {
	rows := len(m)
	if rows == 0 {
		return Matrix{}
	}
	cols := len(m[0])
	result := make(Matrix, cols)
	for x := range result {
		result[x] = make([]bool, rows)
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			result[x][rows-1-y] = m[y][x]
		}
	}
	return result
}

// Clone は行列のディープコピーを返します。
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for y, row := range m {
		out[y] = append([]bool(nil), row...)
	}
	return out
}

// Blocks は埋まっているマスのローカル座標 {x, y} の一覧を返します。
func (m Matrix) Blocks() [][2]int {
	blocks := make([][2]int, 0, 4)
	for y, row := range m {
		for x, filled := range row {
			if filled {
				blocks = append(blocks, [2]int{x, y})
			}
		}
	}
	return blocks
}

// Equal は2つの行列の占有パターンが一致するかどうかを返します。
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for y := range m {
		if len(m[y]) != len(other[y]) {
			return false
		}
		for x := range m[y] {
			if m[y][x] != other[y][x] {
				return false
			}
		}
	}
	return true
}

// Piece は落下中のテトリミノです。回転適用済みの行列とボード上の原点（左上）を持ちます。
type Piece struct {
	Type   PieceType `json:"type"`   // テトリミノの種類
	Matrix Matrix    `json:"matrix"` // 回転適用済みの形状
	X      int       `json:"x"`      // ボード上のX座標（行列の左上）
	Y      int       `json:"y"`      // ボード上のY座標（行列の左上）
}

// NewPiece は基本形状を持つ新しいピースを原点 (0, 0) で作成します。
func NewPiece(t PieceType) *Piece {
	return &Piece{Type: t, Matrix: t.Shape().Matrix}
}

// Blocks は現在の回転状態における埋まったマスのローカル座標を返します。
func (p *Piece) Blocks() [][2]int {
	return p.Matrix.Blocks()
}

// Color はピースの色です。
func (p *Piece) Color() ColorID {
	return p.Type.Color()
}

// Clone は現在のPieceオブジェクトのディープコピーを返します。
// 操作前の状態を保持したまま、操作後の状態を仮に試すために使います。
func (p *Piece) Clone() *Piece {
	newP := *p
	newP.Matrix = p.Matrix.Clone()
	return &newP
}
