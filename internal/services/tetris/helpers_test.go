package tetris

import (
	"testing"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
	"github.com/stretchr/testify/require"
)

// seqSource は決められた順番でピースを返す RandomSource です。最後まで使うと先頭に戻ります。
type seqSource struct {
	vals []int
	i    int
}

func (s *seqSource) Intn(n int) int {
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

func pieces(types ...tetris.PieceType) *seqSource {
	vals := make([]int, len(types))
	for i, t := range types {
		vals[i] = int(t)
	}
	return &seqSource{vals: vals}
}

// startedSession は指定順でピースが出るセッションを開始状態で返します。
func startedSession(t *testing.T, types ...tetris.PieceType) *GameSession {
	t.Helper()
	s := NewGameSession(pieces(types...))
	out := s.Start()
	require.True(t, out.Changed)
	require.False(t, out.GameOver)
	return s
}

func fillRow(b *tetris.Board, y int, except ...int) {
	skip := make(map[int]bool, len(except))
	for _, x := range except {
		skip[x] = true
	}
	for x := 0; x < tetris.BoardWidth; x++ {
		if !skip[x] {
			b[y][x] = tetris.Filled(tetris.ColorRed)
		}
	}
}

func countFilled(b tetris.Board) int {
	n := 0
	for y := range b {
		for x := range b[y] {
			if !b[y][x].IsEmpty() {
				n++
			}
		}
	}
	return n
}

// pieceCells は落下中のピースのボード座標 {x, y} を返します。
func pieceCells(p *tetris.Piece) [][2]int {
	cells := make([][2]int, 0, 4)
	for _, b := range p.Blocks() {
		cells = append(cells, [2]int{p.X + b[0], p.Y + b[1]})
	}
	return cells
}
