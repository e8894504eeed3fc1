package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
	game "github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/services/tetris"
)

// 画面レイアウト（1マスは横2文字）
const (
	cellWidth = 2
	boardLeft = 1
	boardTop  = 1
	sideLeft  = boardLeft + tetris.BoardWidth*cellWidth + 3
)

var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	textStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

// colorFor は色IDを端末の色に変換します。
func colorFor(c tetris.ColorID) tcell.Color {
	switch c {
	case tetris.ColorCyan:
		return tcell.ColorAqua
	case tetris.ColorYellow:
		return tcell.ColorYellow
	case tetris.ColorPurple:
		return tcell.ColorPurple
	case tetris.ColorGreen:
		return tcell.ColorGreen
	case tetris.ColorRed:
		return tcell.ColorRed
	case tetris.ColorBlue:
		return tcell.ColorBlue
	case tetris.ColorOrange:
		return tcell.ColorOrange
	default:
		return tcell.ColorDefault
	}
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func drawCell(s tcell.Screen, x, y int, c tetris.ColorID) {
	sx := boardLeft + x*cellWidth
	sy := boardTop + y
	if c == tetris.ColorNone {
		s.SetContent(sx, sy, ' ', nil, tcell.StyleDefault)
		s.SetContent(sx+1, sy, '.', nil, borderStyle)
		return
	}
	style := tcell.StyleDefault.Foreground(colorFor(c))
	s.SetContent(sx, sy, '█', nil, style)
	s.SetContent(sx+1, sy, '█', nil, style)
}

// drawFrame はフレーム1枚分を描画します。盤面の外枠、次のピース、スコアを表示します。
func drawFrame(s tcell.Screen, f game.Frame) {
	s.Clear()

	right := boardLeft + tetris.BoardWidth*cellWidth
	bottom := boardTop + tetris.BoardHeight
	for y := boardTop; y < bottom; y++ {
		s.SetContent(boardLeft-1, y, '│', nil, borderStyle)
		s.SetContent(right, y, '│', nil, borderStyle)
	}
	for x := boardLeft - 1; x <= right; x++ {
		s.SetContent(x, bottom, '─', nil, borderStyle)
	}

	for y := 0; y < tetris.BoardHeight; y++ {
		for x := 0; x < tetris.BoardWidth; x++ {
			drawCell(s, x, y, f.Board[y][x].Color())
		}
	}

	drawText(s, sideLeft, boardTop, titleStyle, "NEXT")
	next := f.NextPiece
	for _, b := range next.Matrix.Blocks() {
		style := tcell.StyleDefault.Foreground(colorFor(next.Color))
		x := sideLeft + b[0]*cellWidth
		y := boardTop + 2 + b[1]
		s.SetContent(x, y, '█', nil, style)
		s.SetContent(x+1, y, '█', nil, style)
	}

	drawText(s, sideLeft, boardTop+7, textStyle, fmt.Sprintf("SCORE %d", f.State.Score))
	drawText(s, sideLeft, boardTop+8, textStyle, fmt.Sprintf("LEVEL %d", f.State.Level))
	drawText(s, sideLeft, boardTop+9, textStyle, fmt.Sprintf("LINES %d", f.State.LinesCleared))
	drawText(s, sideLeft, boardTop+11, titleStyle, statusLine(f.State))

	drawText(s, sideLeft, boardTop+14, borderStyle, "←/→ move  ↓ drop")
	drawText(s, sideLeft, boardTop+15, borderStyle, "↑ rotate  space start")
	drawText(s, sideLeft, boardTop+16, borderStyle, "p pause  r reset  q quit")

	s.Show()
}

func statusLine(st game.GameState) string {
	switch {
	case st.IsOver:
		return "GAME OVER (r to reset)"
	case st.IsRunning:
		return "PLAYING"
	default:
		return "PAUSED (space to start)"
	}
}
