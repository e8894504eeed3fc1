// play はローカルで1人用テトリスを遊ぶ端末クライアントです。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/config"
	game "github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/services/tetris"
)

// keyAction はキー入力をアクションに変換します。quit が true なら終了です。
// running は p キーで一時停止と再開を切り替えるために使います。
func keyAction(ev *tcell.EventKey, running bool) (action game.Action, quit, ok bool) {
	switch ev.Key() {
	case tcell.KeyLeft:
		return game.ActionMoveLeft, false, true
	case tcell.KeyRight:
		return game.ActionMoveRight, false, true
	case tcell.KeyDown:
		return game.ActionSoftDrop, false, true
	case tcell.KeyUp:
		return game.ActionRotate, false, true
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return "", true, false
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ':
			return game.ActionStart, false, true
		case 'p', 'P':
			if running {
				return game.ActionPause, false, true
			}
			return game.ActionStart, false, true
		case 'r', 'R':
			return game.ActionReset, false, true
		case 'q', 'Q':
			return "", true, false
		}
	}
	return "", false, false
}

func main() {
	// 不正な TETRIS_SEED は時刻ベースとして扱う
	seed, err := strconv.ParseInt(config.GetEnv("TETRIS_SEED", "0"), 10, 64)
	if err != nil {
		seed = 0
	}
	flag.Int64Var(&seed, "seed", seed, "piece sequence seed (0 = time based)")
	logPath := flag.String("log", "", "write logs to this file instead of discarding them")
	flag.Parse()

	// 端末を壊さないようにログは画面に出さない
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if err := run(seed); err != nil {
		fmt.Fprintf(os.Stderr, "game error: %v\n", err)
		os.Exit(1)
	}
}

func run(seed int64) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	session := game.NewGameSession(game.SeededRandom(seed)())
	loop := game.NewGameLoop(session, game.RealClock())
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-loop.Done()
	}()
	go loop.Run(ctx)

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return // Fini 後
			}
			events <- ev
		}
	}()

	f, err := loop.View(ctx)
	if err != nil {
		return err
	}
	drawFrame(screen, f)

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				drawFrame(screen, f)
			case *tcell.EventKey:
				action, quit, ok := keyAction(ev, f.State.IsRunning)
				if quit {
					return nil
				}
				if !ok {
					continue
				}
				if f, err = loop.Dispatch(ctx, action); err != nil {
					return err
				}
				drawFrame(screen, f)
			}

		case next, ok := <-loop.Updates():
			if !ok {
				return nil
			}
			f = next
			drawFrame(screen, f)
		}
	}
}
