package tetris

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
)

// ErrLoopStopped はすでに終了したゲームループに操作を送ったときに返されます。
var ErrLoopStopped = errors.New("game loop stopped")

// Timer は1回だけ発火するタイマーです。
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock はゲームループが自動落下タイマーを作るための抽象です。テストでは手動で進める実装を使います。
type Clock interface {
	NewTimer(d time.Duration) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{t: time.NewTimer(d)} }
func (r realTimer) C() <-chan time.Time          { return r.t.C }
func (r realTimer) Stop() bool                   { return r.t.Stop() }

// RealClock は time パッケージのタイマーを使う Clock を返します。
func RealClock() Clock {
	return realClock{}
}

// Frame はクライアントに送るゲーム画面1枚分の状態です。
type Frame struct {
	Board          tetris.Board      `json:"board"`                  // 落下中のピースを重ねたボード
	ActivePiece    *tetris.Piece     `json:"active_piece,omitempty"` // 落下中のピース
	NextPiece      tetris.PieceShape `json:"next_piece"`             // 次のピース（プレビュー用）
	State          GameState         `json:"state"`
	DropIntervalMs int64             `json:"drop_interval_ms"`
	Action         Action            `json:"action,omitempty"` // このフレームを生んだアクション
	Outcome        Outcome           `json:"outcome"`
}

type loopRequest struct {
	action Action // 空文字列なら状態の参照のみ
	reply  chan Frame
}

// GameLoop は1つの GameSession を所有し、プレイヤー操作と自動落下を1本のゴルーチンで順番に処理します。
// 自動落下タイマーは常に1つだけで、レベルが変わると作り直します。
// 一時停止・リセット・ゲームオーバーでタイマーは止まります。
type GameLoop struct {
	session  *GameSession
	clock    Clock
	requests chan loopRequest
	updates  chan Frame
	done     chan struct{}

	onGameOver func(GameState) // Updates とは別に、ゲームオーバー時に必ず呼ばれる

	// 以下は Run のゴルーチンだけが触る
	timer    Timer
	interval time.Duration
}

// NewGameLoop は新しいゲームループを作成します。Run を呼ぶまで何も処理しません。
func NewGameLoop(session *GameSession, clock Clock) *GameLoop {
	if clock == nil {
		clock = RealClock()
	}
	return &GameLoop{
		session:  session,
		clock:    clock,
		requests: make(chan loopRequest),
		updates:  make(chan Frame, 64),
		done:     make(chan struct{}),
	}
}

// Updates は状態が変化するたびに送られるフレームのチャネルです。Run の終了時に閉じられます。
// 受信が追いつかない場合、フレームは捨てられます。
func (l *GameLoop) Updates() <-chan Frame {
	return l.updates
}

// OnGameOver はゲームオーバーになったときに呼ばれる関数を登録します。Run の前に呼んでください。
// Updates と違って取りこぼしはありません。fn はループのゴルーチンで同期的に呼ばれるため、
// 時間のかかる処理は fn の中で別のゴルーチンに渡してください。
func (l *GameLoop) OnGameOver(fn func(GameState)) {
	l.onGameOver = fn
}

// Done は Run が終了すると閉じられます。
func (l *GameLoop) Done() <-chan struct{} {
	return l.done
}

// Run はメインループです。ctx がキャンセルされるまで戻りません。1つのループにつき1回だけ呼び出してください。
func (l *GameLoop) Run(ctx context.Context) error {
	defer close(l.done)
	defer close(l.updates)
	defer l.stopTimer()

	log.Printf("[GameLoop] started")
	l.syncTimer(Outcome{})

	for {
		var timerC <-chan time.Time
		if l.timer != nil {
			timerC = l.timer.C()
		}

		select {
		case <-ctx.Done():
			log.Printf("[GameLoop] stopped: %v", ctx.Err())
			return ctx.Err()

		case req := <-l.requests:
			if req.action == "" {
				req.reply <- l.frame("", Outcome{})
				continue
			}
			out := l.session.Apply(req.action)
			l.syncTimer(out)
			f := l.frame(req.action, out)
			req.reply <- f
			if out.Changed {
				l.publish(f)
			}

		case <-timerC:
			// 発火済みのタイマーは捨て、syncTimer で現在の間隔で張り直す
			l.timer = nil
			out := l.session.Tick()
			l.syncTimer(out)
			if out.Changed {
				l.publish(l.frame(ActionTick, out))
			}
		}
	}
}

// Dispatch はアクションをループに送り、処理後のフレームを返します。
func (l *GameLoop) Dispatch(ctx context.Context, a Action) (Frame, error) {
	return l.roundTrip(ctx, loopRequest{action: a, reply: make(chan Frame, 1)})
}

// View は現在のフレームを返します。状態は変わりません。
func (l *GameLoop) View(ctx context.Context) (Frame, error) {
	return l.roundTrip(ctx, loopRequest{reply: make(chan Frame, 1)})
}

func (l *GameLoop) roundTrip(ctx context.Context, req loopRequest) (Frame, error) {
	select {
	case l.requests <- req:
	case <-l.done:
		return Frame{}, ErrLoopStopped
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
	// Run は送信を受け取ったら必ず返信する（reply はバッファ付き）
	select {
	case f := <-req.reply:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// syncTimer はセッションの状態に合わせてタイマーを張る・止める・張り直します。
func (l *GameLoop) syncTimer(out Outcome) {
	if out.GameOver {
		st := l.session.State()
		log.Printf("[GameLoop] game over: score=%d level=%d lines=%d", st.Score, st.Level, st.LinesCleared)
		if l.onGameOver != nil {
			l.onGameOver(st)
		}
	}
	if !l.session.State().IsRunning {
		l.stopTimer()
		return
	}
	interval := l.session.DropInterval()
	if l.timer != nil && !out.LevelChanged && interval == l.interval {
		return
	}
	if l.interval != 0 && l.interval != interval {
		log.Printf("[GameLoop] drop interval changed: %v -> %v", l.interval, interval)
	}
	l.stopTimer()
	l.interval = interval
	l.timer = l.clock.NewTimer(interval)
}

func (l *GameLoop) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *GameLoop) frame(a Action, out Outcome) Frame {
	return Frame{
		Board:          l.session.BoardSnapshot(),
		ActivePiece:    l.session.ActivePiece(),
		NextPiece:      l.session.NextPiece(),
		State:          l.session.State(),
		DropIntervalMs: l.session.DropInterval().Milliseconds(),
		Action:         a,
		Outcome:        out,
	}
}

// publish はフレームを Updates に送ります。チャネルがいっぱいなら捨てます。
func (l *GameLoop) publish(f Frame) {
	select {
	case l.updates <- f:
	default:
		log.Printf("[GameLoop] updates channel full, dropping frame (action=%s)", f.Action)
	}
}
