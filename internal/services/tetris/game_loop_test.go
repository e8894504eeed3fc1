package tetris

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock はテストから明示的に発火させるタイマーを作る Clock です。
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	c       chan time.Time
	d       time.Duration
	stopped bool
	fired   bool
}

func (c *manualClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, c: make(chan time.Time), d: d}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) C() <-chan time.Time { return t.c }

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// active は停止も発火もしていないタイマーをすべて返します。
func (c *manualClock) active() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *manualClock) created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// fire は唯一の有効なタイマーを発火させ、ループが受け取るまで待ちます。
func (c *manualClock) fire(t *testing.T) {
	t.Helper()
	active := c.active()
	require.Len(t, active, 1, "exactly one armed timer expected")
	tm := active[0]
	select {
	case tm.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("game loop did not receive the timer")
	}
	c.mu.Lock()
	tm.fired = true
	c.mu.Unlock()
}

func requireArmed(t *testing.T, c *manualClock, d time.Duration) {
	t.Helper()
	active := c.active()
	require.Len(t, active, 1)
	assert.Equal(t, d, active[0].d)
}

func runLoop(t *testing.T, s *GameSession) (*GameLoop, *manualClock, context.CancelFunc, <-chan error) {
	t.Helper()
	clock := &manualClock{}
	loop := NewGameLoop(s, clock)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, clock, cancel, errc
}

func nextFrame(t *testing.T, loop *GameLoop) Frame {
	t.Helper()
	select {
	case f, ok := <-loop.Updates():
		require.True(t, ok, "updates channel closed")
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame published")
		return Frame{}
	}
}

func TestGameLoop_NoTimerBeforeStart(t *testing.T) {
	loop, clock, _, _ := runLoop(t, NewGameSession(pieces(tetris.TypeT)))
	ctx := context.Background()

	f, err := loop.View(ctx)
	require.NoError(t, err)
	assert.False(t, f.State.IsRunning)
	assert.Nil(t, f.ActivePiece)
	assert.Equal(t, tetris.TypeT, f.NextPiece.Type)
	assert.Empty(t, clock.active())

	// 開始前の移動は変化なしで、フレームも配信されない
	f, err = loop.Dispatch(ctx, ActionMoveLeft)
	require.NoError(t, err)
	assert.False(t, f.Outcome.Changed)
	assert.Empty(t, loop.Updates())
}

func TestGameLoop_StartArmsTimerAndTickMovesPiece(t *testing.T) {
	loop, clock, _, _ := runLoop(t, NewGameSession(pieces(tetris.TypeT, tetris.TypeO)))
	ctx := context.Background()

	f, err := loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	assert.True(t, f.State.IsRunning)
	assert.Equal(t, int64(1000), f.DropIntervalMs)
	require.NotNil(t, f.ActivePiece)
	assert.Equal(t, SpawnY, f.ActivePiece.Y)
	requireArmed(t, clock, time.Second)

	published := nextFrame(t, loop)
	assert.Equal(t, ActionStart, published.Action)

	clock.fire(t)
	f, err = loop.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, SpawnY+1, f.ActivePiece.Y)

	published = nextFrame(t, loop)
	assert.Equal(t, ActionTick, published.Action)
	assert.True(t, published.Outcome.Changed)

	// 発火後は同じ間隔で張り直される
	requireArmed(t, clock, time.Second)
	assert.Equal(t, 2, clock.created())
}

func TestGameLoop_SoftDropDoesNotRearmTimer(t *testing.T) {
	loop, clock, _, _ := runLoop(t, NewGameSession(pieces(tetris.TypeT)))
	ctx := context.Background()

	_, err := loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f, err := loop.Dispatch(ctx, ActionSoftDrop)
		require.NoError(t, err)
		assert.True(t, f.Outcome.Changed)
	}
	assert.Equal(t, 1, clock.created())
	requireArmed(t, clock, time.Second)
}

func TestGameLoop_PauseStopsTimerAndStartResumes(t *testing.T) {
	loop, clock, _, _ := runLoop(t, NewGameSession(pieces(tetris.TypeT)))
	ctx := context.Background()

	_, err := loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	requireArmed(t, clock, time.Second)

	f, err := loop.Dispatch(ctx, ActionPause)
	require.NoError(t, err)
	assert.False(t, f.State.IsRunning)
	assert.Empty(t, clock.active())

	_, err = loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	requireArmed(t, clock, time.Second)

	_, err = loop.Dispatch(ctx, ActionReset)
	require.NoError(t, err)
	assert.Empty(t, clock.active())
}

func TestGameLoop_LevelChangeRearmsWithShorterInterval(t *testing.T) {
	s := NewGameSession(pieces(tetris.TypeI, tetris.TypeO))
	require.False(t, s.Start().GameOver)
	s.scoring.Score = 950
	fillRow(&s.board, 19, 0)
	require.True(t, s.Rotate().Changed)
	for s.MoveLeft().Changed {
	}

	loop, clock, _, _ := runLoop(t, s)
	ctx := context.Background()

	var f Frame
	for i := 0; i < tetris.BoardHeight && !f.Outcome.Locked; i++ {
		var err error
		f, err = loop.Dispatch(ctx, ActionSoftDrop)
		require.NoError(t, err)
	}
	require.True(t, f.Outcome.Locked)
	assert.True(t, f.Outcome.LevelChanged)
	assert.Equal(t, 2, f.State.Level)
	assert.Equal(t, int64(900), f.DropIntervalMs)

	// 古いタイマーは止まり、新しい間隔のタイマーが1つだけ張られる
	requireArmed(t, clock, 900*time.Millisecond)
	assert.Equal(t, 2, clock.created())
}

func TestGameLoop_GameOverStopsTimer(t *testing.T) {
	s := NewGameSession(pieces(tetris.TypeO, tetris.TypeT))
	for y := 2; y < tetris.BoardHeight; y++ {
		s.board[y][4] = tetris.Filled(tetris.ColorRed)
		s.board[y][5] = tetris.Filled(tetris.ColorRed)
	}
	require.False(t, s.Start().GameOver)

	loop, clock, _, _ := runLoop(t, s)
	ctx := context.Background()

	// Run が最初のタイマーを張り終えるまで待つ
	f, err := loop.View(ctx)
	require.NoError(t, err)
	require.True(t, f.State.IsRunning)

	clock.fire(t)
	f, err = loop.View(ctx)
	require.NoError(t, err)
	assert.True(t, f.State.IsOver)
	assert.False(t, f.State.IsRunning)
	assert.Empty(t, clock.active())

	published := nextFrame(t, loop)
	assert.True(t, published.Outcome.GameOver)

	f, err = loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	assert.False(t, f.Outcome.Changed)
	assert.Empty(t, clock.active())
}

func TestGameLoop_OnGameOverFiresWhenUpdatesAreFull(t *testing.T) {
	s := NewGameSession(pieces(tetris.TypeO, tetris.TypeT))
	for y := 2; y < tetris.BoardHeight; y++ {
		s.board[y][4] = tetris.Filled(tetris.ColorRed)
		s.board[y][5] = tetris.Filled(tetris.ColorRed)
	}
	require.False(t, s.Start().GameOver)

	clock := &manualClock{}
	loop := NewGameLoop(s, clock)
	gameOver := make(chan GameState, 1)
	loop.OnGameOver(func(st GameState) { gameOver <- st })

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	// 誰も Updates を読まないままバッファを埋める（偶数回なので元の列に戻る）
	for i := 0; i < cap(loop.updates)+10; i++ {
		a := ActionMoveLeft
		if i%2 == 1 {
			a = ActionMoveRight
		}
		f, err := loop.Dispatch(ctx, a)
		require.NoError(t, err)
		require.True(t, f.Outcome.Changed)
	}
	require.Len(t, loop.updates, cap(loop.updates))

	// O が着地して固定され、次の T がスポーンできずにゲームオーバー
	clock.fire(t)

	select {
	case st := <-gameOver:
		assert.True(t, st.IsOver)
		assert.False(t, st.IsRunning)
	case <-time.After(time.Second):
		t.Fatal("game over handler was not called")
	}
	assert.Empty(t, gameOver, "handler must be called exactly once")

	f, err := loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	assert.False(t, f.Outcome.Changed)
	assert.Empty(t, gameOver)
}

func TestGameLoop_ContextCancelStopsLoop(t *testing.T) {
	loop, clock, cancel, errc := runLoop(t, NewGameSession(pieces(tetris.TypeT)))
	ctx := context.Background()

	_, err := loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, clock.active())

	_, err = loop.Dispatch(ctx, ActionMoveLeft)
	assert.ErrorIs(t, err, ErrLoopStopped)
	_, err = loop.View(ctx)
	assert.ErrorIs(t, err, ErrLoopStopped)

	// Updates は閉じられている
	for range loop.Updates() {
	}
}

func TestGameLoop_DispatchHonorsCallerContext(t *testing.T) {
	loop := NewGameLoop(NewGameSession(pieces(tetris.TypeT)), &manualClock{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Run していないループへの送信は呼び出し側の ctx で打ち切られる
	_, err := loop.Dispatch(ctx, ActionStart)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGameLoop_FullUpdatesChannelDropsFrames(t *testing.T) {
	loop, _, _, _ := runLoop(t, NewGameSession(pieces(tetris.TypeT)))
	ctx := context.Background()

	_, err := loop.Dispatch(ctx, ActionStart)
	require.NoError(t, err)
	// 受信せずにバッファを超える数の変化を起こしてもループは止まらない
	for i := 0; i < cap(loop.updates)+10; i++ {
		if i%2 == 0 {
			_, err = loop.Dispatch(ctx, ActionMoveLeft)
		} else {
			_, err = loop.Dispatch(ctx, ActionMoveRight)
		}
		require.NoError(t, err)
	}
	assert.Len(t, loop.Updates(), cap(loop.updates))
}

func TestNewGameLoop_DefaultsToRealClock(t *testing.T) {
	loop := NewGameLoop(NewGameSession(pieces(tetris.TypeT)), nil)
	assert.Equal(t, RealClock(), loop.clock)
}
