package paging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/dailyq/internal/model"
)

// ErrPagerClosed はPagerのコンテキストが終了した後に操作した場合のエラー。
var ErrPagerClosed = errors.New("pager is closed")

// ErrPagerNotStarted はStart前に操作した場合のエラー。
var ErrPagerNotStarted = errors.New("pager is not started")

// LoadStatus は端ごとのロード状態。
type LoadStatus int

const (
	StatusIdle LoadStatus = iota
	StatusLoading
	StatusError
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// LoadState は1つの端（refresh/prepend/append）の状態。
type LoadState struct {
	Status                 LoadStatus
	EndOfPaginationReached bool
	Err                    error
}

// LoadStates は3つの端の状態の組。
type LoadStates struct {
	Refresh LoadState
	Prepend LoadState
	Append  LoadState
}

func (s *LoadStates) get(t model.LoadType) LoadState {
	switch t {
	case model.LoadPrepend:
		return s.Prepend
	case model.LoadAppend:
		return s.Append
	default:
		return s.Refresh
	}
}

func (s *LoadStates) set(t model.LoadType, st LoadState) {
	switch t {
	case model.LoadPrepend:
		s.Prepend = st
	case model.LoadAppend:
		s.Append = st
	default:
		s.Refresh = st
	}
}

// Snapshot はPagerが配信する表示用の状態。
// エラー状態でも直前までに読み込んだ項目は保持される。
type Snapshot[T any] struct {
	Items   []T
	States  LoadStates
	Version uint64
}

// Config はPagerのページサイズ設定。
type Config struct {
	PageSize        int
	InitialLoadSize int
}

func (c Config) normalized() Config {
	if c.PageSize <= 0 {
		c.PageSize = 1
	}
	if c.InitialLoadSize < c.PageSize {
		c.InitialLoadSize = c.PageSize
	}
	return c
}

// strategy はPagerの読み込み方式。Pagerのゴルーチンからのみ呼ばれる。
type strategy[T any] interface {
	// cached は起動時に表示できるキャッシュ済みの項目を返す。
	cached(ctx context.Context) ([]T, error)
	// load はloadTypeの端を伸ばした後の全項目と、その端が終端に達したかを返す。
	// エラー時は項目を変更しない。
	load(ctx context.Context, loadType model.LoadType, items []T) ([]T, bool, error)
}

type command struct {
	ctx      context.Context
	loadType model.LoadType
	retry    bool
	reply    chan error
}

// Pager は1つのフィードのロードを単一のゴルーチンで直列化し、
// 項目と端ごとのロード状態をスナップショットとして配信する。
type Pager[T any] struct {
	strategy strategy[T]
	name     string
	logger   *slog.Logger

	cmds    chan command
	done    chan struct{}
	started atomic.Bool

	mu   sync.RWMutex
	snap Snapshot[T]

	subsMu sync.Mutex
	subs   map[int]chan Snapshot[T]
	nextID int
}

func newPager[T any](name string, s strategy[T], logger *slog.Logger) *Pager[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager[T]{
		strategy: s,
		name:     name,
		logger:   logger,
		cmds:     make(chan command),
		done:     make(chan struct{}),
		subs:     make(map[int]chan Snapshot[T]),
	}
}

// Launch はロード用のゴルーチンを起動し、キャッシュ済みの項目を配信する。
// ロードは行わない。起動済みの場合は何もしない。ゴルーチンはctxの終了で停止する。
func (p *Pager[T]) Launch(ctx context.Context) {
	if p.started.CompareAndSwap(false, true) {
		go p.run(ctx)
	}
}

// Start はLaunchの後、初回ロード（REFRESH）の完了を待つ。
// 初回ロードが失敗してもPagerは動作を続け、エラーを返す。
func (p *Pager[T]) Start(ctx context.Context) error {
	p.Launch(ctx)
	return p.submit(ctx, command{loadType: model.LoadRefresh})
}

// Done はPagerのゴルーチンが停止したときに閉じられるチャネルを返す。
func (p *Pager[T]) Done() <-chan struct{} {
	return p.done
}

// Refresh はキャッシュ窓全体を置き換える。
func (p *Pager[T]) Refresh(ctx context.Context) error {
	return p.submit(ctx, command{loadType: model.LoadRefresh})
}

// Prepend は新しい側の端を伸ばす。終端に達している場合は何もしない。
func (p *Pager[T]) Prepend(ctx context.Context) error {
	return p.submit(ctx, command{loadType: model.LoadPrepend})
}

// Append は古い側の端を伸ばす。終端に達している場合は何もしない。
func (p *Pager[T]) Append(ctx context.Context) error {
	return p.submit(ctx, command{loadType: model.LoadAppend})
}

// Load はloadTypeに応じてRefresh/Prepend/Appendを行う。
func (p *Pager[T]) Load(ctx context.Context, loadType model.LoadType) error {
	return p.submit(ctx, command{loadType: loadType})
}

// Retry はエラー状態の端（refresh, prepend, appendの順で最初の1つ）を再試行する。
func (p *Pager[T]) Retry(ctx context.Context) error {
	return p.submit(ctx, command{retry: true})
}

// Snapshot は現在のスナップショットの複製を返す。
func (p *Pager[T]) Snapshot() Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyLocked()
}

// Subscribe は更新のたびに最新のスナップショットを受け取るチャネルを返す。
// 受信が追いつかない場合は古いスナップショットを捨てて最新だけを残す。
// 返された関数で購読を解除する。
func (p *Pager[T]) Subscribe() (<-chan Snapshot[T], func()) {
	ch := make(chan Snapshot[T], 1)

	// 初回配信と登録はupdateの配信と同じロックの下で行う
	p.subsMu.Lock()
	ch <- p.Snapshot()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subsMu.Lock()
			delete(p.subs, id)
			close(ch)
			p.subsMu.Unlock()
		})
	}
}

func (p *Pager[T]) submit(ctx context.Context, cmd command) error {
	if !p.started.Load() {
		return ErrPagerNotStarted
	}
	cmd.ctx = ctx
	cmd.reply = make(chan error, 1)

	select {
	case p.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPagerClosed
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPagerClosed
	}
}

func (p *Pager[T]) run(ctx context.Context) {
	defer close(p.done)

	items, err := p.strategy.cached(ctx)
	if err != nil {
		p.logger.Warn("キャッシュの読み込みに失敗しました",
			slog.String("feed", p.name),
			slog.String("error", err.Error()),
		)
	}
	p.update(func(s *Snapshot[T]) {
		s.Items = items
		s.States.Refresh = LoadState{Status: StatusLoading}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.cmds:
			cmd.reply <- p.execute(ctx, cmd)
		}
	}
}

// execute は1つのロードを実行する。呼び出し元のctxとPagerのctxのどちらが終了しても中断する。
func (p *Pager[T]) execute(runCtx context.Context, cmd command) error {
	loadCtx, cancel := context.WithCancel(cmd.ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	loadType := cmd.loadType
	if cmd.retry {
		failed, ok := p.failedEdge()
		if !ok {
			return nil
		}
		loadType = failed
	}

	p.mu.RLock()
	prev := p.snap.States.get(loadType)
	current := slices.Clone(p.snap.Items)
	p.mu.RUnlock()

	if loadType != model.LoadRefresh && prev.EndOfPaginationReached {
		return nil
	}

	p.update(func(s *Snapshot[T]) {
		s.States.set(loadType, LoadState{Status: StatusLoading, EndOfPaginationReached: prev.EndOfPaginationReached})
	})

	items, end, err := p.strategy.load(loadCtx, loadType, current)
	if err != nil {
		p.logger.Warn("ページのロードに失敗しました",
			slog.String("feed", p.name),
			slog.String("load_type", loadType.String()),
			slog.String("error", err.Error()),
		)
		p.update(func(s *Snapshot[T]) {
			s.States.set(loadType, LoadState{Status: StatusError, EndOfPaginationReached: prev.EndOfPaginationReached, Err: err})
		})
		return err
	}

	p.update(func(s *Snapshot[T]) {
		s.Items = items
		if loadType == model.LoadRefresh {
			s.States = LoadStates{Append: LoadState{EndOfPaginationReached: end}}
			return
		}
		s.States.set(loadType, LoadState{EndOfPaginationReached: end})
	})
	return nil
}

func (p *Pager[T]) failedEdge() (model.LoadType, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range []model.LoadType{model.LoadRefresh, model.LoadPrepend, model.LoadAppend} {
		if p.snap.States.get(t).Status == StatusError {
			return t, true
		}
	}
	return model.LoadRefresh, false
}

func (p *Pager[T]) update(fn func(s *Snapshot[T])) {
	p.mu.Lock()
	fn(&p.snap)
	p.snap.Version++
	snap := p.copyLocked()
	p.mu.Unlock()

	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (p *Pager[T]) copyLocked() Snapshot[T] {
	return Snapshot[T]{
		Items:   slices.Clone(p.snap.Items),
		States:  p.snap.States,
		Version: p.snap.Version,
	}
}
