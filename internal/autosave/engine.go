package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"notesync/internal/note/model"
	"notesync/pkg/logger"
)

const (
	DefaultDebounce     = 1000 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
)

var ErrClosed = errors.New("autosave: engine closed")

// Document is the editor capability the engine drives.
type Document interface {
	Content() string
	SetContent(content string)
	OnChange(handler func(content string))
}

// Store loads and upserts the persisted content of a key.
type Store interface {
	Load(ctx context.Context, key model.DocumentKey) (string, error)
	Upsert(ctx context.Context, key model.DocumentKey, content string) (string, error)
}

type State int

const (
	Idle State = iota
	PendingWrite
	Writing
)

func (s State) String() string {
	switch s {
	case PendingWrite:
		return "pending_write"
	case Writing:
		return "writing"
	default:
		return "idle"
	}
}

// Status is a snapshot of the engine, published after every transition.
type Status struct {
	State    State
	Hydrated bool
	Baseline string
	RecordID string
	Writes   int
	LastErr  error
}

type Options struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	Clock        Clock
	// OnStatus runs on the engine loop. It must not block or call Close.
	OnStatus func(Status)
}

type event interface{}

type (
	readyEvent    struct{ doc Document }
	changeEvent   struct{ content string }
	timerEvent    struct{ gen uint64 }
	hydratedEvent struct {
		content string
		err     error
	}
	writeDoneEvent struct {
		content  string
		recordID string
		err      error
	}
	flushEvent   struct{ reply chan error }
	barrierEvent struct{ done chan struct{} }
	closeEvent   struct{}
)

// Engine keeps one editable document in sync with its persisted record. All
// state below the mailbox is owned by the loop goroutine; change events, timer
// firings and I/O completions are consumed from one queue in order.
type Engine struct {
	key   model.DocumentKey
	store Store
	opts  Options

	inbox     *mailbox
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup

	statusMu sync.Mutex
	status   Status

	doc         Document
	initialized bool
	hydrated    bool
	broken      error
	baseline    string
	latest      string
	pending     string
	hasPending  bool
	due         bool
	writing     bool
	writes      int
	recordID    string
	lastErr     error
	timer       Timer
	timerGen    uint64
	waiters     []chan error
}

func New(key model.DocumentKey, store Store, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		key:    key,
		store:  store,
		opts:   opts,
		inbox:  newMailbox(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) Key() model.DocumentKey { return e.key }

// Ready hands the engine its document and hydrates it. Only the first call
// has any effect.
func (e *Engine) Ready(doc Document) {
	e.inbox.post(readyEvent{doc: doc})
}

// ContentChanged reports the document's current content after an edit.
func (e *Engine) ContentChanged(content string) {
	e.inbox.post(changeEvent{content: content})
}

// Flush writes pending content without waiting for the debounce window and
// returns once nothing is pending or in flight.
func (e *Engine) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	e.inbox.post(flushEvent{reply: reply})
	select {
	case err := <-reply:
		return err
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the debounce timer and any hydration in progress. A write
// already in flight finishes against the store but its completion is ignored.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.inbox.post(closeEvent{})
	})
	<-e.done
}

// Wait blocks until every write started before Close has returned from the
// store. Call it only after Close.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) Status() Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

func (e *Engine) run() {
	defer close(e.done)
	for range e.inbox.notify {
		for _, ev := range e.inbox.drain() {
			if !e.handle(ev) {
				return
			}
		}
	}
}

func (e *Engine) handle(ev event) bool {
	switch ev := ev.(type) {
	case readyEvent:
		e.onReady(ev.doc)
	case hydratedEvent:
		e.onHydrated(ev.content, ev.err)
	case changeEvent:
		e.onChange(ev.content)
	case timerEvent:
		e.onTimer(ev.gen)
	case writeDoneEvent:
		e.onWriteDone(ev)
	case flushEvent:
		e.onFlush(ev.reply)
	case barrierEvent:
		close(ev.done)
	case closeEvent:
		e.shutdown()
		return false
	}
	e.publish()
	return true
}

func (e *Engine) onReady(doc Document) {
	if e.initialized {
		logger.Sugar.Debugf("Ignoring repeated ready for %s", e.key)
		return
	}
	e.initialized = true
	e.doc = doc
	doc.OnChange(e.ContentChanged)

	go func() {
		content, err := e.store.Load(e.ctx, e.key)
		e.inbox.post(hydratedEvent{content: content, err: err})
	}()
}

func (e *Engine) onHydrated(content string, err error) {
	if err != nil {
		var dupErr *model.DuplicateKeyError
		if errors.As(err, &dupErr) {
			logger.Sugar.Errorf("Refusing to hydrate %s: %v", e.key, err)
			e.broken = err
			e.lastErr = err
			return
		}
		logger.Sugar.Warnf("Hydration failed for %s, starting from an empty document: %v", e.key, err)
		e.lastErr = err
		content = model.EmptyContent
	}
	e.assign(content)
	e.hydrated = true
}

// assign is the only path that puts stored content into the document. The
// baseline moves first, so the change the editor may emit for this
// assignment compares equal and schedules nothing.
func (e *Engine) assign(content string) {
	e.baseline = content
	e.latest = content
	e.cancelPending()
	e.doc.SetContent(content)
}

func (e *Engine) onChange(content string) {
	if !e.hydrated {
		if e.broken == nil {
			logger.Sugar.Debugf("Dropping change for %s before hydration", e.key)
		}
		return
	}
	e.latest = content

	if content == e.baseline {
		e.cancelPending()
		return
	}

	e.stopTimer()
	e.pending = content
	e.hasPending = true
	e.due = false
	e.armTimer()
}

func (e *Engine) onTimer(gen uint64) {
	if gen != e.timerGen || !e.hasPending {
		return
	}
	e.timer = nil
	if e.writing {
		// One write at a time; this one starts when the current write settles.
		e.due = true
		return
	}
	e.startWrite()
}

func (e *Engine) startWrite() {
	e.stopTimer()
	content := e.pending
	e.pending = ""
	e.hasPending = false
	e.due = false
	e.writing = true
	e.writes++

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.WriteTimeout)
		defer cancel()
		recordID, err := e.store.Upsert(ctx, e.key, content)
		e.inbox.post(writeDoneEvent{content: content, recordID: recordID, err: err})
	}()
}

func (e *Engine) onWriteDone(ev writeDoneEvent) {
	e.writing = false

	if ev.err != nil {
		logger.Sugar.Errorf("Autosave failed for %s: %v", e.key, ev.err)
		e.lastErr = ev.err
	} else {
		e.baseline = ev.content
		e.recordID = ev.recordID
		e.lastErr = nil
	}

	switch {
	case e.hasPending && (e.due || len(e.waiters) > 0):
		e.startWrite()
	case e.hasPending:
		// Debounce timer for the newer content is still running.
	case ev.err == nil && e.latest != e.baseline:
		// The document went back to the previous baseline while this write
		// was in flight; that content now differs from the store.
		e.pending = e.latest
		e.hasPending = true
		e.armTimer()
	}

	if !e.writing && !e.hasPending {
		e.releaseWaiters(ev.err)
	}
}

func (e *Engine) onFlush(reply chan error) {
	if e.broken != nil {
		reply <- e.broken
		return
	}
	if !e.writing && !e.hasPending {
		reply <- nil
		return
	}
	e.waiters = append(e.waiters, reply)
	if e.hasPending && !e.writing {
		e.startWrite()
	}
}

func (e *Engine) shutdown() {
	e.stopTimer()
	e.hasPending = false
	e.cancel()
	e.releaseWaiters(ErrClosed)
}

func (e *Engine) releaseWaiters(err error) {
	for _, w := range e.waiters {
		w <- err
	}
	e.waiters = nil
}

func (e *Engine) cancelPending() {
	e.stopTimer()
	e.pending = ""
	e.hasPending = false
	e.due = false
}

func (e *Engine) armTimer() {
	e.timerGen++
	gen := e.timerGen
	e.timer = e.opts.Clock.AfterFunc(e.opts.Debounce, func() {
		e.inbox.post(timerEvent{gen: gen})
	})
}

// stopTimer also invalidates a firing that is already queued.
func (e *Engine) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

func (e *Engine) state() State {
	switch {
	case e.hasPending:
		return PendingWrite
	case e.writing:
		return Writing
	default:
		return Idle
	}
}

func (e *Engine) publish() {
	next := Status{
		State:    e.state(),
		Hydrated: e.hydrated,
		Baseline: e.baseline,
		RecordID: e.recordID,
		Writes:   e.writes,
		LastErr:  e.lastErr,
	}

	e.statusMu.Lock()
	changed := !sameStatus(next, e.status)
	e.status = next
	e.statusMu.Unlock()

	if changed && e.opts.OnStatus != nil {
		e.opts.OnStatus(next)
	}
}

func sameStatus(a, b Status) bool {
	return a.State == b.State &&
		a.Hydrated == b.Hydrated &&
		a.Baseline == b.Baseline &&
		a.RecordID == b.RecordID &&
		a.Writes == b.Writes &&
		errText(a.LastErr) == errText(b.LastErr)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// barrier blocks until every event posted before it has been handled.
func (e *Engine) barrier() {
	done := make(chan struct{})
	e.inbox.post(barrierEvent{done: done})
	select {
	case <-done:
	case <-e.done:
	}
}
