package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"
)

// Transport is the engine's view of the authority.
type Transport interface {
	FetchBoard(ctx context.Context, id string) (model.Board, error)
	PutBoard(ctx context.Context, b model.Board) (model.Board, error)
	// Watch streams authoritative boards pushed for id until ctx is done.
	Watch(ctx context.Context, id string) (<-chan model.Board, error)
}

const defaultSubmitTimeout = 10 * time.Second

type Option func(*Engine)

func WithLogger(l *log.Entry) Option {
	return func(e *Engine) { e.log = l }
}

func WithIDGenerator(gen ids.Generator) Option {
	return func(e *Engine) { e.gen = gen }
}

func WithSubmitTimeout(d time.Duration) Option {
	return func(e *Engine) { e.submitTimeout = d }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type source string

const (
	fromFetch    source = "fetch"
	fromResponse source = "response"
	fromPush     source = "push"
	fromMerge    source = "merge"
)

// Engine reconciles one board between local intents and the authority.
//
// Every read and write of the board happens on the engine's loop goroutine. Transport
// calls run on their own goroutines and post their outcome back to the loop. Intents
// queue behind the one submission in flight, so several may be pending at once; each
// snapshot is built when it is sent, on top of the latest submitted or adopted board.
// No lock guards the board: an authoritative board is adopted only when its version is
// newer than the displayed one.
type Engine struct {
	boardID       string
	tr            Transport
	log           *log.Entry
	gen           ids.Generator
	submitTimeout time.Duration
	metrics       *Metrics
	now           func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan func()
	started   atomic.Bool
	lifecycle sync.Mutex // orders Start against Close; guards stopHook
	stopHook  func() bool
	wg        sync.WaitGroup

	// Owned by the loop goroutine.
	board        model.Board // displayed
	work         model.Board // last adopted board plus the submission in flight
	workGen      uint64
	queue        []submission
	inFlight     *flight
	status       LoadStatus
	lastErr      error
	pending      int
	seq          uint64
	records      []MutationRecord
	subs         map[int]chan State
	nextSub      int
	flushWaiters []chan struct{}
	readyWaiters []chan struct{}
}

func New(boardID string, tr Transport, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		boardID:       boardID,
		tr:            tr,
		log:           log.WithField("component", "reconcile"),
		gen:           ids.New,
		submitTimeout: defaultSubmitTimeout,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan func()),
		board:         model.Placeholder(boardID),
		work:          model.Placeholder(boardID),
		status:        Loading,
		subs:          map[int]chan State{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("board", boardID)
	return e
}

func (e *Engine) BoardID() string { return e.boardID }

// Start runs the engine loop, attaches the push subscription and issues the initial
// fetch. It is called once per displayed board; cancelling ctx tears the engine down
// like Close.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.ctx.Err() != nil {
		return ErrClosed
	}
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	e.stopHook = context.AfterFunc(ctx, e.cancel)

	e.wg.Add(1)
	go e.run()

	frames, err := e.tr.Watch(e.ctx, e.boardID)
	if err != nil {
		e.log.WithError(err).Warn("push channel unavailable; board will not update live")
	} else {
		e.wg.Add(1)
		go e.pump(frames)
	}

	e.wg.Add(1)
	go e.fetch()
	return nil
}

// Close detaches the push subscription and stops the loop. Responses that arrive
// afterwards are ignored.
func (e *Engine) Close() {
	e.lifecycle.Lock()
	e.cancel()
	stop := e.stopHook
	e.lifecycle.Unlock()
	if stop != nil {
		stop()
	}
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.events:
			fn()
		case <-e.ctx.Done():
			e.teardown()
			return
		}
	}
}

func (e *Engine) teardown() {
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.flushWaiters = nil
	e.readyWaiters = nil
	e.log.Debug("engine closed")
}

// call runs fn on the loop and waits for it.
func (e *Engine) call(fn func()) error {
	if !e.started.Load() {
		return ErrNotStarted
	}
	ran := make(chan struct{})
	select {
	case e.events <- func() { fn(); close(ran) }:
	case <-e.ctx.Done():
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-e.ctx.Done():
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post queues fn on the loop without waiting. After teardown fn is dropped.
func (e *Engine) post(fn func()) {
	select {
	case e.events <- fn:
	case <-e.ctx.Done():
	}
}

func (e *Engine) pump(frames <-chan model.Board) {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case b, ok := <-frames:
			if !ok {
				e.log.Debug("push channel closed")
				return
			}
			e.post(func() { _ = e.merge(b, fromPush) })
		}
	}
}

func (e *Engine) fetch() {
	defer e.wg.Done()
	ctx, cancel := context.WithTimeout(e.ctx, e.submitTimeout)
	b, err := e.tr.FetchBoard(ctx, e.boardID)
	cancel()
	e.post(func() { e.onFetched(b, err) })
}

func (e *Engine) onFetched(b model.Board, err error) {
	if err != nil {
		if e.status == Ready {
			e.log.WithError(err).Error("reload failed")
			e.lastErr = err
		} else {
			e.log.WithError(err).Error("initial load failed")
			e.status = LoadFailed
			e.lastErr = &InitialLoadError{BoardID: e.boardID, Err: err}
			e.releaseReady()
		}
		e.notify()
		return
	}
	if e.merge(b, fromFetch) != nil && e.status != Ready {
		// The fetched board was unusable and nothing else has been adopted.
		e.status = LoadFailed
		e.lastErr = &InitialLoadError{BoardID: e.boardID, Err: errors.New("authority returned an unusable board")}
		e.releaseReady()
		e.notify()
	}
}

// merge adopts b wholesale when it belongs to this board and is newer than the
// displayed version. An optimistic edit in flight is superseded by a newer board.
func (e *Engine) merge(b model.Board, src source) error {
	l := e.log.WithFields(log.Fields{"source": src, "version": b.Version, "current": e.board.Version})
	if err := model.Validate(b); err != nil {
		l.WithError(err).Debug("discarding invalid board")
		e.metrics.frame("invalid")
		return &StaleUpdateError{Reason: InvalidPayload, BoardID: b.ID, Version: b.Version, Current: e.board.Version, Err: err}
	}
	if b.ID != e.boardID {
		l.WithField("got", b.ID).Warn("discarding board with wrong id")
		e.metrics.frame("mismatch")
		return &StaleUpdateError{Reason: BoardMismatch, BoardID: b.ID, Version: b.Version, Current: e.board.Version}
	}
	if b.Version <= e.board.Version {
		l.Debug("discarding stale board")
		e.metrics.frame("stale")
		return &StaleUpdateError{Reason: StaleVersion, BoardID: b.ID, Version: b.Version, Current: e.board.Version}
	}
	l.Debug("adopting board")
	e.metrics.frame("applied")
	e.adopt(b)
	if e.status != Ready {
		if _, failed := e.lastErr.(*InitialLoadError); failed {
			e.lastErr = nil
		}
		e.status = Ready
		e.releaseReady()
	}
	e.notify()
	return nil
}

// Merge applies an inbound authoritative board through the same rules as push frames.
// A discarded board yields a *StaleUpdateError.
func (e *Engine) Merge(b model.Board) error {
	var merr error
	if err := e.call(func() { merr = e.merge(b, fromMerge) }); err != nil {
		return err
	}
	return merr
}

// Dispatch applies an intent. Optimistic intents change the displayed board at once;
// confirmed intents only change it when the authority answers. The returned sequence
// number identifies the submission in State.Mutations; it is zero for no-op intents.
func (e *Engine) Dispatch(in mutate.Intent) (uint64, error) {
	var (
		seq  uint64
		derr error
	)
	if err := e.call(func() { seq, derr = e.dispatch(in) }); err != nil {
		return 0, err
	}
	return seq, derr
}

// DragEnd translates a drag outcome into a move intent and dispatches it.
func (e *Engine) DragEnd(r mutate.DragResult) (uint64, error) {
	var (
		seq  uint64
		derr error
	)
	err := e.call(func() {
		if e.status != Ready {
			derr = e.lookupFailed("drag", ErrNotReady)
			return
		}
		in, err := mutate.FromDrag(e.board, r)
		if err != nil {
			derr = e.lookupFailed("drag "+string(r.Type), err)
			return
		}
		if in == nil {
			return
		}
		seq, derr = e.dispatch(in)
	})
	if err != nil {
		return 0, err
	}
	return seq, derr
}

// submission is an intent waiting for its turn at the authority.
type submission struct {
	seq    uint64
	intent mutate.Intent
	path   Path
	ids    []string // generated on first apply; reused so replays keep the same ids
}

// flight is the submission the authority is answering.
type flight struct {
	path Path
	prev model.Board // work before the snapshot was sent
	gen  uint64
}

func recordIDs(gen ids.Generator, into *[]string) ids.Generator {
	return func() string {
		id := gen()
		*into = append(*into, id)
		return id
	}
}

func replayIDs(recorded []string, gen ids.Generator) ids.Generator {
	i := 0
	return func() string {
		if i < len(recorded) {
			i++
			return recorded[i-1]
		}
		return gen()
	}
}

// head is the board the next intent applies to: work with every queued intent on top.
func (e *Engine) head() model.Board {
	b := e.work
	for _, s := range e.queue {
		if next, err := s.intent.Apply(b, replayIDs(s.ids, e.gen)); err == nil {
			b = next
		}
	}
	return b
}

// adopt makes b the authoritative base. Queued optimistic intents stay visible on top
// of it; the one in flight is superseded until its own response arrives.
func (e *Engine) adopt(b model.Board) {
	e.work = b
	e.workGen++
	shown := b
	for _, s := range e.queue {
		if s.path != PathOptimistic {
			continue
		}
		if next, err := s.intent.Apply(shown, replayIDs(s.ids, e.gen)); err == nil {
			shown = next
		}
	}
	e.board = shown
}

func (e *Engine) dispatch(in mutate.Intent) (uint64, error) {
	if e.status != Ready {
		return 0, e.lookupFailed(in.String(), ErrNotReady)
	}
	base := e.head()
	var generated []string
	next, err := in.Apply(base, recordIDs(e.gen, &generated))
	if err != nil {
		return 0, e.lookupFailed(in.String(), err)
	}
	if !mutate.Changed(base, next) {
		e.log.WithField("intent", in.String()).Debug("intent is a no-op")
		return 0, nil
	}

	path := pathOf(in)
	e.metrics.intent(string(in.Kind()), string(path))
	e.seq++
	seq := e.seq
	e.addRecord(MutationRecord{
		Seq:         seq,
		Kind:        in.Kind(),
		Intent:      in.String(),
		Path:        path,
		State:       Pending,
		SubmittedAt: e.now(),
	})
	e.pending++
	e.metrics.pending(e.pending)
	if path == PathOptimistic {
		if shown, err := in.Apply(e.board, replayIDs(generated, e.gen)); err == nil {
			e.board = shown
		} else {
			e.log.WithError(err).WithField("seq", seq).Debug("optimistic intent not shown")
		}
	}
	e.queue = append(e.queue, submission{seq: seq, intent: in, path: path, ids: generated})
	e.sendNext()
	e.notify()
	return seq, nil
}

func (e *Engine) lookupFailed(intent string, err error) error {
	lerr := &LookupError{Intent: intent, Err: err}
	e.log.WithError(err).WithField("intent", intent).Warn("dropping intent")
	e.lastErr = lerr
	e.notify()
	return lerr
}

// sendNext submits the oldest queued intent once nothing is in flight. Its snapshot
// carries every earlier submission, so the authority never sees them out of order.
func (e *Engine) sendNext() {
	for e.inFlight == nil && len(e.queue) > 0 {
		s := e.queue[0]
		e.queue = e.queue[1:]
		snapshot, err := s.intent.Apply(e.work, replayIDs(s.ids, e.gen))
		if err != nil {
			// A newer board removed what the intent refers to.
			e.log.WithError(err).WithField("seq", s.seq).Warn("queued intent no longer applies")
			e.settleFailed(s.seq, &LookupError{Intent: s.intent.String(), Err: err})
			continue
		}
		e.inFlight = &flight{path: s.path, prev: e.work}
		e.work = snapshot
		e.workGen++
		e.inFlight.gen = e.workGen

		e.log.WithFields(log.Fields{"seq": s.seq, "intent": s.intent.String(), "path": s.path}).Debug("submitting")
		e.wg.Add(1)
		go e.submit(s.seq, snapshot)
	}
	e.flushed()
}

func (e *Engine) submit(seq uint64, snapshot model.Board) {
	defer e.wg.Done()
	ctx, cancel := context.WithTimeout(e.ctx, e.submitTimeout)
	resp, err := e.tr.PutBoard(ctx, snapshot)
	cancel()
	e.post(func() { e.onSubmitted(seq, resp, err) })
}

func (e *Engine) onSubmitted(seq uint64, resp model.Board, err error) {
	fl := e.inFlight
	e.inFlight = nil

	if err != nil {
		// A failed confirmed intent must not ride along with later snapshots.
		if fl != nil && fl.path == PathConfirmed && fl.gen == e.workGen {
			e.work = fl.prev
			e.workGen++
		}
		e.log.WithError(err).WithField("seq", seq).Error("submission failed; keeping local state")
		e.settleFailed(seq, err)
	} else {
		e.pending--
		e.metrics.pending(e.pending)
		e.metrics.submission("confirmed")
		adopted := e.merge(resp, fromResponse) == nil
		if rec := e.record(seq); rec != nil {
			rec.SettledAt = e.now()
			rec.State = Confirmed
			rec.Version = resp.Version
			rec.Adopted = adopted
		}
	}

	e.sendNext()
	e.notify()
}

func (e *Engine) settleFailed(seq uint64, err error) {
	e.pending--
	e.metrics.pending(e.pending)
	e.metrics.submission("failed")
	intent := ""
	if rec := e.record(seq); rec != nil {
		rec.SettledAt = e.now()
		rec.State = Failed
		rec.Err = err
		intent = rec.Intent
	}
	e.lastErr = &SubmissionError{Seq: seq, Intent: intent, Err: err}
}

func (e *Engine) flushed() {
	if e.pending != 0 {
		return
	}
	for _, ch := range e.flushWaiters {
		close(ch)
	}
	e.flushWaiters = nil
}

func (e *Engine) addRecord(r MutationRecord) {
	e.records = append(e.records, r)
	if n := len(e.records); n > maxRecords {
		e.records = append([]MutationRecord(nil), e.records[n-maxRecords:]...)
	}
}

func (e *Engine) record(seq uint64) *MutationRecord {
	for i := range e.records {
		if e.records[i].Seq == seq {
			return &e.records[i]
		}
	}
	return nil
}

func (e *Engine) state() State {
	return State{
		Board:     e.board,
		Status:    e.status,
		LastError: e.lastErr,
		Pending:   e.pending,
		Mutations: append([]MutationRecord(nil), e.records...),
	}
}

func (e *Engine) notify() {
	if len(e.subs) == 0 {
		return
	}
	st := e.state()
	for _, ch := range e.subs {
		// Latest wins: replace an unread state rather than block the loop.
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

func (e *Engine) releaseReady() {
	for _, ch := range e.readyWaiters {
		close(ch)
	}
	e.readyWaiters = nil
}

// Snapshot returns the current state. A closed engine reports Closed with ErrClosed.
func (e *Engine) Snapshot() State {
	var st State
	if err := e.call(func() { st = e.state() }); err != nil {
		if errors.Is(err, ErrNotStarted) {
			return State{Board: model.Placeholder(e.boardID), Status: Loading}
		}
		return State{Board: model.Placeholder(e.boardID), Status: Closed, LastError: err}
	}
	return st
}

// Subscribe returns a channel receiving the engine state after every change, starting
// with the current one. Slow readers only see the latest state. The channel is closed
// by the returned cancel func or when the engine closes.
func (e *Engine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	id := -1
	err := e.call(func() {
		id = e.nextSub
		e.nextSub++
		e.subs[id] = ch
		ch <- e.state()
	})
	if err != nil {
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			_ = e.call(func() {
				if c, ok := e.subs[id]; ok {
					close(c)
					delete(e.subs, id)
				}
			})
		})
	}
}

// WaitReady blocks until the first board is adopted or the initial load fails.
func (e *Engine) WaitReady(ctx context.Context) error {
	ch := make(chan struct{})
	var failed error
	if err := e.call(func() {
		switch e.status {
		case Loading:
			e.readyWaiters = append(e.readyWaiters, ch)
		default:
			close(ch)
		}
	}); err != nil {
		return err
	}
	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return ErrClosed
	}
	if err := e.call(func() {
		if e.status == LoadFailed {
			failed = e.lastErr
		}
	}); err != nil {
		return err
	}
	return failed
}

// Flush blocks until no submission is pending.
func (e *Engine) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	if err := e.call(func() {
		if e.pending == 0 {
			close(ch)
			return
		}
		e.flushWaiters = append(e.flushWaiters, ch)
	}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return ErrClosed
	}
}

// Reload re-fetches the board. The result goes through the version rule, so it can
// recover a failed initial load but never rolls the board back.
func (e *Engine) Reload() error {
	return e.call(func() {
		if e.status == LoadFailed {
			e.status = Loading
			e.notify()
		}
		e.wg.Add(1)
		go e.fetch()
	})
}

// ClearError forgets the last error.
func (e *Engine) ClearError() {
	_ = e.call(func() {
		if e.lastErr == nil {
			return
		}
		if _, initial := e.lastErr.(*InitialLoadError); initial && e.status == LoadFailed {
			return
		}
		e.lastErr = nil
		e.notify()
	})
}
