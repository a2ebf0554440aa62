package logstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// rotatable is anything that can archive-and-truncate its backing file
type rotatable interface {
	Rotate(now time.Time) (string, error)
}

// pathRotator rotates a file the process does not write itself
type pathRotator string

func (p pathRotator) Rotate(now time.Time) (string, error) {
	archive := ArchivePath(string(p), now)
	return archive, copyAndTruncate(string(p), archive)
}

// midnight is a cron.Schedule firing at the next local midnight
type midnight struct {
	loc *time.Location
}

// Next returns the start of the calendar day following t
func (m midnight) Next(t time.Time) time.Time {
	t = t.In(m.loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, m.loc)
}

// Scheduler runs one daily rotation chain per file path on top of a cron runner.
// Chains are cancellable and never duplicated for the same path.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	sched  midnight
	chains map[string]*Rotation
	now    func() time.Time
	logger func() *Logger // Resolved lazily, only when a job reports
	diag   *diagnostics
	closed bool
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithLocation sets the time zone whose midnight triggers rotation
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.sched = midnight{loc: loc}
		}
	}
}

// WithSchedulerClock overrides the clock used for archive naming
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReporter sets the logger that receives rotation failures
func WithReporter(resolve func() *Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = resolve
	}
}

// withDiagnostics routes failures to d when no reporter is available
func withDiagnostics(d *diagnostics) SchedulerOption {
	return func(s *Scheduler) {
		s.diag = d
	}
}

// NewScheduler creates a stopped scheduler; it starts with the first chain
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sched:  midnight{loc: time.Local},
		chains: make(map[string]*Rotation),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{resolve: s.reporter, diag: s.diag}
	s.cron = cron.New(
		cron.WithLocation(s.sched.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return s
}

// DailyRotate schedules copy-and-truncate rotation of a file the process does
// not own. Calling it again for the same path returns the existing chain.
func (s *Scheduler) DailyRotate(path string) (*Rotation, error) {
	return s.schedule(path, pathRotator(path))
}

// schedule registers a chain for path unless one already exists
func (s *Scheduler) schedule(path string, target rotatable) (*Rotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmtErrorf("rotation scheduler is stopped")
	}
	if r, ok := s.chains[path]; ok {
		return r, nil
	}

	r := &Rotation{path: path, target: target, owner: s}
	r.rearm(s.now())
	id := s.cron.Schedule(s.sched, r)
	r.id = id
	s.chains[path] = r
	s.cron.Start()
	return r, nil
}

// Chains returns the active rotation chains
func (s *Scheduler) Chains() []*Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Rotation, 0, len(s.chains))
	for _, r := range s.chains {
		out = append(out, r)
	}
	return out
}

// Stop cancels every chain and waits for a running rotation to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for path, r := range s.chains {
		r.stopped.Store(true)
		s.cron.Remove(r.id)
		delete(s.chains, path)
	}
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmtErrorf("rotation still running at shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) remove(r *Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.chains[r.path]; ok && cur == r {
		delete(s.chains, r.path)
	}
	s.cron.Remove(r.id)
}

func (s *Scheduler) reporter() *Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger()
}

// Rotation is the handle of one daily rotation chain.
// It implements cron.Job; Run performs a single rotation immediately.
type Rotation struct {
	path    string
	target  rotatable
	owner   *Scheduler
	id      cron.EntryID
	stopped atomic.Bool
	armed   atomic.Pointer[time.Time] // Start of the cycle being collected


	runs     atomic.Uint64
	failures atomic.Uint64
}

// Path returns the rotated file path
func (r *Rotation) Path() string {
	return r.path
}

// Run rotates the file now. The archive is dated with the day the current
// cycle started, so the midnight run names it after the day that just ended.
// Failures are reported through the FileTool logger; the chain stays
// scheduled either way.
func (r *Rotation) Run() {
	if r.stopped.Load() {
		return
	}
	r.runs.Add(1)
	started := r.rearm(r.owner.now())
	archive, err := r.target.Rotate(started.In(r.owner.sched.loc))
	if err == nil {
		return
	}
	r.failures.Add(1)
	if l := r.owner.reporter(); l != nil {
		l.Error("daily rotation failed", "file", r.path, "archive", archive, "error", err)
	} else {
		r.owner.diag.internalLog("daily rotation of '%s' failed: %v\n", r.path, err)
	}
}

// rearm starts a new cycle at now and returns when the previous one started
func (r *Rotation) rearm(now time.Time) time.Time {
	if prev := r.armed.Swap(&now); prev != nil {
		return *prev
	}
	return now
}

// Next returns when the chain fires next, zero once stopped
func (r *Rotation) Next() time.Time {
	if r.stopped.Load() {
		return time.Time{}
	}
	if next := r.owner.cron.Entry(r.id).Next; !next.IsZero() {
		return next
	}
	return r.owner.sched.Next(r.owner.now())
}

// Stats returns how many rotations ran and how many failed
func (r *Rotation) Stats() (runs, failures uint64) {
	return r.runs.Load(), r.failures.Load()
}

// Stop cancels the chain. Safe to call more than once.
func (r *Rotation) Stop() {
	if r.stopped.CompareAndSwap(false, true) {
		r.owner.remove(r)
	}
}

// Stopped reports whether the chain was cancelled
func (r *Rotation) Stopped() bool {
	return r.stopped.Load()
}

// cronLogger routes cron diagnostics to a logstream Logger
type cronLogger struct {
	resolve func() *Logger
	diag    *diagnostics
}

// Info drops cron's scheduling chatter; it is also called while the
// registry lock may be held, so it must not resolve a logger.
func (c cronLogger) Info(msg string, keysAndValues ...any) {}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	if l := c.resolve(); l != nil {
		l.Error(msg, append(keysAndValues, "error", err)...)
		return
	}
	c.diag.internalLog("%s: %v\n", msg, err)
}
