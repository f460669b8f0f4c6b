package game

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const DefaultFrameRate = 60

// RunnerOptions configure the frame loop around a Session.
type RunnerOptions struct {
	FrameRate int // frames per second, DefaultFrameRate when zero

	// ConnectTimeout aborts a client that has not been welcomed in time.
	// Zero waits forever.
	ConnectTimeout time.Duration

	// AutoStart moves a host to the ready-set-go barrier as soon as
	// character select opens.
	AutoStart bool

	// OnFrame runs on the loop goroutine after every Update.
	OnFrame func(*Session)

	Logger zerolog.Logger
}

type command struct {
	fn   func(*Session) error
	done chan error
}

// Runner owns a Session and drives it from a ticker. Other goroutines read
// it through Snapshot and change it through Do; both are safe for
// concurrent use.
type Runner struct {
	session  *Session
	opts     RunnerOptions
	logger   zerolog.Logger
	commands chan command
	stopped  chan struct{}
	snapshot atomic.Pointer[Snapshot]
}

func NewRunner(s *Session, opts RunnerOptions) *Runner {
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	r := &Runner{
		session:  s,
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "runner").Logger(),
		commands: make(chan command),
		stopped:  make(chan struct{}),
	}
	r.publish()
	return r
}

// Run starts networking and updates the session once per frame until it
// reaches PhaseRacing (nil), fails (its error) or ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	if !r.session.started {
		if err := r.session.BeginNetworking(); err != nil {
			return err
		}
	}
	r.publish()

	interval := time.Second / time.Duration(r.opts.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var connectTimeout <-chan time.Time
	if r.opts.ConnectTimeout > 0 && r.session.Role() == RoleClient {
		timer := time.NewTimer(r.opts.ConnectTimeout)
		defer timer.Stop()
		connectTimeout = timer.C
	}

	r.logger.Debug().Dur("interval", interval).Msg("frame loop started")
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-r.commands:
			cmd.done <- cmd.fn(r.session)
			r.publish()

		case <-connectTimeout:
			if !r.session.Joined() {
				r.session.fail(ErrConnectTimeout)
				r.publish()
				return ErrConnectTimeout
			}

		case now := <-ticker.C:
			err := r.session.Update(now.Sub(last))
			last = now
			if err == nil {
				r.frame()
			}
			r.publish()

			if err != nil {
				return err
			}
			if r.session.Phase() == PhaseRacing {
				r.logger.Info().Msg("race starting")
				return nil
			}
		}
	}
}

func (r *Runner) frame() {
	if r.opts.AutoStart && r.session.Role() == RoleServer && r.session.Phase() == PhaseCharacterSelect {
		if err := r.session.RequestReadySetGoPhase(); err != nil {
			r.logger.Error().Err(err).Msg("auto start failed")
		}
	}
	if r.opts.OnFrame != nil {
		r.opts.OnFrame(r.session)
	}
}

// Do runs fn on the loop goroutine between frames and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Session) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case r.commands <- cmd:
	case <-r.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the state published after the latest frame or command.
func (r *Runner) Snapshot() Snapshot {
	return *r.snapshot.Load()
}

func (r *Runner) publish() {
	snap := r.session.Snapshot()
	r.snapshot.Store(&snap)
}
