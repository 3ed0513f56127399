package foreground

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/internal/notify"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("coordinator already started")
	// ErrNotStarted is returned by operations that need Start first.
	ErrNotStarted = errors.New("coordinator not started")
)

// MessageLoginFailed is shown when a login fails for a reason other than a check.
const MessageLoginFailed = "Login failed. Please try again."

// Engine is the part of [geoAuth.Engine] the coordinator drives.
type Engine interface {
	Reconcile(ctx context.Context) (geoAuth.State, error)
	AttemptLogin(ctx context.Context, sample *location.Sample) (*geoAuth.LoginResult, error)
	Logout(ctx context.Context) error
	ObserveLoggedIn(ctx context.Context) <-chan bool
	CurrentLocation(ctx context.Context) *location.Stream
	Notices(ctx context.Context) <-chan geoAuth.Notice
	RequestPermissions(ctx context.Context) (permission.Set, error)
}

// Screen is the top-level destination.
type Screen uint8

const (
	Loading Screen = iota
	Login
	Dashboard
)

func (s Screen) String() string {
	switch s {
	case Login:
		return "login"
	case Dashboard:
		return "dashboard"
	default:
		return "loading"
	}
}

// View is everything a host needs to draw one frame.
type View struct {
	Screen Screen
	// Location is the latest sample from the coordinator's own stream; nil while
	// no fix is available.
	Location *location.Sample
	// Message is the last login error, cleared by a successful login.
	Message string
	// Notice is the pending automatic logout dialog, cleared by DismissNotice.
	Notice *geoAuth.Notice
}

// Coordinator connects an engine to the visible app.
type Coordinator struct {
	engine  Engine
	logger  *slog.Logger
	updates *notify.Broadcaster[View]
	// reopen asks the loop for a fresh location stream
	reopen chan struct{}

	mu      sync.Mutex
	view    View
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Coordinator showing the Loading screen. A nil logger discards output.
func New(engine Engine, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		engine:  engine,
		logger:  logger.With(slog.String("component", "foreground")),
		updates: notify.New[View](),
		reopen:  make(chan struct{}, 1),
	}
}

// Start reconciles the persisted session, picks the first screen, then follows
// the session flag, a location stream and engine notices until Stop or ctx ends.
// A reconciliation error is returned with the loop already running; the first
// screen then follows the state Reconcile reported.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	// subscribe before reconciling so no notice falls between the two
	notices := c.engine.Notices(runCtx)

	st, err := c.engine.Reconcile(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "startup reconciliation failed", slog.Any("error", err))
	}
	c.update(func(v *View) {
		v.Screen = screenFor(st.LoggedIn())
	})

	flags := c.engine.ObserveLoggedIn(runCtx)
	stream := c.engine.CurrentLocation(runCtx)
	go c.loop(runCtx, flags, stream, notices)
	return err
}

// Stop ends the background loop and closes every Updates channel.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.updates.Close()
}

// View returns the current view.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Screen returns the current screen.
func (c *Coordinator) Screen() Screen {
	return c.View().Screen
}

// Updates emits the current view, then every change, until ctx ends or the
// coordinator stops.
func (c *Coordinator) Updates(ctx context.Context) <-chan View {
	c.mu.Lock()
	src := c.updates.Subscribe(ctx)
	current := c.view
	c.mu.Unlock()

	out := make(chan View)
	go func() {
		defer close(out)
		select {
		case out <- current:
		case <-ctx.Done():
			return
		}
		for v := range src {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Login attempts a login with the latest streamed location. A failed attempt
// sets View.Message; navigation to the dashboard follows the session flag.
func (c *Coordinator) Login(ctx context.Context) (*geoAuth.LoginResult, error) {
	if !c.isStarted() {
		return nil, ErrNotStarted
	}

	smp := c.View().Location
	res, err := c.engine.AttemptLogin(ctx, smp)
	if err != nil {
		msg := MessageLoginFailed
		var rej *geoAuth.LoginRejection
		if errors.As(err, &rej) {
			msg = rej.Message
		} else {
			c.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
		}
		c.update(func(v *View) { v.Message = msg })
		return nil, err
	}

	c.update(func(v *View) { v.Message = "" })
	return res, nil
}

// Logout ends the session at the user's request.
func (c *Coordinator) Logout(ctx context.Context) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	return c.engine.Logout(ctx)
}

// RequestPermissions asks for every permission the app uses. Once foreground
// location is granted on a started coordinator, the location readout is
// reopened so a stream that ended for lack of permission resumes.
func (c *Coordinator) RequestPermissions(ctx context.Context) (permission.Set, error) {
	granted, err := c.engine.RequestPermissions(ctx)
	if err != nil {
		return granted, err
	}
	if granted.Has(permission.ForegroundLocation) && c.isStarted() {
		select {
		case c.reopen <- struct{}{}:
		default:
		}
	}
	return granted, nil
}

// DismissNotice clears the automatic logout dialog.
func (c *Coordinator) DismissNotice() {
	c.update(func(v *View) { v.Notice = nil })
}

func (c *Coordinator) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Coordinator) update(fn func(*View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.view
	fn(&next)
	if next == c.view {
		return
	}
	c.view = next
	c.updates.Publish(next)
}

func (c *Coordinator) loop(ctx context.Context, flags <-chan bool, stream *location.Stream, notices <-chan geoAuth.Notice) {
	defer close(c.done)
	defer func() { stream.Close() }()

	samples := stream.Samples()
	for {
		select {
		case <-ctx.Done():
			return

		case loggedIn, ok := <-flags:
			if !ok {
				flags = nil
				continue
			}
			c.update(func(v *View) {
				v.Screen = screenFor(loggedIn)
				if loggedIn {
					v.Message = ""
				}
			})

		case smp, ok := <-samples:
			if !ok {
				samples = nil
				c.logger.InfoContext(ctx, "location readout stream ended")
				c.update(func(v *View) { v.Location = nil })
				continue
			}
			c.update(func(v *View) { v.Location = smp })

		case <-c.reopen:
			stream.Close()
			stream = c.engine.CurrentLocation(ctx)
			samples = stream.Samples()
			c.logger.InfoContext(ctx, "location readout stream reopened")

		case n, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			c.logger.InfoContext(ctx, "showing automatic logout notice",
				slog.String("reason", n.Reason.String()),
				slog.String("notice_id", n.ID),
			)
			c.update(func(v *View) {
				notice := n
				v.Notice = &notice
			})
		}
	}
}

func screenFor(loggedIn bool) Screen {
	if loggedIn {
		return Dashboard
	}
	return Login
}
