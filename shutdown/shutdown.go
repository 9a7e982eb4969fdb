package shutdown

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/refinery/logging"
)

// Phases used by refinery processes. Lower phases stop first.
const (
	// PhaseListeners stops HTTP servers so no new envelope is accepted
	// while in-flight hops drain.
	PhaseListeners = 10

	// PhaseRegistration stops the self-registration keeper.
	PhaseRegistration = 20

	// PhaseFlush flushes the run journal and exports pending spans.
	PhaseFlush = 30
)

var (
	// ErrTimeout is returned when the deadline passes before every phase ran.
	ErrTimeout = stderrors.New("shutdown timeout exceeded")

	// ErrHandlerFailed is returned when at least one handler failed.
	ErrHandlerFailed = stderrors.New("one or more handlers failed")
)

// Handler is implemented by components stopped on shutdown. The context is
// cancelled when the shutdown deadline passes.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to Handler.
type Func func(ctx context.Context) error

// OnShutdown calls f.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Result describes one handler's shutdown.
type Result struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Config configures a Coordinator.
type Config struct {
	// Timeout bounds a signal-triggered shutdown. Default 30s.
	Timeout time.Duration

	// DefaultPhase is used by Register. Default PhaseFlush.
	DefaultPhase int

	Logger *logging.Logger
}

// DefaultConfig returns a 30s timeout.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second, DefaultPhase: PhaseFlush}
}

type registration struct {
	name    string
	handler Handler
	phase   int
}

// Coordinator stops registered handlers phase by phase. Handlers sharing a
// phase stop concurrently.
type Coordinator struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	handlers []registration
	results  []Result

	once    sync.Once
	done    chan struct{}
	err     error
	signals chan os.Signal
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DefaultPhase == 0 {
		cfg.DefaultPhase = def.DefaultPhase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Coordinator{
		cfg:     cfg,
		logger:  logger.WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a handler in the default phase.
func (c *Coordinator) Register(name string, h Handler) {
	c.RegisterWithPhase(name, h, c.cfg.DefaultPhase)
}

// RegisterWithPhase adds a handler in phase.
func (c *Coordinator) RegisterWithPhase(name string, h Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: h, phase: phase})
}

// RegisterFunc adds fn in phase.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context) error, phase int) {
	c.RegisterWithPhase(name, Func(fn), phase)
}

// HandleSignals shuts down on SIGINT or SIGTERM, bounded by Config.Timeout.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-c.signals:
			c.logger.Info("signal received", map[string]interface{}{"signal": sig.String()})
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
			defer cancel()
			_ = c.Shutdown(ctx)
		case <-c.done:
		}
		signal.Stop(c.signals)
	}()
}

// Done is closed once shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error, nil before Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Results returns per-handler results in the order they ran.
func (c *Coordinator) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

// Shutdown runs every phase once. Later calls wait for the first to finish
// and return its error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.err
}

func (c *Coordinator) run(ctx context.Context) error {
	start := time.Now()
	c.mu.Lock()
	handlers := append([]registration(nil), c.handlers...)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var failed bool
	for _, group := range groupByPhase(handlers) {
		if ctx.Err() != nil {
			c.logger.Warn("shutdown deadline passed", map[string]interface{}{"phase": group[0].phase})
			return ErrTimeout
		}
		for _, r := range c.runPhase(ctx, group) {
			if r.Err != nil {
				failed = true
			}
		}
	}

	c.logger.Info("shutdown complete", map[string]interface{}{
		"handlers":    len(handlers),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if failed {
		return ErrHandlerFailed
	}
	return nil
}

func (c *Coordinator) runPhase(ctx context.Context, group []registration) []Result {
	results := make([]Result, len(group))
	var wg sync.WaitGroup
	for i, reg := range group {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := reg.handler.OnShutdown(ctx)
			results[i] = Result{Name: reg.name, Phase: reg.phase, Duration: time.Since(start), Err: err}
			if err != nil {
				c.logger.Warn("handler failed", map[string]interface{}{"handler": reg.name, "error": err.Error()})
			} else {
				c.logger.Debug("handler stopped", map[string]interface{}{"handler": reg.name})
			}
		}()
	}
	wg.Wait()

	c.mu.Lock()
	c.results = append(c.results, results...)
	c.mu.Unlock()
	return results
}

func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i, h := range handlers {
		if i == 0 || h.phase != handlers[i-1].phase {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], h)
	}
	return groups
}
