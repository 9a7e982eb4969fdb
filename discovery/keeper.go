package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/refinery/registry"
)

// Keeper errors.
var (
	ErrAlreadyStarted = errors.New("keeper already started")
	ErrNotStarted     = errors.New("keeper not started")
)

// DefaultRefreshInterval is how often a Keeper re-registers.
const DefaultRefreshInterval = 30 * time.Second

// Keeper keeps a descriptor registered. It registers immediately on Start
// and again every interval, so a restarted registry is repopulated without
// restarting the agents.
type Keeper struct {
	client   *Client
	desc     registry.Descriptor
	interval time.Duration

	attempts atomic.Int64
	failures atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewKeeper creates a keeper for d. interval <= 0 uses DefaultRefreshInterval.
func NewKeeper(client *Client, d registry.Descriptor, interval time.Duration) *Keeper {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Keeper{
		client:   client,
		desc:     d.Clone(),
		interval: interval,
	}
}

// Start begins registering in the background.
func (k *Keeper) Start(ctx context.Context) error {
	if k.running.Swap(true) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	k.stopCh = make(chan struct{})
	k.doneCh = make(chan struct{})

	go k.run(ctx)
	return nil
}

func (k *Keeper) run(ctx context.Context) {
	defer close(k.doneCh)

	k.register(ctx)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.running.Store(false)
			return
		case <-k.stopCh:
			return
		case <-ticker.C:
			k.register(ctx)
		}
	}
}

func (k *Keeper) register(ctx context.Context) {
	k.attempts.Add(1)
	if err := k.client.RegisterSelf(ctx, k.desc); err != nil {
		k.failures.Add(1)
	}
}

// Stop stops re-registering and waits for the loop to exit.
func (k *Keeper) Stop() error {
	if !k.running.Swap(false) {
		return ErrNotStarted
	}
	close(k.stopCh)
	<-k.doneCh
	return nil
}

// OnShutdown implements shutdown.Handler.
func (k *Keeper) OnShutdown(ctx context.Context) error {
	if err := k.Stop(); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}
	return nil
}

// Attempts returns how many registrations have been tried.
func (k *Keeper) Attempts() int64 {
	return k.attempts.Load()
}

// Failures returns how many registrations failed.
func (k *Keeper) Failures() int64 {
	return k.failures.Load()
}
