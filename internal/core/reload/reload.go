// Package reload implements C11: watches the three resource directory
// trees for changes, coalesces rapid edits into one reload batch, rebuilds
// a full registry snapshot, and swaps it in atomically.
//
// Grounded on codenerd's MangleWatcher (internal/core/mangle_watcher.go):
// an fsnotify.Watcher, a debounce map of path→last-event-time drained by a
// ticker, run in its own goroutine, stoppable via a channel. Adapted from
// "validate-and-repair one changed file" to "rebuild and swap the whole
// registry," since a prompt/gate/methodology reload is cheap enough to
// always redo wholesale rather than patch incrementally.
package reload

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/prompt-forge/gert-prompt/internal/core/registry"
)

// Notifier is the minimal C12 surface the coordinator publishes to on a
// successful reload.
type Notifier interface {
	NotifyRegistryChanged()
}

// Coordinator watches promptsDir/gatesDir/methodologiesDir and swaps fresh
// snapshots into reg as changes settle.
type Coordinator struct {
	promptsDir, gatesDir, methodologiesDir string
	debounce                               time.Duration
	reg                                     *registry.Registry
	notifier                                Notifier
	log                                     *zap.Logger

	watcher *fsnotify.Watcher

	mu          sync.Mutex
	debounceMap map[string]time.Time
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New constructs a coordinator; Start begins watching.
func New(promptsDir, gatesDir, methodologiesDir string, debounce time.Duration, reg *registry.Registry, notifier Notifier, log *zap.Logger) (*Coordinator, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		promptsDir:        promptsDir,
		gatesDir:          gatesDir,
		methodologiesDir:  methodologiesDir,
		debounce:          debounce,
		reg:               reg,
		notifier:          notifier,
		log:               log,
		watcher:           watcher,
		debounceMap:       make(map[string]time.Time),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}, nil
}

// Start performs an initial synchronous load, begins watching all three
// trees, and runs the debounce loop in a goroutine. Non-blocking.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	c.reg.Swap(registry.LoadAll(c.promptsDir, c.gatesDir, c.methodologiesDir))

	for _, dir := range []string{c.promptsDir, c.gatesDir, c.methodologiesDir} {
		if err := c.watcher.Add(dir); err != nil && c.log != nil {
			c.log.Warn("reload: watch failed, may not exist yet", zap.String("dir", dir), zap.Error(err))
		}
	}

	go c.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh
	_ = c.watcher.Close()
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.debounce / 4)
	if c.debounce <= 0 {
		ticker = time.NewTicker(125 * time.Millisecond)
	}
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.mu.Lock()
			c.debounceMap[event.Name] = time.Now()
			c.mu.Unlock()
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			if c.log != nil {
				c.log.Error("reload: watcher error", zap.Error(err))
			}
		case <-ticker.C:
			c.maybeReload()
		}
	}
}

// maybeReload coalesces pending events older than the debounce window into
// a single full reload, per §4.11.
func (c *Coordinator) maybeReload() {
	c.mu.Lock()
	now := time.Now()
	settled := false
	for _, t := range c.debounceMap {
		if now.Sub(t) >= c.debounce {
			settled = true
			break
		}
	}
	if !settled {
		c.mu.Unlock()
		return
	}
	c.debounceMap = make(map[string]time.Time)
	c.mu.Unlock()

	snap := registry.LoadAll(c.promptsDir, c.gatesDir, c.methodologiesDir)
	for _, le := range snap.LoadErrors {
		if c.log != nil {
			c.log.Warn("reload: file excluded from snapshot", zap.String("path", le.Path), zap.Error(le.Err))
		}
	}
	c.reg.Swap(snap)
	if c.notifier != nil {
		c.notifier.NotifyRegistryChanged()
	}
}

// TriggerReload forces an immediate synchronous reload, bypassing debounce
// (used by the System Control "request a registry reload" operation).
func (c *Coordinator) TriggerReload() {
	snap := registry.LoadAll(c.promptsDir, c.gatesDir, c.methodologiesDir)
	c.reg.Swap(snap)
	if c.notifier != nil {
		c.notifier.NotifyRegistryChanged()
	}
}
