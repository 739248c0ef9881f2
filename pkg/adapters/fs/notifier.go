package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/docsync/pkg/core"
)

const (
	// DefaultBatchWindow is how long filesystem events of one folder are
	// collected before they are delivered as a single ChangeEvent.
	DefaultBatchWindow = 50 * time.Millisecond

	// DefaultMaxBatch is the number of distinct paths above which a batch is
	// delivered as a bulk event.
	DefaultMaxBatch = 256

	// DefaultEventBuffer is the capacity of each subscription channel.
	DefaultEventBuffer = 16
)

// NotifierConfig holds the configuration for the filesystem notifier.
type NotifierConfig struct {
	BatchWindow  time.Duration
	MaxBatch     int
	EventBuffer  int
	Ignore       []string // doublestar patterns; nil selects DefaultIgnorePatterns
	MaxRestarts  int      // restarts of a failed folder watch before giving up
	Logger       *slog.Logger
	ErrorHandler func(error)
}

// Notifier implements core.Notifier with fsnotify. Each watched folder is
// served by its own worker running under a supervisor that restarts it
// when the underlying watcher fails.
type Notifier struct {
	config NotifierConfig
	ignore *ignoreMatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]*folderWatch
	closed  bool
}

type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// folderWatch is one subscription. Workers come and go on restarts; the
// output channel lives as long as the subscription.
type folderWatch struct {
	id     string
	folder string
	out    chan core.ChangeEvent
	sup    runner
	since  time.Time

	active   atomic.Bool
	events   atomic.Uint64
	bulk     atomic.Uint64
	errors   atomic.Uint64
	restarts atomic.Int64

	mu        sync.Mutex
	lastEvent *time.Time
}

func (fw *folderWatch) setActive(active bool) {
	fw.active.Store(active)
}

func (fw *folderWatch) recordEvent(event core.ChangeEvent) {
	fw.events.Add(1)
	if event.IsBulk() {
		fw.bulk.Add(1)
	}
	now := time.Now()
	fw.mu.Lock()
	fw.lastEvent = &now
	fw.mu.Unlock()
}

func (fw *folderWatch) recordError() {
	fw.errors.Add(1)
}

// NewNotifier creates a filesystem notifier.
func NewNotifier(config NotifierConfig) (*Notifier, error) {
	if config.BatchWindow <= 0 {
		config.BatchWindow = DefaultBatchWindow
	}
	if config.MaxBatch <= 0 {
		config.MaxBatch = DefaultMaxBatch
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	if config.Ignore == nil {
		config.Ignore = DefaultIgnorePatterns
	}
	if config.MaxRestarts <= 0 {
		config.MaxRestarts = 5
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	ignore, err := newIgnoreMatcher(config.Ignore)
	if err != nil {
		return nil, err
	}

	// Watches outlive the calls that start them.
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		config:  config,
		ignore:  ignore,
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]*folderWatch),
	}, nil
}

// Watch implements core.Notifier.
func (n *Notifier) Watch(ctx context.Context, id, folder string) (<-chan core.ChangeEvent, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	folder = filepath.Clean(abs)

	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", folder)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, errors.New("notifier is closed")
	}
	if _, ok := n.watches[id]; ok {
		return nil, fmt.Errorf("watch %s already active", id)
	}

	fw := &folderWatch{
		id:     id,
		folder: folder,
		out:    make(chan core.ChangeEvent, n.config.EventBuffer),
		since:  time.Now(),
	}

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			if fw.restarts.Add(1) > 1 {
				n.config.Logger.Warn("restarting folder watch", "folder", folder, "id", id)
			}
			return newWatchWorker(fw, n.config, n.ignore), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			ResetDuration:   30 * time.Second,
			MaxRestarts:     n.config.MaxRestarts,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("fs-notifier:"+id, supervisor.StrategyOneForOne, spec)
	if err := sup.Start(n.ctx); err != nil {
		close(fw.out)
		return nil, fmt.Errorf("failed to start watch on %s: %w", folder, err)
	}
	fw.sup = sup

	n.watches[id] = fw
	n.config.Logger.Debug("folder watch started", "folder", folder, "id", id)
	return fw.out, nil
}

// StopWatch implements core.Notifier. The subscription channel is closed
// once the worker stopped.
func (n *Notifier) StopWatch(ctx context.Context, id string) error {
	n.mu.Lock()
	fw, ok := n.watches[id]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("watch %s not found", id)
	}
	delete(n.watches, id)
	n.mu.Unlock()

	return n.stop(ctx, fw)
}

func (n *Notifier) stop(ctx context.Context, fw *folderWatch) error {
	err := fw.sup.Stop(ctx)
	close(fw.out)
	if err != nil {
		return fmt.Errorf("failed to stop watch on %s: %w", fw.folder, err)
	}
	n.config.Logger.Debug("folder watch stopped", "folder", fw.folder, "id", fw.id)
	return nil
}

// Close stops every watch.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	watches := n.watches
	n.watches = make(map[string]*folderWatch)
	n.mu.Unlock()

	var errs []error
	for _, fw := range watches {
		if err := n.stop(ctx, fw); err != nil {
			errs = append(errs, err)
		}
	}
	n.cancel()
	return errors.Join(errs...)
}

var _ core.Notifier = (*Notifier)(nil)
