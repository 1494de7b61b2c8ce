package xlsxstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/editgrid/internal/table"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 250 * time.Millisecond

// WatcherOps creates file system watchers. Tests inject a fake; nil means
// fsnotify.
type WatcherOps interface {
	NewWatcher() (WatcherInstance, error)
}

// WatcherInstance is an active file system watcher.
type WatcherInstance interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type realWatcherOps struct{}

func (r *realWatcherOps) NewWatcher() (WatcherInstance, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &realWatcherInstance{w: w}, nil
}

type realWatcherInstance struct {
	w *fsnotify.Watcher
}

func (r *realWatcherInstance) Add(name string) error         { return r.w.Add(name) }
func (r *realWatcherInstance) Close() error                  { return r.w.Close() }
func (r *realWatcherInstance) Events() <-chan fsnotify.Event { return r.w.Events }
func (r *realWatcherInstance) Errors() <-chan error          { return r.w.Errors }

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// OnReload receives the sheet's rows after an outside change.
	OnReload func(rows []table.Row)
	// OnError receives load and watcher errors. The watcher keeps running.
	OnError  func(error)
	Debounce time.Duration
	Ops      WatcherOps
}

// Watcher reloads the sheet when the workbook changes on disk. Changes this
// store wrote itself are ignored.
//
// The directory is watched rather than the file, since spreadsheet programs
// usually save by writing a temporary file and renaming it over the original.
type Watcher struct {
	store   *Store
	watcher WatcherInstance
	opts    WatchOptions
	name    string

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	done chan struct{}
}

// Watch starts watching the store's workbook.
func (s *Store) Watch(opts WatchOptions) (*Watcher, error) {
	if opts.OnReload == nil {
		return nil, fmt.Errorf("watch %s: OnReload is required", s.config.FilePath)
	}
	if opts.OnError == nil {
		opts.OnError = func(err error) { s.log.Warn("workbook watch error", "error", err) }
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Ops == nil {
		opts.Ops = &realWatcherOps{}
	}

	watcher, err := opts.Ops.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(s.config.FilePath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		store:   s,
		watcher: watcher,
		opts:    opts,
		name:    filepath.Base(s.config.FilePath),
		done:    make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events():
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors():
			if !ok {
				return
			}
			w.opts.OnError(fmt.Errorf("file watcher: %w", err))
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed || w.store.ownWrite() {
		return
	}

	rows, err := w.store.Load(context.Background())
	if err != nil {
		w.opts.OnError(fmt.Errorf("reload workbook: %w", err))
		return
	}
	w.store.log.Info("workbook changed on disk, reloading", "rows", len(rows))
	w.opts.OnReload(rows)
}
