package xlsxstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/editgrid/internal/table"
)

type fakeWatcherOps struct {
	instance *fakeWatcher
	err      error
}

func (o *fakeWatcherOps) NewWatcher() (WatcherInstance, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.instance, nil
}

type fakeWatcher struct {
	events chan fsnotify.Event
	errs   chan error

	mu     sync.Mutex
	added  []string
	closed int
	addErr error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan fsnotify.Event, 8), errs: make(chan error, 1)}
}

func (w *fakeWatcher) Add(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.added = append(w.added, name)
	return w.addErr
}

func (w *fakeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	if w.closed == 1 {
		close(w.events)
		close(w.errs)
	}
	return nil
}

func (w *fakeWatcher) Events() <-chan fsnotify.Event { return w.events }
func (w *fakeWatcher) Errors() <-chan error          { return w.errs }

type reloads struct {
	mu   sync.Mutex
	rows [][]table.Row
	errs []error
}

func (r *reloads) onReload(rows []table.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows)
}

func (r *reloads) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *reloads) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *reloads) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// editExternally changes a cell the way another program would and moves the
// modification time so the change is never mistaken for our own write.
func editExternally(t *testing.T, path, cell, value string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Products", cell, value))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
}

func startWatch(t *testing.T, s *Store, r *reloads) (*Watcher, *fakeWatcher) {
	t.Helper()
	fw := newFakeWatcher()
	w, err := s.Watch(WatchOptions{
		OnReload: r.onReload,
		OnError:  r.onError,
		Debounce: 10 * time.Millisecond,
		Ops:      &fakeWatcherOps{instance: fw},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, fw
}

func TestWatch_ReloadsOutsideChanges(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Seed(context.Background(), seedRows())
	require.NoError(t, err)

	r := &reloads{}
	_, fw := startWatch(t, s, r)

	editExternally(t, s.Path(), "B2", "Edited elsewhere")
	for range 3 {
		fw.events <- fsnotify.Event{Name: s.Path(), Op: fsnotify.Write}
	}

	require.Eventually(t, func() bool { return r.count() >= 1 }, time.Second, 5*time.Millisecond)
	r.mu.Lock()
	got := r.rows[0]
	r.mu.Unlock()
	assert.Equal(t, "Edited elsewhere", got[0]["name"])
}

func TestWatch_IgnoresOwnWritesAndOtherFiles(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Seed(context.Background(), seedRows())
	require.NoError(t, err)

	r := &reloads{}
	_, fw := startWatch(t, s, r)

	res, err := s.SaveRow(context.Background(), table.Row{"id": "a", "name": "Mine"}, 0)
	require.NoError(t, err)
	require.True(t, res.Success)

	fw.events <- fsnotify.Event{Name: s.Path(), Op: fsnotify.Write}
	fw.events <- fsnotify.Event{Name: s.Path() + ".tmp", Op: fsnotify.Write}
	fw.events <- fsnotify.Event{Name: s.Path(), Op: fsnotify.Chmod}

	assert.Never(t, func() bool { return r.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestWatch_Errors(t *testing.T) {
	s := newTestStore(t)
	r := &reloads{}
	_, fw := startWatch(t, s, r)

	fw.errs <- errors.New("inotify overflow")
	require.Eventually(t, func() bool { return r.errCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatch_Setup(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Watch(WatchOptions{})
	assert.Error(t, err, "OnReload is required")

	_, err = s.Watch(WatchOptions{OnReload: func([]table.Row) {}, Ops: &fakeWatcherOps{err: errors.New("no inotify")}})
	assert.ErrorContains(t, err, "no inotify")

	fw := newFakeWatcher()
	fw.addErr = errors.New("no such directory")
	_, err = s.Watch(WatchOptions{OnReload: func([]table.Row) {}, Ops: &fakeWatcherOps{instance: fw}})
	assert.Error(t, err)
	assert.Equal(t, 1, fw.closed, "watcher is closed when Add fails")
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	r := &reloads{}
	w, fw := startWatch(t, s, r)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, fw.closed)
}
