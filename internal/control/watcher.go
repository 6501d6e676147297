package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dbsmedya/lmsarchive/internal/logger"
)

const (
	// PauseFile pauses the run while it exists in the control directory.
	PauseFile = "pause"

	// StopFile stops the run once it appears in the control directory.
	StopFile = "stop"
)

// DirWatcher maps files in a control directory onto operator flags.
// Creating "pause" pauses, removing it resumes. Creating "stop" stops; stop
// is never cleared by the watcher.
type DirWatcher struct {
	mu       sync.Mutex
	dir      string
	controls *Controls
	watcher  *fsnotify.Watcher
	logger   *logger.Logger
	done     chan struct{}
	cancel   context.CancelFunc
	running  bool
}

// NewDirWatcher creates a watcher for dir. The directory is created if
// missing.
func NewDirWatcher(dir string, controls *Controls, log *logger.Logger) (*DirWatcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("control directory is empty")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create control directory %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &DirWatcher{
		dir:      dir,
		controls: controls,
		watcher:  w,
		logger:   log,
		done:     make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *DirWatcher) Dir() string {
	return w.dir
}

// Start syncs the flags with the files already present and begins watching.
// It does not block.
func (w *DirWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.sync()

	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	go w.run(ctx)

	w.logger.Infof("Watching %s for %q and %q files", w.dir, PauseFile, StopFile)
	return nil
}

// Close stops watching and waits for the event loop to exit.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		w.cancel()
		<-w.done
	}
	return w.watcher.Close()
}

func (w *DirWatcher) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Control directory watcher error: %v", err)
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	switch filepath.Base(event.Name) {
	case PauseFile, StopFile:
	default:
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}
	w.sync()
}

// sync derives the flags from the files currently present.
func (w *DirWatcher) sync() {
	paused := exists(filepath.Join(w.dir, PauseFile))
	if paused != w.controls.Pause.IsSet() {
		w.controls.Pause.Store(paused)
		if paused {
			w.logger.Infof("Pause file found in %s", w.dir)
		} else {
			w.logger.Infof("Pause file removed from %s", w.dir)
		}
	}

	if exists(filepath.Join(w.dir, StopFile)) && !w.controls.Stop.IsSet() {
		w.controls.Stop.Set()
		w.logger.Infof("Stop file found in %s", w.dir)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
