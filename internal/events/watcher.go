package events

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maraichr/batislens/internal/workspace"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher turns file system notifications under the project roots into
// debounced change batches. Derived directories are not watched.
type Watcher struct {
	ws       *workspace.Workspace
	handler  Handler
	logger   *slog.Logger
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[workspace.File]Record
}

func NewWatcher(ws *workspace.Workspace, h Handler, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		ws:       ws,
		handler:  h,
		logger:   logger,
		debounce: debounce,
		fsw:      fsw,
		pending:  make(map[workspace.File]Record),
	}, nil
}

// AddProject watches every non-derived directory of a local project.
func (w *Watcher) AddProject(p workspace.Project) error {
	root := p.LocalRoot()
	if root == "" {
		return fmt.Errorf("project %s has no local root", p.Key)
	}
	return w.addTree(root, nil)
}

// addTree watches dir and its subdirectories. When found is not nil it is
// called for every file already present.
func (w *Watcher) addTree(dir string, found func(path string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if found != nil {
				found(path)
			}
			return nil
		}
		if path != dir && w.derived(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) derived(path string) bool {
	f, ok := w.ws.Locate(filepath.ToSlash(path))
	return ok && workspace.IsDerived(f.Path)
}

// Run delivers batches until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.observe(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// observe records ev and reports whether anything is pending.
func (w *Watcher) observe(ev fsnotify.Event) bool {
	f, ok := w.ws.Locate(filepath.ToSlash(ev.Name))
	if !ok || workspace.IsDerived(f.Path) {
		return false
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// files may land before the watch is in place
			err := w.addTree(ev.Name, func(path string) {
				if g, ok := w.ws.Locate(filepath.ToSlash(path)); ok {
					w.add(FileRecord(Added, g))
				}
			})
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("watch directory", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			return w.hasPending()
		}
		w.add(FileRecord(Added, f))
	case ev.Has(fsnotify.Write):
		w.add(FileRecord(Changed, f))
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.add(FileRecord(Removed, f))
	case ev.Has(fsnotify.Chmod):
		r := FileRecord(Changed, f)
		r.MetadataOnly = true
		w.add(r)
	default:
		return false
	}
	return true
}

func (w *Watcher) hasPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending) > 0
}

func (w *Watcher) add(r Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f := r.File()
	if prev, ok := w.pending[f]; ok {
		r = merge(prev, r)
	}
	w.pending[f] = r
}

// merge folds a later record for the same file into an earlier one.
func merge(prev, next Record) Record {
	switch {
	case next.MetadataOnly && !prev.MetadataOnly:
		return prev
	case prev.Kind == Added && next.Kind == Changed:
		return prev
	case prev.Kind == Removed && next.Kind == Added:
		next.Kind = Changed
		return next
	}
	return next
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	records := make([]Record, 0, len(w.pending))
	for _, r := range w.pending {
		records = append(records, r)
	}
	w.pending = make(map[workspace.File]Record)
	w.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].Project != records[j].Project {
			return records[i].Project < records[j].Project
		}
		return records[i].Path < records[j].Path
	})
	b := NewBatch("watcher", records...)
	if err := w.handler.Apply(ctx, b); err != nil {
		w.logger.Error("apply batch", slog.String("batch_id", b.ID.String()), slog.String("error", err.Error()))
	}
}
