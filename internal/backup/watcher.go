package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/cardfile"
	"github.com/iurnickita/giftcards/internal/model"
)

// Watcher reports external edits of the backup file.
type Watcher struct {
	fw       *fsnotify.Watcher
	skip     func(data []byte) bool
	onChange func(cards []model.Card)
	logger   *zap.Logger

	mu   sync.Mutex
	path string
}

// NewWatcher creates a watcher. skip filters out content we wrote ourselves.
func NewWatcher(skip func(data []byte) bool, onChange func(cards []model.Card), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:       fw,
		skip:     skip,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Watch switches to another file. An empty path stops watching.
func (w *Watcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.path != "" {
		_ = w.fw.Remove(filepath.Dir(w.path))
	}
	w.path = ""
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)
	if err := w.fw.Add(filepath.Dir(path)); err != nil {
		return err
	}
	w.path = path
	return nil
}

func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != w.current() {
				continue
			}
			w.reload(event.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("backup watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("backup file read failed", zap.String("path", path), zap.Error(err))
		return
	}
	// файл мог быть обрезан перед записью
	if len(bytes.TrimSpace(data)) == 0 || w.skip(data) {
		return
	}
	cards, err := cardfile.Decode(data)
	if err != nil {
		w.logger.Warn("backup file ignored", zap.String("path", path), zap.Error(err))
		return
	}
	w.onChange(cards)
}
