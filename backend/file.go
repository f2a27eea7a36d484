package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// File keeps a profile's preferences in a YAML document on disk. Other
// processes editing the same file are picked up through fsnotify.
type File struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]string
}

// NewFile returns a backend for profile stored under dir.
func NewFile(dir, profile string, logger *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating preferences dir: %w", err)
	}
	return &File{
		path:   filepath.Join(dir, url.PathEscape(profile)+".yaml"),
		logger: logger,
	}, nil
}

// Path returns the YAML file's location.
func (f *File) Path() string {
	return f.path
}

func (f *File) Read(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (f *File) Write(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[key] = value

	if err := f.save(doc); err != nil {
		return err
	}
	f.last = doc
	return nil
}

// load reads the document. A missing file is an empty document.
func (f *File) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	doc := map[string]string{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return doc, nil
}

// save replaces the file atomically so watchers never see a partial write.
func (f *File) save(doc map[string]string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".prefs-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// OnExternalChange watches the file's directory and reports keys whose value
// differs from the last contents this backend saw or wrote.
func (f *File) OnExternalChange(fn func(key, value string)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(f.path), err)
	}

	f.mu.Lock()
	if doc, err := f.load(); err == nil {
		f.last = doc
	}
	f.mu.Unlock()

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		for {
			select {
			case <-stopCh:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				for _, c := range f.diff() {
					fn(c.key, c.value)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("preferences file watcher error", "path", f.path, "error", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
			if err := watcher.Close(); err != nil {
				f.logger.Warn("closing preferences file watcher", "error", err)
			}
		})
	}, nil
}

type change struct {
	key, value string
}

func (f *File) diff() []change {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		f.logger.Warn("reloading preferences file", "error", err)
		return nil
	}

	var changes []change
	for k, v := range doc {
		if old, ok := f.last[k]; !ok || old != v {
			changes = append(changes, change{key: k, value: v})
		}
	}
	f.last = doc

	sort.Slice(changes, func(i, j int) bool { return changes[i].key < changes[j].key })
	return changes
}
