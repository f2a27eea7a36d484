package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
)

// OpenBadger opens a badger database at dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return db, nil
}

// Badger stores a profile's preferences under the key prefix /<profile>/.
// Writes from other handles on the same database arrive through the
// database's subscription feed.
type Badger struct {
	db     *badger.DB
	prefix string
	logger *slog.Logger

	// pending holds this handle's writes, per key and in order, until the
	// feed echoes them. Only tracked while a subscription is active.
	mu       sync.Mutex
	watchers int
	pending  map[string][]string
}

// NewBadger returns a backend for profile on db. The caller owns db.
func NewBadger(db *badger.DB, profile string, logger *slog.Logger) *Badger {
	return &Badger{
		db:      db,
		prefix:  fmt.Sprintf("/%s/", url.PathEscape(profile)),
		logger:  logger,
		pending: make(map[string][]string),
	}
}

func (b *Badger) key(k string) []byte {
	return []byte(b.prefix + k)
}

func (b *Badger) Read(_ context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(v)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger get %s: %w", key, err)
	}
	return value, true, nil
}

func (b *Badger) Write(_ context.Context, key, value string) error {
	tracked := b.track(key, value)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), []byte(value))
	})
	if err != nil {
		if tracked {
			b.untrack(key)
		}
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

// OnExternalChange subscribes to the profile's prefix. Feed entries whose
// value matches one of this handle's pending writes are skipped as echoes.
func (b *Badger) OnExternalChange(fn func(key, value string)) (func(), error) {
	b.mu.Lock()
	b.watchers++
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := b.db.Subscribe(ctx, func(list *badger.KVList) error {
			for _, kv := range list.Kv {
				key := strings.TrimPrefix(string(kv.Key), b.prefix)
				if b.echo(key, string(kv.Value)) {
					continue
				}
				fn(key, string(kv.Value))
			}
			return nil
		}, []pb.Match{{Prefix: []byte(b.prefix)}})
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn("badger subscription ended", "prefix", b.prefix, "error", err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done

			b.mu.Lock()
			b.watchers--
			if b.watchers == 0 {
				clear(b.pending)
			}
			b.mu.Unlock()
		})
	}, nil
}

func (b *Badger) track(key, value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watchers == 0 {
		return false
	}
	b.pending[key] = append(b.pending[key], value)
	return true
}

func (b *Badger) untrack(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q := b.pending[key]; len(q) > 0 {
		b.pending[key] = q[:len(q)-1]
	}
}

// echo reports whether value matches one of this handle's pending writes
// for key. The match is by value only: a foreign write of a value this handle
// also has pending is taken for the echo, and entries queued before the match
// are discarded as undelivered. Equal values are no-ops for a store, so the
// effect on a store is the same either way.
func (b *Badger) echo(key, value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.pending[key]
	for i, v := range q {
		if v == value {
			b.pending[key] = q[i+1:]
			return true
		}
	}
	return false
}
