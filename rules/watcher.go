package rules

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmartin/rxdispatch"
)

// defaultDebounce coalesces the event bursts editors produce on save.
const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a ruleset file when it changes on disk.
//
// The core registry only ever grows, so a reload builds a fresh
// dispatcher from the new ruleset and hands it to the reload callback;
// the host swaps it in for the old one.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	config   rxdispatch.Config
	resolver Resolver
	onReload func(*rxdispatch.Dispatcher)
	debounce time.Duration

	errs chan error

	closed    bool
	closeMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the reload debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithConfig sets the dispatcher configuration used for rebuilt
// dispatchers.
func WithConfig(config rxdispatch.Config) WatcherOption {
	return func(w *Watcher) {
		w.config = config
	}
}

// Watch starts watching a ruleset file. Each time the file is written
// or recreated, it is reloaded, rebuilt through the resolver, and the
// new dispatcher is delivered to onReload. Reload failures are
// reported on Errors and leave the previous dispatcher in place.
func Watch(path string, res Resolver, onReload func(*rxdispatch.Dispatcher), opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		path:     filepath.Clean(path),
		config:   rxdispatch.DefaultConfig(),
		resolver: res,
		onReload: onReload,
		debounce: defaultDebounce,
		errs:     make(chan error, 16),
		closeCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	// Watch the directory rather than the file itself: editors often
	// replace files on save, which drops a file-level watch.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Errors returns the channel reload and watch errors are delivered on.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops watching. Idempotent.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		w.closeMu.Unlock()

		close(w.closeCh)
		err = w.fsw.Close()
		w.wg.Wait()
		close(w.errs)
	})
	return err
}

// loop consumes fsnotify events, debouncing reloads.
func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(err)

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()
		}
	}
}

// relevant reports whether an event concerns the watched file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create)
}

// reload loads and rebuilds the ruleset, delivering the result.
func (w *Watcher) reload() {
	rs, err := Load(w.path)
	if err != nil {
		w.report(err)
		return
	}

	d, err := rs.Build(w.config, w.resolver)
	if err != nil {
		w.report(err)
		return
	}

	if w.onReload != nil {
		w.onReload(d)
	}
}

// report delivers an error without blocking.
func (w *Watcher) report(err error) {
	w.closeMu.Lock()
	closed := w.closed
	w.closeMu.Unlock()
	if closed {
		return
	}

	select {
	case w.errs <- err:
	default:
	}
}
