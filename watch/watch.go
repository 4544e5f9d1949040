// Package watch implements the hint watcher: an
// early-wake signal for the orchestrator's scheduler so a freshly
// flushed data file doesn't have to wait out the full periodic
// interval. Grounded directly on
// _examples/omniscale-imposm3/replication/source.go's
// waitTillPresent, which watches a file's parent directory with
// fsnotify and wakes on fsnotify.Create; generalized here from
// "wait for one specific file" to "notify on any new file in a data
// directory."
package watch

import (
	"github.com/fsnotify/fsnotify"

	"github.com/tsreplica/sender/errs"
	"github.com/tsreplica/sender/logging"
)

var log = logging.NewLogger("watch")

// Watcher observes a set of data directories and emits a non-blocking
// hint on Hints whenever a file is created in one of them.
type Watcher struct {
	fsw   *fsnotify.Watcher
	Hints chan string
	done  chan struct{}
}

// New starts watching every directory in dataDirs. The returned
// Watcher must be closed to release the underlying inotify/kqueue
// handles.
func New(dataDirs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "creating hint watcher")
	}
	for _, dir := range dataDirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errs.Wrapf(errs.IOError, "watching data directory %s", dir)
		}
	}

	w := &Watcher{
		fsw:   fsw,
		Hints: make(chan string, len(dataDirs)+1),
		done:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			select {
			case w.Hints <- evt.Name:
			default:
				// scheduler hasn't drained the last hint yet; the
				// periodic tick remains the backstop.
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops watching and releases the underlying handles.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
