// Package orchestrator implements the state machine equivalent of
// DataTransferManager: it guarantees one cycle runs at a time, drives
// the periodic scheduler and liveness monitor, and coordinates every
// other component through one sync cycle. Grounded on a signal-driven
// select loop over a small number of time.Tickers.
package orchestrator

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tsreplica/sender/config"
	"github.com/tsreplica/sender/historystore"
	"github.com/tsreplica/sender/identity"
	"github.com/tsreplica/sender/logging"
	"github.com/tsreplica/sender/recovery"
	"github.com/tsreplica/sender/stats"
	"github.com/tsreplica/sender/util"
	"github.com/tsreplica/sender/watch"
)

var log = logging.NewLogger("orchestrator")

// Orchestrator owns the scheduler, the liveness monitor and exactly
// one in-flight sync cycle.
type Orchestrator struct {
	cfg     *config.Config
	history *historystore.Store
	watcher *watch.Watcher

	syncInProgress int32
	stopped        int32
	stopCh         chan struct{}

	mu         sync.Mutex
	shutdownSP *util.SyncPoint
	progress   *stats.RpsCounter
}

// New builds an Orchestrator from cfg. It opens (but does not yet
// insert into) the optional history store and starts the Hint Watcher
// on every configured data directory.
func New(cfg *config.Config) (*Orchestrator, error) {
	history, err := historystore.Open(cfg.HistoryDSN)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, dd := range cfg.DataDirs {
		dirs = append(dirs, dd.Path)
	}
	watcher, err := watch.New(dirs)
	if err != nil {
		history.Close()
		return nil, err
	}

	return &Orchestrator{
		cfg:     cfg,
		history: history,
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}, nil
}

// Run starts the periodic scheduler and liveness monitor and blocks
// until a termination signal arrives or a non-finalize SyncConnectionError
// calls stop(). It returns an error in the latter case so the caller
// (typically cmd/tsyncd) can exit with a non-zero status and let a
// process supervisor restart the daemon.
func (o *Orchestrator) Run() error {
	if _, err := identity.GetOrCreate(o.cfg.IdentityFile); err != nil {
		return err
	}
	if err := recovery.Recover(o.cfg.JournalFile, o.cfg.BaselineFile); err != nil {
		log.Warnf("recovery: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	syncTicker := time.NewTicker(o.cfg.SyncInterval)
	defer syncTicker.Stop()
	monitorTicker := time.NewTicker(o.cfg.MonitorInterval)
	defer monitorTicker.Stop()

	log.Printf("starting sender for %s every %s", o.cfg.ReceiverHost, o.cfg.SyncInterval)

	go o.syncAll()

	for {
		select {
		case <-sigc:
			log.Printf("exiting (signal)")
			o.shutdownWaitForCycle()
			return nil
		case <-o.stopCh:
			return fmt.Errorf("orchestrator stopped after a connection failure")
		case <-syncTicker.C:
			go o.syncAll()
		case <-monitorTicker.C:
			o.heartbeat()
		case hint := <-o.watcher.Hints:
			log.Printf("new file %s, syncing early", hint)
			go o.syncAll()
		}
	}
}

// heartbeat emits the liveness log line whenever a cycle is running,
// ticking the cycle's RpsCounter so the reported rate reflects bytes
// shipped since the previous heartbeat rather than the whole cycle.
func (o *Orchestrator) heartbeat() {
	if atomic.LoadInt32(&o.syncInProgress) == 0 {
		return
	}
	o.mu.Lock()
	progress := o.progress
	o.mu.Unlock()
	if progress == nil {
		log.Printf("sync in progress")
		return
	}
	lastRps := progress.LastRps()
	progress.Tick()
	snap := progress.Count()
	log.Printf("sync in progress: %d bytes shipped, %.0f B/s overall, %.0f B/s since last heartbeat", snap.Current, snap.Rps, lastRps)
}

// stop is called only from a non-finalize SyncConnectionError and
// shuts down the scheduler after the current RPC returns.
func (o *Orchestrator) stop() {
	if atomic.CompareAndSwapInt32(&o.stopped, 0, 1) {
		close(o.stopCh)
	}
}

func (o *Orchestrator) shutdown() {
	logging.Shutdown()
	o.watcher.Close()
	o.history.Close()
}

// shutdownWaitForCycle holds teardown until a cycle already in flight
// reaches the same rendezvous, using a two-party SyncPoint so shutdown
// never races the journal/history writes of an in-progress cycle. If
// no cycle is running it tears down immediately.
func (o *Orchestrator) shutdownWaitForCycle() {
	o.mu.Lock()
	if atomic.LoadInt32(&o.syncInProgress) == 0 {
		o.mu.Unlock()
		o.shutdown()
		return
	}
	sp := util.NewSyncPoint(2, o.shutdown)
	o.shutdownSP = sp
	o.mu.Unlock()
	sp.Sync()
}

func newProgressCounter() *stats.RpsCounter {
	return stats.NewRpsCounter()
}
