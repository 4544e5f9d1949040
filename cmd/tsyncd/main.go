// Command tsyncd is the sender daemon: it acquires the singleton
// lock, then runs the Orchestrator until a termination signal or an
// unrecoverable connection failure.
package main

import (
	golog "log"
	"os"
	"runtime"

	sender "github.com/tsreplica/sender"
	"github.com/tsreplica/sender/config"
	"github.com/tsreplica/sender/lock"
	"github.com/tsreplica/sender/logging"
	"github.com/tsreplica/sender/orchestrator"
	"github.com/tsreplica/sender/stats"
)

var log = logging.NewLogger("")

func main() {
	golog.SetFlags(golog.LstdFlags | golog.Lshortfile)
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Printf("%v", err)
		config.Usage()
		logging.Shutdown()
		os.Exit(1)
	}
	logging.SetQuiet(cfg.Quiet)

	log.Printf("tsyncd %s", sender.Version)

	guard := lock.MustAcquire(cfg.LockFile)
	defer guard.Release()

	if cfg.PProfBind != "" {
		stats.StartHttpPProf(cfg.PProfBind)
	}
	if cfg.MemProfileDir != "" {
		go stats.MemProfiler(cfg.MemProfileDir, cfg.MemProfileInterval)
	}

	o, err := orchestrator.New(cfg)
	if err != nil {
		log.Printf("%v", err)
		logging.Shutdown()
		os.Exit(1)
	}

	if err := o.Run(); err != nil {
		log.Printf("%v", err)
		logging.Shutdown()
		os.Exit(1)
	}
}
