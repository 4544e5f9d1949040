// Package config parses the sender daemon's command line flags and its
// optional on-disk config files.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultSyncInterval       = 10 * time.Minute
	defaultMonitorInterval    = 5 * time.Minute
	defaultMaxSyncFileTry     = 5
	defaultDataChunkSize      = 64 * 1024
	defaultBatchLine          = 1000
	defaultMemProfileInterval = 30 * time.Minute
)

// DataDir is one database data directory the sender watches, together
// with the logical group name override read from the groups file (if
// any). An empty Group lets the Inventory Snapshot derive group names
// from the directory's own sub-structure.
type DataDir struct {
	Path  string
	Group string
}

// Config holds everything the Orchestrator needs for one sender
// process. It is assembled from flags, an optional JSON base-options
// file and an optional YAML groups file, in that precedence order
// (flags win over either file).
type Config struct {
	ReceiverHost string `json:"receiver_host"`
	ReceiverPort int    `json:"receiver_port"`

	LockFile         string `json:"lock_file"`
	IdentityFile     string `json:"identity_file"`
	SnapshotDir      string `json:"snapshot_dir"`
	SchemaLogFile    string `json:"schema_log_file"`
	SchemaCursorFile string `json:"schema_cursor_file"`
	BaselineFile     string `json:"baseline_file"`
	JournalFile      string `json:"journal_file"`

	SyncInterval    time.Duration `json:"-"`
	MonitorInterval time.Duration `json:"-"`
	MaxSyncFileTry  int           `json:"max_sync_file_try"`
	DataChunkSize   int           `json:"data_chunk_size"`
	BatchLine       int           `json:"batch_line"`

	HistoryDSN string `json:"history_dsn"`
	PProfBind  string `json:"pprof_bind"`
	Quiet      bool   `json:"-"`

	MemProfileDir      string        `json:"mem_profile_dir"`
	MemProfileInterval time.Duration `json:"-"`

	DataDirs []DataDir `json:"-"`
}

type groupsFile struct {
	Groups map[string]string `yaml:"groups"`
}

// Flags is the flag.FlagSet for the sender daemon, exposed so the
// entrypoint can call Parse with os.Args[1:].
var Flags = flag.NewFlagSet("tsyncd", flag.ExitOnError)

type options struct {
	receiverAddr     string
	lockFile         string
	identityFile     string
	snapshotDir      string
	schemaLogFile    string
	schemaCursorFile string
	baselineFile     string
	journalFile      string
	dataDirsCSV      string
	configFile       string
	groupsFile       string
	syncInterval     time.Duration
	monitorInterval  time.Duration
	maxSyncFileTry   int
	dataChunkSize    int
	batchLine        int
	historyDSN       string
	pprofBind        string
	quiet            bool
	memProfileDir    string
	memProfileEvery  time.Duration
}

var opts = options{}

func init() {
	Flags.StringVar(&opts.receiverAddr, "receiver", "", "receiver host:port")
	Flags.StringVar(&opts.lockFile, "lockfile", "/var/lib/tsdb/sync/sender.lock", "singleton lock file")
	Flags.StringVar(&opts.identityFile, "identityfile", "/var/lib/tsdb/sync/sender.uuid", "identity file")
	Flags.StringVar(&opts.snapshotDir, "snapshotdir", "/var/lib/tsdb/sync/snapshot", "hard-link snapshot directory")
	Flags.StringVar(&opts.schemaLogFile, "schemalog", "/var/lib/tsdb/system/schema.log", "schema log file")
	Flags.StringVar(&opts.schemaCursorFile, "schemacursor", "/var/lib/tsdb/sync/schema.pos", "schema cursor file")
	Flags.StringVar(&opts.baselineFile, "baseline", "/var/lib/tsdb/sync/last.local", "baseline file")
	Flags.StringVar(&opts.journalFile, "journal", "/var/lib/tsdb/sync/sync.log", "progress journal file")
	Flags.StringVar(&opts.dataDirsCSV, "datadirs", "", "comma separated list of data directories")
	Flags.StringVar(&opts.configFile, "config", "", "base options (json)")
	Flags.StringVar(&opts.groupsFile, "groups", "", "data directory group overrides (yaml)")
	Flags.DurationVar(&opts.syncInterval, "syncinterval", defaultSyncInterval, "period between sync cycles")
	Flags.DurationVar(&opts.monitorInterval, "monitorinterval", defaultMonitorInterval, "period between liveness heartbeats")
	Flags.IntVar(&opts.maxSyncFileTry, "maxsyncfiletry", defaultMaxSyncFileTry, "max retries per file/schema shipment")
	Flags.IntVar(&opts.dataChunkSize, "datachunksize", defaultDataChunkSize, "bytes per syncData chunk")
	Flags.IntVar(&opts.batchLine, "batchline", defaultBatchLine, "schema log lines accumulated into one syncData call")
	Flags.StringVar(&opts.historyDSN, "historydsn", "", "optional postgres DSN for cycle history")
	Flags.StringVar(&opts.pprofBind, "httpprofile", "", "bind address for the debug pprof server")
	Flags.BoolVar(&opts.quiet, "quiet", false, "quiet log output")
	Flags.StringVar(&opts.memProfileDir, "memprofiledir", "", "directory for periodic heap profile dumps (disabled if empty)")
	Flags.DurationVar(&opts.memProfileEvery, "memprofileinterval", defaultMemProfileInterval, "period between heap profile dumps")
}

// Parse parses args, applies the optional JSON/YAML config files on top
// of (but never overriding) any value also given on the command line,
// and validates the result.
func Parse(args []string) (*Config, error) {
	if err := Flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		LockFile:           opts.lockFile,
		IdentityFile:       opts.identityFile,
		SnapshotDir:        opts.snapshotDir,
		SchemaLogFile:      opts.schemaLogFile,
		SchemaCursorFile:   opts.schemaCursorFile,
		BaselineFile:       opts.baselineFile,
		JournalFile:        opts.journalFile,
		SyncInterval:       opts.syncInterval,
		MonitorInterval:    opts.monitorInterval,
		MaxSyncFileTry:     opts.maxSyncFileTry,
		DataChunkSize:      opts.dataChunkSize,
		BatchLine:          opts.batchLine,
		HistoryDSN:         opts.historyDSN,
		PProfBind:          opts.pprofBind,
		Quiet:              opts.quiet,
		MemProfileDir:      opts.memProfileDir,
		MemProfileInterval: opts.memProfileEvery,
	}

	if opts.receiverAddr != "" {
		host, port, err := splitReceiverAddr(opts.receiverAddr)
		if err != nil {
			return nil, err
		}
		cfg.ReceiverHost = host
		cfg.ReceiverPort = port
	}

	if opts.configFile != "" {
		if err := applyJSONFile(cfg, opts.configFile); err != nil {
			return nil, err
		}
	}

	dirs := splitCSV(opts.dataDirsCSV)
	groups := map[string]string{}
	if opts.groupsFile != "" {
		var err error
		groups, err = readGroupsFile(opts.groupsFile)
		if err != nil {
			return nil, err
		}
	}
	for _, d := range dirs {
		cfg.DataDirs = append(cfg.DataDirs, DataDir{Path: d, Group: groups[d]})
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitReceiverAddr parses the "-receiver host:port" flag into its host
// and port parts so a flags-only invocation dials a complete address
// without needing the JSON config file's receiver_port.
func splitReceiverAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid -receiver address %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid -receiver port in %q: %v", addr, err)
	}
	return host, port, nil
}

func applyJSONFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var file Config
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return err
	}

	if cfg.ReceiverHost == "" {
		cfg.ReceiverHost = file.ReceiverHost
	}
	if cfg.ReceiverPort == 0 {
		cfg.ReceiverPort = file.ReceiverPort
	}
	if file.MaxSyncFileTry != 0 && cfg.MaxSyncFileTry == defaultMaxSyncFileTry {
		cfg.MaxSyncFileTry = file.MaxSyncFileTry
	}
	if file.DataChunkSize != 0 && cfg.DataChunkSize == defaultDataChunkSize {
		cfg.DataChunkSize = file.DataChunkSize
	}
	if file.BatchLine != 0 && cfg.BatchLine == defaultBatchLine {
		cfg.BatchLine = file.BatchLine
	}
	if file.HistoryDSN != "" && cfg.HistoryDSN == "" {
		cfg.HistoryDSN = file.HistoryDSN
	}
	fromFile := func(dst *string, val, flagName string) {
		if val != "" && *dst == Flags.Lookup(flagName).DefValue {
			*dst = val
		}
	}
	fromFile(&cfg.LockFile, file.LockFile, "lockfile")
	fromFile(&cfg.IdentityFile, file.IdentityFile, "identityfile")
	fromFile(&cfg.SnapshotDir, file.SnapshotDir, "snapshotdir")
	fromFile(&cfg.SchemaLogFile, file.SchemaLogFile, "schemalog")
	fromFile(&cfg.SchemaCursorFile, file.SchemaCursorFile, "schemacursor")
	fromFile(&cfg.BaselineFile, file.BaselineFile, "baseline")
	fromFile(&cfg.JournalFile, file.JournalFile, "journal")
	fromFile(&cfg.PProfBind, file.PProfBind, "httpprofile")
	fromFile(&cfg.MemProfileDir, file.MemProfileDir, "memprofiledir")
	return nil
}

func readGroupsFile(path string) (map[string]string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gf groupsFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, err
	}
	return gf.Groups, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func (c *Config) check() error {
	if c.ReceiverHost == "" {
		return fmt.Errorf("missing receiver address")
	}
	if c.ReceiverPort == 0 {
		return fmt.Errorf("missing receiver port")
	}
	if len(c.DataDirs) == 0 {
		return fmt.Errorf("no data directories configured")
	}
	if c.MaxSyncFileTry < 1 {
		return fmt.Errorf("maxsyncfiletry must be >= 1")
	}
	return nil
}

// Usage prints flag defaults to stderr.
func Usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [args]\n\n", os.Args[0])
	Flags.PrintDefaults()
}
