package main

import (
	"flag"
	"time"

	"github.com/pb-/lgtd-suite/pkg/crypto"
	"github.com/pb-/lgtd-suite/pkg/export"
	"github.com/pb-/lgtd-suite/pkg/logstore"
	"github.com/pb-/lgtd-suite/pkg/state"
)

// cmdExport replays the whole log and writes the projected state to a
// SQLite file for offline inspection.
func (a *app) cmdExport(args []string) int {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := flags.String("config", "", "config file path")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		a.errorf("usage: lgtd export [flags] <out.db>")
		return 1
	}
	outPath := flags.Arg(0)

	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	key, _, err := a.getKey(cfg)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	cipher, err := crypto.NewCommandCipher(key)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	db, err := logstore.Open(cfg.DataDir(), cfg.LockFile())
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	mgr := state.NewManager(db, cipher, cfg.AppID)
	if _, err := mgr.Notify(); err != nil {
		a.errorf("invalid password or corrupt log: %v", err)
		return 1
	}

	today := time.Now().Format("2006-01-02")
	if err := export.Snapshot(outPath, mgr.Snapshot(), today); err != nil {
		a.errorf("%v", err)
		return 1
	}
	return 0
}
