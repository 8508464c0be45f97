package main

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pb-/lgtd-suite/pkg/crypto"
	"github.com/pb-/lgtd-suite/pkg/logstore"
	"github.com/pb-/lgtd-suite/pkg/server"
	"github.com/pb-/lgtd-suite/pkg/state"
)

func (a *app) cmdServe(args []string) int {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := flags.String("addr", "127.0.0.1:9001", "listen address")
	configPath := flags.String("config", "", "config file path")
	debug := flags.Bool("debug", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	key, prompted, err := a.getKey(cfg)
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

	// Replay before accepting clients. A wrong password surfaces here as
	// an authentication failure on the first record.
	changed, err := mgr.Notify()
	if err != nil {
		a.errorf("invalid password or corrupt log: %v", err)
		return 1
	}

	// An empty log cannot contradict a mistyped password, so a prompted
	// key over a fresh store needs explicit confirmation.
	if !changed && prompted {
		confirmation, err := a.readPassword("Once again: ")
		if err != nil {
			a.errorf("%v", err)
			return 1
		}
		if !bytes.Equal(crypto.HashPassword(confirmation), key) {
			a.errorf("passwords do not match, exiting")
			return 1
		}
	}

	srv := server.New(mgr, cfg.LocalAuth, cfg.LockFile())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, *addr); err != nil {
		a.errorf("%v", err)
		return 1
	}
	return 0
}
