package main

import (
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/pb-/lgtd-suite/pkg/crypto"
)

// cmdDumpkey prints the derived key for a password, for pasting into the
// config file's key field to skip the prompt on startup.
func (a *app) cmdDumpkey(args []string) int {
	flags := flag.NewFlagSet("dumpkey", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return 1
	}

	password, err := a.readPassword("Password: ")
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	fmt.Fprintln(a.stdout, hex.EncodeToString(crypto.HashPassword(password)))
	return 0
}
