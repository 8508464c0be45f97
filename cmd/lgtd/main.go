// Command lgtd is the task service and admin CLI — an encrypted
// append-only command log per device, projected into shared task state.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("lgtd", version)
		return
	}

	a := newApp()

	switch os.Args[1] {
	// Service
	case "serve":
		os.Exit(a.cmdServe(os.Args[2:]))

	// Administration
	case "dump":
		os.Exit(a.cmdDump(os.Args[2:]))
	case "encrypt":
		os.Exit(a.cmdEncrypt(os.Args[2:]))
	case "dumpkey":
		os.Exit(a.cmdDumpkey(os.Args[2:]))
	case "export":
		os.Exit(a.cmdExport(os.Args[2:]))

	default:
		fmt.Fprintf(os.Stderr, "lgtd: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'lgtd --help' for usage.")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`lgtd — personal task tracking over an encrypted command log

Each device appends authenticated-encrypted commands to its own log
segment; state is never stored, only replayed.

Usage:
  lgtd <command> [flags]

Service:
  serve [--addr A]          Run the local websocket service
                            (default 127.0.0.1:9001)

Administration:
  dump <data_dir>           Decrypt and print the whole log; prompts for
                            one or more passwords (end with empty)
      --force               Keep going past undecryptable records
      --time                Prefix each record with its embedded time
  encrypt <app_id>          Re-encrypt plaintext commands from stdin at
                            fresh offsets under a new password
  dumpkey                   Print the derived key for a password as hex
  export <out.db>           Write the projected state to a SQLite file

Environment:
  LGTD_CONFIG   Config file path (default: ~/.config/lgtd/config.yaml)
  LGTD_STATE    State directory (default: ~/.local/share/lgtd)

Exit codes:
  0  success
  1  error
  2  undecryptable record (dump without --force)
`)
}
