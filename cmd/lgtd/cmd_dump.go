package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pb-/lgtd-suite/pkg/crypto"
	"github.com/pb-/lgtd-suite/pkg/logstore"
)

func (a *app) cmdDump(args []string) int {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
	force := flags.Bool("force", false, "keep going past undecryptable records (still skipped)")
	showTime := flags.Bool("time", false, "prefix each record with its embedded time")
	lockPath := flags.String("lock", "", "lock file path (default: sibling of data dir)")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		a.errorf("usage: lgtd dump [flags] <data_dir>")
		return 1
	}
	dataDir := flags.Arg(0)
	lock := *lockPath
	if lock == "" {
		lock = defaultLockPath(dataDir)
	}

	keys, err := a.collectKeys()
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	db, err := logstore.Open(dataDir, lock)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	records, err := db.ReadAll(nil)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	return dumpRecords(records, keys, *force, *showTime, a.stdout, a.stderr)
}

// collectKeys prompts for passwords until an empty one ends the list; at
// least one is required. A log may hold records under several historical
// keys, so dump tries every candidate per record.
func (a *app) collectKeys() ([][]byte, error) {
	fmt.Fprintln(a.stderr, "You can supply multiple passwords and end with the empty password")

	var keys [][]byte
	for num := 1; ; num++ {
		password, err := a.readPassword(fmt.Sprintf("Password #%d (or enter): ", num))
		if err != nil {
			return nil, err
		}
		if password == "" {
			if len(keys) == 0 {
				fmt.Fprintln(a.stderr, "need at least one password")
				num--
				continue
			}
			return keys, nil
		}
		keys = append(keys, crypto.HashPassword(password))
	}
}

// dumpRecords prints every record decryptable under any candidate key.
// Without force, the first undecryptable record stops the dump with exit
// code 2 and enough detail to locate it.
func dumpRecords(records []logstore.Record, keys [][]byte, force, showTime bool, stdout, stderr io.Writer) int {
	ciphers := make([]*crypto.CommandCipher, 0, len(keys))
	for _, key := range keys {
		cipher, err := crypto.NewCommandCipher(key)
		if err != nil {
			fmt.Fprintf(stderr, "lgtd: %v\n", err)
			return 1
		}
		ciphers = append(ciphers, cipher)
	}

	for _, rec := range records {
		decrypted := false
		for _, cipher := range ciphers {
			plaintext, err := cipher.Decrypt(rec.Line, rec.Writer, rec.Offset)
			if err != nil {
				continue
			}
			if showTime {
				if at, err := crypto.ExtractTime(rec.Line); err == nil {
					fmt.Fprintf(stdout, "%.3f ", float64(at.UnixMicro())/1e6)
				}
			}
			fmt.Fprintf(stdout, "%s\n", plaintext)
			decrypted = true
			break
		}

		if !decrypted && !force {
			fmt.Fprintln(stderr, "unable to decrypt command with any password!")
			fmt.Fprintln(stderr, "use --force to ignore this problem")
			fmt.Fprintf(stderr, "the offending command is in app_id %s at offset %d\n", rec.Writer, rec.Offset)
			fmt.Fprintf(stderr, "its ciphertext reads:\n%s", rec.Line)
			return 2
		}
	}
	return 0
}
