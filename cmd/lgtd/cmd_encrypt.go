package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"

	"github.com/pb-/lgtd-suite/pkg/crypto"
)

func (a *app) cmdEncrypt(args []string) int {
	flags := flag.NewFlagSet("encrypt", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		a.errorf("usage: lgtd encrypt <app_id>")
		return 1
	}
	appID := flags.Arg(0)

	password, err := a.readPassword("Password: ")
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	confirmation, err := a.readPassword("Once again: ")
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	if confirmation != password {
		a.errorf("sorry, passwords do not match")
		return 1
	}

	cipher, err := crypto.NewCommandCipher(crypto.HashPassword(password))
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	if err := encryptStream(a.reader(), a.stdout, cipher, appID); err != nil {
		a.errorf("%v", err)
		return 1
	}
	return 0
}

// encryptStream re-encrypts plaintext commands, one per line, into a fresh
// segment for appID. Each line is sealed at the offset the previous
// ciphertext ends on, exactly as consecutive appends would place them.
func encryptStream(r io.Reader, w io.Writer, cipher *crypto.CommandCipher, appID string) error {
	var offset int64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := cipher.Encrypt([]byte(trimEOL(scanner.Text())), appID, offset)
		if _, err := w.Write(line); err != nil {
			return err
		}
		offset += int64(len(line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}
