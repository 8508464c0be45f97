package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/pb-/lgtd-suite/pkg/config"
	"github.com/pb-/lgtd-suite/pkg/crypto"
)

// app holds the streams shared by all CLI subcommands, so tests can drive
// them without a terminal.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	buffered *bufio.Reader // lazily wraps stdin; all line reads go through it
}

func newApp() *app {
	return &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func (a *app) errorf(format string, args ...interface{}) {
	fmt.Fprintf(a.stderr, "lgtd: "+format+"\n", args...)
}

// reader returns the shared buffered view of stdin. It must be shared:
// a fresh bufio.Reader per call would swallow bytes already buffered by
// the previous one.
func (a *app) reader() *bufio.Reader {
	if a.buffered == nil {
		a.buffered = bufio.NewReader(a.stdin)
	}
	return a.buffered
}

// loadConfig reads the config file, honoring an explicit --config override.
func (a *app) loadConfig(flagPath string) (*config.Config, error) {
	path := flagPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// getKey resolves the encryption key: from the config when present, from
// an interactive password prompt otherwise. prompted reports which path
// was taken; serve uses it to decide whether a fresh store needs password
// confirmation.
func (a *app) getKey(cfg *config.Config) (key []byte, prompted bool, err error) {
	key, ok, err := cfg.KeyBytes()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return key, false, nil
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return nil, true, err
	}
	return crypto.HashPassword(password), true, nil
}

// readPassword prompts without echo when stdin is a terminal and falls
// back to line-reading otherwise (pipes, tests).
func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(a.stderr, prompt)
	defer fmt.Fprintln(a.stderr)

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := a.reader().ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return trimEOL(line), nil
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// defaultLockPath guesses the lock file next to a data directory, matching
// the stateDir/data + stateDir/lock layout.
func defaultLockPath(dataDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(dataDir)), "lock")
}
