// Package logstore manages the on-disk append-only command log.
//
// The log is a directory with one segment file per writer id. A segment is
// strictly append-only: bytes at an offset never change, only appends
// extend it. Each line is one encrypted record terminated by a newline;
// byte offsets double as read cursors and as cryptographic binding context.
//
// A single advisory lock file guards the whole directory. Appends take the
// lock exclusively so no reader can observe a half-written line and no two
// writers interleave partial writes; reads take it shared. Both block until
// available, with no timeout — lock-holding sections must stay short and
// release-guaranteed. Closing a write handle touches the lock file, which
// is the externally observable change an out-of-process file watcher uses
// to wake readers.
package logstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// OffsetMap records, per writer id, how many bytes of that writer's
// segment a reader has consumed. Entries default to zero for writers
// never observed.
type OffsetMap map[string]int64

// Equal reports whether two offset maps describe the same positions,
// treating absent entries as zero.
func (m OffsetMap) Equal(other OffsetMap) bool {
	for w, off := range m {
		if other[w] != off {
			return false
		}
	}
	for w, off := range other {
		if m[w] != off {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m OffsetMap) Clone() OffsetMap {
	out := make(OffsetMap, len(m))
	for w, off := range m {
		out[w] = off
	}
	return out
}

// Record is one complete ciphertext line read from a writer's segment.
// Line includes the trailing newline; Offset is the position the line
// starts at, which is the value it was encrypted under.
type Record struct {
	Line   []byte
	Writer string
	Offset int64
}

// Database is a handle to one log directory. Any number of processes may
// hold handles to the same directory concurrently; the lock file is the
// sole mutual-exclusion mechanism between them.
type Database struct {
	dir      string
	lockPath string
}

// Open prepares the log directory and lock file, creating both if needed.
func Open(dir, lockPath string) (*Database, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	f.Close()
	return &Database{dir: dir, lockPath: lockPath}, nil
}

// Dir returns the log directory path.
func (d *Database) Dir() string { return d.dir }

// LockPath returns the lock file path, the target for file watchers.
func (d *Database) LockPath() string { return d.lockPath }

// flock opens the lock file and blocks until the requested advisory lock
// (flock(2)) is granted.
func (d *Database) flock(how int) (*os.File, error) {
	f, err := os.OpenFile(d.lockPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}
	return f, nil
}

// RLock acquires the shared read lock, blocking until available, and
// returns its release function. Callers that need several reads to observe
// one consistent snapshot across writers wrap them in an RLock; shared
// acquisitions nest freely.
func (d *Database) RLock() (func(), error) {
	f, err := d.flock(syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // close releases anyway
		f.Close()
	}, nil
}

// WriteHandle is a scoped, exclusively locked append position in one
// writer's segment. It must be closed on all paths; Close releases the
// directory lock.
type WriteHandle struct {
	f      *os.File
	lock   *os.File
	offset int64
	closed bool
}

// Append blocks for the exclusive directory lock, opens the writer's
// segment for appending (creating it on first use), and returns a handle
// positioned at the current segment length.
func (d *Database) Append(writer string) (*WriteHandle, error) {
	if err := validWriter(writer); err != nil {
		return nil, err
	}
	lock, err := d.flock(syscall.LOCK_EX)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(d.dir, writer), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("open segment %s: %w", writer, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		releaseLock(lock)
		return nil, fmt.Errorf("stat segment %s: %w", writer, err)
	}
	return &WriteHandle{f: f, lock: lock, offset: st.Size()}, nil
}

// Offset returns the position the next Write will land at, equal to the
// segment length before that write. This is the record's cipher binding
// offset.
func (h *WriteHandle) Offset() int64 { return h.offset }

// Write appends one raw ciphertext line.
func (h *WriteHandle) Write(line []byte) error {
	n, err := h.f.Write(line)
	h.offset += int64(n)
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

// Close syncs and closes the segment, touches the lock file so watchers
// wake, and releases the exclusive lock. Safe to call more than once.
func (h *WriteHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	err := h.f.Sync()
	if cerr := h.f.Close(); err == nil {
		err = cerr
	}
	// The write below changes the lock file's modification state, which is
	// what an external watcher subscribes to.
	if _, terr := h.lock.WriteAt([]byte{'\n'}, 0); err == nil {
		err = terr
	}
	releaseLock(h.lock)
	return err
}

func releaseLock(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck // close releases anyway
	f.Close()
}

// ReadAll takes the shared lock and yields, for every known writer, each
// complete line beyond offsets[writer], in increasing offset order within
// a writer. Ordering across writers is sorted directory order; consumers
// must not depend on it. A torn trailing line (crash mid-write) is ignored,
// not surfaced as an error: it is expected only at a segment tail and will
// be completed or discarded by its owner.
func (d *Database) ReadAll(offsets OffsetMap) ([]Record, error) {
	release, err := d.RLock()
	if err != nil {
		return nil, err
	}
	defer release()

	writers, err := d.listWriters()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, w := range writers {
		recs, _, err := readSegment(filepath.Join(d.dir, w), w, offsets[w])
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// GetOffsets returns the durable length of every known writer's segment in
// record-boundary terms: trailing bytes of a torn write are excluded. Used
// to detect "no change since last check" without decoding content.
func (d *Database) GetOffsets() (OffsetMap, error) {
	release, err := d.RLock()
	if err != nil {
		return nil, err
	}
	defer release()

	writers, err := d.listWriters()
	if err != nil {
		return nil, err
	}
	offsets := make(OffsetMap, len(writers))
	for _, w := range writers {
		_, end, err := readSegment(filepath.Join(d.dir, w), w, 0)
		if err != nil {
			return nil, err
		}
		offsets[w] = end
	}
	return offsets, nil
}

// listWriters returns the writer ids known to this directory, sorted.
func (d *Database) listWriters() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	var writers []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		writers = append(writers, e.Name())
	}
	return writers, nil
}

// readSegment reads complete lines from a segment starting at from,
// returning the records and the offset just past the last complete line.
func readSegment(path, writer string, from int64) ([]Record, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open segment %s: %w", writer, err)
	}
	defer f.Close()

	if from > 0 {
		if _, err := f.Seek(from, io.SeekStart); err != nil {
			return nil, 0, fmt.Errorf("seek segment %s: %w", writer, err)
		}
	}

	var recs []Record
	r := bufio.NewReader(f)
	off := from
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// Anything left without a newline is a torn trailing write.
			return recs, off, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read segment %s: %w", writer, err)
		}
		recs = append(recs, Record{Line: line, Writer: writer, Offset: off})
		off += int64(len(line))
	}
}

// validWriter rejects writer ids that would escape the data directory or
// collide with hidden bookkeeping files.
func validWriter(writer string) error {
	if writer == "" {
		return errors.New("empty writer id")
	}
	if strings.HasPrefix(writer, ".") || strings.ContainsAny(writer, "/\\") {
		return fmt.Errorf("invalid writer id %q", writer)
	}
	return nil
}
