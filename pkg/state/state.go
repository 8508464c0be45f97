// Package state owns the projected application state of one service
// process.
//
// The Manager is the single owner of the in-memory State and the reader's
// offset map; the network layer goes through it rather than holding its own
// copy. Notify re-reads the log incrementally and folds new commands into
// State; PushCommands encrypts and appends this device's own commands;
// RenderState produces the user-facing view. All three are safe for
// concurrent use from session goroutines.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/pb-/lgtd-suite/pkg/crypto"
	"github.com/pb-/lgtd-suite/pkg/logstore"
	"github.com/pb-/lgtd-suite/pkg/model"
)

// Manager folds the command log into a projected State.
type Manager struct {
	mu      sync.Mutex
	db      logstore.Log
	cipher  *crypto.CommandCipher
	appID   string
	offsets logstore.OffsetMap
	state   *model.State
}

// NewManager returns a manager that reads the whole log on its first
// Notify. appID is the writer id this device appends under.
func NewManager(db logstore.Log, cipher *crypto.CommandCipher, appID string) *Manager {
	return &Manager{
		db:      db,
		cipher:  cipher,
		appID:   appID,
		offsets: logstore.OffsetMap{},
		state:   model.NewState(),
	}
}

// Notify re-reads the log since the last check and applies new commands.
// It reports whether state changed. On any decrypt or decode failure the
// whole pass is discarded: no command of the batch is applied and the
// offsets stay put, so a later retry replays the identical batch.
func (m *Manager) Notify() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	release, err := m.db.RLock()
	if err != nil {
		return false, err
	}
	defer release()

	offsets, err := m.db.GetOffsets()
	if err != nil {
		return false, err
	}
	if offsets.Equal(m.offsets) {
		return false, nil
	}

	records, err := m.db.ReadAll(m.offsets)
	if err != nil {
		return false, err
	}

	// Decode the full batch before mutating state, so a bad record cannot
	// leave a half-applied batch behind.
	commands := make([]model.Command, 0, len(records))
	for _, r := range records {
		plaintext, err := m.cipher.Decrypt(r.Line, r.Writer, r.Offset)
		if err != nil {
			return false, fmt.Errorf("record %s@%d: %w", r.Writer, r.Offset, err)
		}
		cmd, err := model.Parse(string(plaintext))
		if err != nil {
			return false, fmt.Errorf("record %s@%d: %w", r.Writer, r.Offset, err)
		}
		commands = append(commands, cmd)
	}
	for _, cmd := range commands {
		model.Apply(cmd, m.state)
	}

	m.offsets = offsets
	return true, nil
}

// PushCommands encrypts and appends each command line to this device's own
// segment under a single lock acquisition, at strictly increasing offsets.
// Command lines must be newline-free; they are validated before the lock
// is taken so a malformed batch never touches the log.
func (m *Manager) PushCommands(commands []string) error {
	for _, c := range commands {
		if _, err := model.Parse(c); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.db.Append(m.appID)
	if err != nil {
		return err
	}
	for _, c := range commands {
		line := m.cipher.Encrypt([]byte(c), m.appID, h.Offset())
		if err := h.Write(line); err != nil {
			h.Close()
			return err
		}
	}
	return h.Close()
}

// RenderState returns the view for activeTag against the current state.
// "Today" is computed here, not at apply time: schedule resolution changes
// as the calendar advances even when the log does not.
func (m *Manager) RenderState(activeTag string) model.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	today := time.Now().Format("2006-01-02")
	return model.Render(m.state, activeTag, today)
}

// Snapshot returns a deep copy of the current projection, for consumers
// that need the whole state (such as the SQLite exporter) rather than a
// single tag's view.
func (m *Manager) Snapshot() *model.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Offsets returns a copy of the reader's current offset map, the local
// side of a gapless check against a remote summary.
func (m *Manager) Offsets() logstore.OffsetMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offsets.Clone()
}
