package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pb-/lgtd-suite/pkg/config"
	"github.com/pb-/lgtd-suite/pkg/crypto"
	"github.com/pb-/lgtd-suite/pkg/logstore"
)

func testApp(stdin string) *app {
	return &app{
		stdin:  strings.NewReader(stdin),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func testCipher(t *testing.T, password string) *crypto.CommandCipher {
	t.Helper()
	cipher, err := crypto.NewCommandCipher(crypto.HashPassword(password))
	if err != nil {
		t.Fatal(err)
	}
	return cipher
}

// --- trimEOL tests ---

func TestTrimEOL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello\n", "hello"},
		{"hello\r\n", "hello"},
		{"hello", "hello"},
		{"\n", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := trimEOL(c.in); got != c.want {
			t.Errorf("trimEOL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// --- layout helpers ---

func TestDefaultLockPath(t *testing.T) {
	if got := defaultLockPath("/home/u/.local/share/lgtd/data"); got != "/home/u/.local/share/lgtd/lock" {
		t.Fatalf("defaultLockPath: got %q", got)
	}
	if got := defaultLockPath("/home/u/.local/share/lgtd/data/"); got != "/home/u/.local/share/lgtd/lock" {
		t.Fatalf("defaultLockPath with trailing slash: got %q", got)
	}
}

// --- password plumbing ---

func TestReadPassword_Piped(t *testing.T) {
	a := testApp("s3cret\n")
	got, err := a.readPassword("Password: ")
	if err != nil || got != "s3cret" {
		t.Fatalf("readPassword: got %q, err=%v", got, err)
	}
}

func TestReadPassword_SharesBuffer(t *testing.T) {
	a := testApp("one\ntwo\n")
	first, err := a.readPassword("#1: ")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.readPassword("#2: ")
	if err != nil {
		t.Fatal(err)
	}
	if first != "one" || second != "two" {
		t.Fatalf("got %q/%q, want one/two", first, second)
	}
}

func TestCollectKeys(t *testing.T) {
	a := testApp("alpha\nbeta\n\n")
	keys, err := a.collectKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if !bytes.Equal(keys[0], crypto.HashPassword("alpha")) || !bytes.Equal(keys[1], crypto.HashPassword("beta")) {
		t.Fatal("collected keys are not the derived password hashes")
	}
}

func TestCollectKeys_RequiresOne(t *testing.T) {
	// An empty first password is rejected, then a real one is accepted.
	a := testApp("\nalpha\n\n")
	keys, err := a.collectKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || !bytes.Equal(keys[0], crypto.HashPassword("alpha")) {
		t.Fatalf("got %d keys", len(keys))
	}
}

func TestGetKey_FromConfig(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, crypto.KeySize)
	cfg := &config.Config{AppID: "A", LocalAuth: "x", Key: hex.EncodeToString(key)}

	a := testApp("") // must not touch stdin
	got, prompted, err := a.getKey(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if prompted {
		t.Fatal("configured key should not prompt")
	}
	if !bytes.Equal(got, key) {
		t.Fatal("key mismatch")
	}
}

func TestGetKey_Prompted(t *testing.T) {
	cfg := &config.Config{AppID: "A", LocalAuth: "x"}
	a := testApp("hunter2\n")
	got, prompted, err := a.getKey(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !prompted {
		t.Fatal("missing key should prompt")
	}
	if !bytes.Equal(got, crypto.HashPassword("hunter2")) {
		t.Fatal("prompted key is not the derived password hash")
	}
}

// --- encrypt stream ---

func TestEncryptStream_RoundTrip(t *testing.T) {
	cipher := testCipher(t, "pw")
	in := "add a1 buy milk\ntag a1 todo\ndel a1\n"
	var out bytes.Buffer
	if err := encryptStream(strings.NewReader(in), &out, cipher, "W"); err != nil {
		t.Fatal(err)
	}

	want := []string{"add a1 buy milk", "tag a1 todo", "del a1"}
	var offset int64
	for i, line := range bytes.SplitAfter(out.Bytes(), []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		plaintext, err := cipher.Decrypt(line, "W", offset)
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if string(plaintext) != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, plaintext, want[i])
		}
		offset += int64(len(line))
	}
	if offset != int64(out.Len()) {
		t.Fatal("offset accounting does not cover the whole output")
	}
}

// --- dump ---

func dumpInput(t *testing.T) []logstore.Record {
	t.Helper()
	c1 := testCipher(t, "first")
	c2 := testCipher(t, "second")
	return []logstore.Record{
		{Line: c1.Encrypt([]byte("add a1 old item"), "A", 0), Writer: "A", Offset: 0},
		{Line: c2.Encrypt([]byte("add b1 new item"), "B", 0), Writer: "B", Offset: 0},
	}
}

func TestDumpRecords_AllKeys(t *testing.T) {
	var stdout, stderr bytes.Buffer
	keys := [][]byte{crypto.HashPassword("first"), crypto.HashPassword("second")}
	if code := dumpRecords(dumpInput(t), keys, false, false, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	if got := stdout.String(); got != "add a1 old item\nadd b1 new item\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestDumpRecords_Undecryptable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	keys := [][]byte{crypto.HashPassword("first")}
	code := dumpRecords(dumpInput(t), keys, false, false, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("exit code %d, want 2", code)
	}
	msg := stderr.String()
	if !strings.Contains(msg, "app_id B") || !strings.Contains(msg, "offset 0") {
		t.Fatalf("stderr does not locate the record: %s", msg)
	}
}

func TestDumpRecords_Force(t *testing.T) {
	var stdout, stderr bytes.Buffer
	keys := [][]byte{crypto.HashPassword("first")}
	if code := dumpRecords(dumpInput(t), keys, true, false, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, want 0 with force", code)
	}
	if got := stdout.String(); got != "add a1 old item\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestDumpRecords_Time(t *testing.T) {
	var stdout, stderr bytes.Buffer
	keys := [][]byte{crypto.HashPassword("first"), crypto.HashPassword("second")}
	if code := dumpRecords(dumpInput(t), keys, false, true, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	for _, line := range strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n") {
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 || !strings.Contains(fields[0], ".") {
			t.Fatalf("line %q has no timestamp prefix", line)
		}
	}
}
