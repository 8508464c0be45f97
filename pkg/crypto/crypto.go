// Package crypto implements the authenticated record cipher for log lines.
//
// Every record is AES-256-GCM encrypted and bound to its writer id and byte
// offset: both values go into the additional authenticated data, so a valid
// ciphertext cannot be replayed under another writer or at a shifted
// position. The nonce is derived deterministically from (writer, offset,
// wall-clock time); offsets strictly increase per writer under the log
// store's append-only discipline, so nonces never repeat under one key.
//
// The wall-clock component is stored in the clear at the front of each
// record so inspection tooling can recover write times without the key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/scrypt"
)

// KeySize is the symmetric key length in bytes.
const KeySize = 32

const (
	nonceSize = 12 // standard GCM nonce
	timeSize  = 8  // big-endian unix microseconds, leading part of the nonce
)

// ErrAuthentication is returned when a record cannot be authenticated:
// wrong key, tampered ciphertext, or a writer/offset binding mismatch.
var ErrAuthentication = errors.New("record authentication failed")

// kdfSalt is fixed: the same password must derive the same key on every
// device, with no shared state beyond the password itself.
var kdfSalt = []byte("lgtd.command-log.v1")

// HashPassword derives the symmetric key from a password via scrypt.
func HashPassword(password string) []byte {
	key, err := scrypt.Key([]byte(password), kdfSalt, 1<<15, 8, 1, KeySize)
	if err != nil {
		// Parameters are compile-time constants; scrypt.Key only fails on
		// invalid parameters.
		panic(err)
	}
	return key
}

// CommandCipher encrypts and decrypts individual log lines. Construct it
// once per key and reuse it across records.
type CommandCipher struct {
	aead cipher.AEAD
}

// NewCommandCipher builds a cipher for a KeySize-byte key.
func NewCommandCipher(key []byte) (*CommandCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CommandCipher{aead: aead}, nil
}

// Encrypt seals one plaintext command into a complete log line, including
// the trailing newline. writer and offset must be the segment the line is
// about to be appended to and its pre-write length.
func (c *CommandCipher) Encrypt(plaintext []byte, writer string, offset int64) []byte {
	return c.encryptAt(plaintext, writer, offset, time.Now())
}

func (c *CommandCipher) encryptAt(plaintext []byte, writer string, offset int64, at time.Time) []byte {
	nonce := makeNonce(writer, offset, at)
	sealed := c.aead.Seal(nil, nonce, plaintext, binding(writer, offset))

	raw := make([]byte, 0, nonceSize+len(sealed))
	raw = append(raw, nonce...)
	raw = append(raw, sealed...)

	line := make([]byte, base64.StdEncoding.EncodedLen(len(raw))+1)
	base64.StdEncoding.Encode(line, raw)
	line[len(line)-1] = '\n'
	return line
}

// Decrypt opens one log line. It fails with ErrAuthentication when the key
// is wrong, the line was altered, or writer/offset differ from the values
// bound at encryption time. No plaintext is ever returned on failure.
func (c *CommandCipher) Decrypt(line []byte, writer string, offset int64) ([]byte, error) {
	raw, err := decodeLine(line)
	if err != nil {
		return nil, err
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, binding(writer, offset))
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// ExtractTime recovers the embedded wall-clock time of a record without
// the key. Diagnostics only; the value is as trustworthy as the writer.
func ExtractTime(line []byte) (time.Time, error) {
	raw, err := decodeLine(line)
	if err != nil {
		return time.Time{}, err
	}
	micros := int64(binary.BigEndian.Uint64(raw[:timeSize]))
	return time.UnixMicro(micros).UTC(), nil
}

// decodeLine strips the trailing newline and base64-decodes the record.
// Any malformation is an authentication failure: a bit flip anywhere in
// the line must never surface as something other than ErrAuthentication.
func decodeLine(line []byte) ([]byte, error) {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(raw, line)
	if err != nil || n < nonceSize {
		return nil, ErrAuthentication
	}
	return raw[:n], nil
}

// makeNonce derives the GCM nonce: 8 bytes of unix-microsecond time
// followed by 4 bytes of the binding digest. Time gives uniqueness across
// writers, the digest ties the remaining bits to (writer, offset).
func makeNonce(writer string, offset int64, at time.Time) []byte {
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint64(nonce[:timeSize], uint64(at.UnixMicro()))
	digest := sha256.Sum256(binding(writer, offset))
	copy(nonce[timeSize:], digest[:nonceSize-timeSize])
	return nonce
}

// binding is the additional authenticated data: writer id followed by the
// big-endian byte offset.
func binding(writer string, offset int64) []byte {
	b := make([]byte, 0, len(writer)+8)
	b = append(b, writer...)
	b = binary.BigEndian.AppendUint64(b, uint64(offset))
	return b
}
