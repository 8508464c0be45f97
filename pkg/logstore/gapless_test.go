package logstore

import "testing"

// The three acceptance vectors below are load-bearing: the decision rule
// for unequal offsets is a policy choice and these pin it exactly.

func gaplessLocal() OffsetMap {
	return OffsetMap{"ab": 139, "Qi": 89}
}

func TestIsGapless_RemoteCovered(t *testing.T) {
	remote := RemoteSummary{
		"9p": {Offset: 0, Fingerprint: "foo"},
		"ab": {Offset: 139, Fingerprint: "foo"},
		"Qi": {Offset: 80, Fingerprint: "foo"},
	}
	if !IsGapless(gaplessLocal(), remote) {
		t.Fatal("remote entirely within local knowledge must be gapless")
	}
}

func TestIsGapless_UnknownWriterWithHistory(t *testing.T) {
	remote := RemoteSummary{
		"9p": {Offset: 1, Fingerprint: "foo"},
		"ab": {Offset: 139, Fingerprint: "foo"},
		"Qi": {Offset: 80, Fingerprint: "foo"},
	}
	if IsGapless(gaplessLocal(), remote) {
		t.Fatal("nonzero offset for a never-seen writer is an unrecoverable prefix gap")
	}
}

func TestIsGapless_KnownWriterAhead(t *testing.T) {
	remote := RemoteSummary{
		"9p": {Offset: 0, Fingerprint: "foo"},
		"ab": {Offset: 139, Fingerprint: "foo"},
		"Qi": {Offset: 4880, Fingerprint: "foo"},
	}
	if IsGapless(gaplessLocal(), remote) {
		t.Fatal("remote ahead of local consumption must fail the check")
	}
}

func TestIsGapless_EmptyRemote(t *testing.T) {
	if !IsGapless(gaplessLocal(), RemoteSummary{}) {
		t.Fatal("an empty remote view claims nothing and is trivially gapless")
	}
}

func TestIsGapless_EqualOffsets(t *testing.T) {
	remote := RemoteSummary{
		"ab": {Offset: 139, Fingerprint: "x"},
		"Qi": {Offset: 89, Fingerprint: "y"},
	}
	if !IsGapless(gaplessLocal(), remote) {
		t.Fatal("equal offsets on both sides are always safe")
	}
}
