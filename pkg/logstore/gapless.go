package logstore

// RemoteExtent is one writer's extent as reported by a remote party: the
// segment length it claims to hold and an opaque content fingerprint.
type RemoteExtent struct {
	Offset      int64  `json:"offset"`
	Fingerprint string `json:"fingerprint"`
}

// RemoteSummary describes a remote party's knowledge of every writer's
// segment at a point in time.
type RemoteSummary map[string]RemoteExtent

// IsGapless decides whether remote can be trusted as a description of
// "what exists" without the local reader silently skipping history. The
// remote view is gapless iff, for every writer it reports, the locally
// consumed offset covers the remote-reported one (writers never observed
// locally count as zero). A remote offset beyond local knowledge implies a
// prefix this reader has not seen and may never be able to discover.
func IsGapless(local OffsetMap, remote RemoteSummary) bool {
	for writer, extent := range remote {
		if extent.Offset > local[writer] {
			return false
		}
	}
	return true
}
