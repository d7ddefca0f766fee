package migration

import "hash/fnv"

// stickyHash deterministically maps (migration, feature, identifier)
// to a bucket, so a given identifier always lands in the same bucket
// across calls and process restarts. No non-cryptographic hashing
// library appears anywhere in the examined pack; FNV-1a from the
// standard library is the narrowest tool for a bucket assignment that
// needs determinism, not collision resistance.
func stickyHash(migrationID, feature, identifier string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(migrationID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(feature))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(identifier))
	return h.Sum32()
}
