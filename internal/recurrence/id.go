package recurrence

import (
	"hash/fnv"
	"strconv"
)

// SeriesID is the 32-bit FNV-1a hash of the key's canonical string in base 36.
// Calendar exports use it as an event UID, so it must stay stable.
func SeriesID(key GroupKey) string {
	return hashID(key.String())
}

func hashID(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}
