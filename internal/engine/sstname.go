package engine

import (
	"fmt"
	"regexp"
	"strconv"
)

// sstFilePattern matches exactly the "sst-<digits>.dat" names the engine
// itself produces, excluding the ".tmp" staging names flush() uses while
// a file is still being written.
var sstFilePattern = regexp.MustCompile(`^sst-(\d+)\.dat$`)

// sstIDWidth zero-pads SST ids so that lexicographic filename ordering
// equals numeric id ordering (spec §4.4: "sort by filename lexicographically
// ... yields oldest-first creation order"), for ids up to the full range
// of a uint64.
const sstIDWidth = 20

func sstFileName(id uint64) string {
	return fmt.Sprintf("sst-%0*d.dat", sstIDWidth, id)
}

func parseSSTID(name string) (uint64, bool) {
	m := sstFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
