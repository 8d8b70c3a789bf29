package pipeline

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats describes a finished (or aborted) run.
type Stats struct {
	Records      uint64        `json:"records"`
	Bytes        uint64        `json:"bytes"` // encoded record bytes, headers included
	Instructions uint64        `json:"instructions"`
	Coalesced    uint64        `json:"coalesced"` // records folded into the previous identical one
	EmptyBlocks  uint64        `json:"empty_blocks"`
	Partial      uint64        `json:"partial_blocks"`
	CacheHits    uint64        `json:"cache_hits"`
	CacheMisses  uint64        `json:"cache_misses"`
	Reports      uint64        `json:"reports"`
	Duration     time.Duration `json:"duration"`
}

// Merge adds o to s. Durations are summed.
func (s *Stats) Merge(o Stats) {
	s.Records += o.Records
	s.Bytes += o.Bytes
	s.Instructions += o.Instructions
	s.Coalesced += o.Coalesced
	s.EmptyBlocks += o.EmptyBlocks
	s.Partial += o.Partial
	s.CacheHits += o.CacheHits
	s.CacheMisses += o.CacheMisses
	s.Reports += o.Reports
	s.Duration += o.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("%s records (%s), %s instructions, %s coalesced, %s empty, %s partial, cache %s/%s in %s",
		humanize.Comma(int64(s.Records)),
		humanize.IBytes(s.Bytes),
		humanize.Comma(int64(s.Instructions)),
		humanize.Comma(int64(s.Coalesced)),
		humanize.Comma(int64(s.EmptyBlocks)),
		humanize.Comma(int64(s.Partial)),
		humanize.Comma(int64(s.CacheHits)),
		humanize.Comma(int64(s.CacheHits+s.CacheMisses)),
		s.Duration.Round(time.Millisecond))
}
