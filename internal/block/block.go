// Package block defines the feature-block and key-range types shared
// by the scheduler, workers and servers (spec §3 Block/BlockOrder, §6
// wire payload key-range).
package block

import "fmt"

// KeyRange is a half-open [Start,End) range over the global weight key
// space.
type KeyRange struct {
	Start, End int
}

// Empty reports whether the range contains no keys.
func (r KeyRange) Empty() bool { return r.Start >= r.End }

// Len returns the number of keys in the range.
func (r KeyRange) Len() int { return r.End - r.Start }

// Intersect returns the overlap of r and o, and whether it is
// non-empty.
func (r KeyRange) Intersect(o KeyRange) (KeyRange, bool) {
	lo := max(r.Start, o.Start)
	hi := min(r.End, o.End)
	if lo >= hi {
		return KeyRange{}, false
	}
	return KeyRange{Start: lo, End: hi}, true
}

func (r KeyRange) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Spec is a single feature block: a contiguous range of columns
// processed as a unit (spec GLOSSARY "Block"), plus the channel and
// feature-group ids the wire payload carries (spec §6).
type Spec struct {
	ID             int
	FeatureGroupID int
	ChannelID      int
	KeyRange       KeyRange
}

// EvenBlocks partitions p columns into exactly b contiguous blocks of
// near-equal size.
func EvenBlocks(p, b int) []Spec {
	blocks := make([]Spec, 0, b)
	base, rem := p/b, p%b
	start := 0
	for i := 0; i < b; i++ {
		size := base
		if i < rem {
			size++
		}
		end := start + size
		blocks = append(blocks, Spec{
			ID:             i,
			FeatureGroupID: i,
			ChannelID:      i,
			KeyRange:       KeyRange{Start: start, End: end},
		})
		start = end
	}
	return blocks
}
