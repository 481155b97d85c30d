package block

import "testing"

func TestKeyRangeIntersect(t *testing.T) {
	cases := []struct {
		name     string
		a, b     KeyRange
		wantOK   bool
		wantLo   int
		wantHi   int
	}{
		{"overlap", KeyRange{0, 10}, KeyRange{5, 15}, true, 5, 10},
		{"contained", KeyRange{0, 10}, KeyRange{2, 4}, true, 2, 4},
		{"disjoint", KeyRange{0, 10}, KeyRange{10, 20}, false, 0, 0},
		{"touching-exclusive", KeyRange{0, 5}, KeyRange{5, 5}, false, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := c.a.Intersect(c.b)
			if ok != c.wantOK {
				t.Fatalf("Intersect(%v,%v) ok=%v, want %v", c.a, c.b, ok, c.wantOK)
			}
			if ok && (got.Start != c.wantLo || got.End != c.wantHi) {
				t.Fatalf("Intersect(%v,%v) = %v, want [%d,%d)", c.a, c.b, got, c.wantLo, c.wantHi)
			}
		})
	}
}

func TestEvenBlocksCoversWithoutGaps(t *testing.T) {
	blocks := EvenBlocks(17, 4)
	if len(blocks) != 4 {
		t.Fatalf("len(blocks) = %d, want 4", len(blocks))
	}
	prevEnd := 0
	total := 0
	for i, b := range blocks {
		if b.ID != i || b.FeatureGroupID != i || b.ChannelID != i {
			t.Fatalf("block %d has mismatched ids: %+v", i, b)
		}
		if b.KeyRange.Start != prevEnd {
			t.Fatalf("block %d starts at %d, want %d (contiguous)", i, b.KeyRange.Start, prevEnd)
		}
		total += b.KeyRange.Len()
		prevEnd = b.KeyRange.End
	}
	if prevEnd != 17 {
		t.Fatalf("blocks cover up to %d, want 17", prevEnd)
	}
	if total != 17 {
		t.Fatalf("blocks cover %d total columns, want 17", total)
	}
}

func TestEvenTopologyDisjointAndCovering(t *testing.T) {
	topo := EvenTopology(10, 3)
	if len(topo.Assignments) != 3 {
		t.Fatalf("len(assignments) = %d, want 3", len(topo.Assignments))
	}
	prevEnd := 0
	for _, a := range topo.Assignments {
		if a.Range.Start != prevEnd {
			t.Fatalf("assignment %s starts at %d, want %d", a.ServerID, a.Range.Start, prevEnd)
		}
		prevEnd = a.Range.End
	}
	if prevEnd != 10 {
		t.Fatalf("topology covers up to %d, want 10", prevEnd)
	}

	hits := topo.Intersecting(KeyRange{3, 4})
	if len(hits) != 1 {
		t.Fatalf("Intersecting([3,4)) returned %d assignments, want exactly 1", len(hits))
	}

	r, ok := topo.RangeFor(hits[0].ServerID)
	if !ok || r != hits[0].Range {
		t.Fatalf("RangeFor(%s) = %v,%v, want %v,true", hits[0].ServerID, r, ok, hits[0].Range)
	}

	if _, ok := topo.RangeFor("no-such-server"); ok {
		t.Fatalf("RangeFor of unknown server unexpectedly found a range")
	}
}
