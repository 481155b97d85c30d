// Package rpc carries the UPDATE_MODEL push/wait/finish/pull messages
// between workers and servers (spec §6.3 Messaging), behind a
// Transport narrow enough to run in-process or over NATS.
package rpc

import (
	"encoding/json"

	"github.com/swarmguard/bcdsolver/internal/block"
	"github.com/swarmguard/bcdsolver/internal/sentinel"
)

// PushMsg is a worker's gradient/upper-bound contribution for the
// portion of a block a single server owns. G and U may carry the NaN
// inactive-coordinate sentinel for columns the worker's active_set
// mirror already excludes (spec §4.4).
type PushMsg struct {
	WorkerID string
	BlockID  int
	KeyRange block.KeyRange
	G, U     []float64
}

// WeightSegment is the server's updated weight slice for a key-range,
// returned to pulling workers. Entries may carry the NaN
// inactive-coordinate sentinel (internal/sentinel, spec §3 I2).
type WeightSegment struct {
	KeyRange block.KeyRange
	Values   []float64
}

// nanSafeFloats is the wire encoding of a []float64 that may contain
// the NaN sentinel: encoding/json rejects NaN outright, so each NaN
// entry is carried as JSON null instead. This is the single chokepoint
// PushMsg and WeightSegment route through for (de)serialization; no
// other package needs to know the wire trick (spec §9 NaN-chokepoint
// design note).
type nanSafeFloats []float64

func (f nanSafeFloats) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(f))
	for i, v := range f {
		if sentinel.Inactive(v) {
			continue // leave out[i] nil -> JSON null
		}
		v := v
		out[i] = &v
	}
	return json.Marshal(out)
}

func (f *nanSafeFloats) UnmarshalJSON(data []byte) error {
	var in []*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make([]float64, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = sentinel.Mark()
			continue
		}
		out[i] = *v
	}
	*f = out
	return nil
}

type wirePushMsg struct {
	WorkerID string
	BlockID  int
	KeyRange block.KeyRange
	G, U     nanSafeFloats
}

func (m PushMsg) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePushMsg{WorkerID: m.WorkerID, BlockID: m.BlockID, KeyRange: m.KeyRange, G: nanSafeFloats(m.G), U: nanSafeFloats(m.U)})
}

func (m *PushMsg) UnmarshalJSON(data []byte) error {
	var w wirePushMsg
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = PushMsg{WorkerID: w.WorkerID, BlockID: w.BlockID, KeyRange: w.KeyRange, G: []float64(w.G), U: []float64(w.U)}
	return nil
}

type wireWeightSegment struct {
	KeyRange block.KeyRange
	Values   nanSafeFloats
}

func (s WeightSegment) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireWeightSegment{KeyRange: s.KeyRange, Values: nanSafeFloats(s.Values)})
}

func (s *WeightSegment) UnmarshalJSON(data []byte) error {
	var w wireWeightSegment
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = WeightSegment{KeyRange: w.KeyRange, Values: []float64(w.Values)}
	return nil
}
