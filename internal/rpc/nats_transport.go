package rpc

import (
	"context"
	"encoding/json"

	nats "github.com/nats-io/nats.go"
)

// NATSTransport implements Transport over a NATS connection (bcdctl
// run -transport nats), publishing pushes/finishes as JSON messages
// (spec §6.3 Messaging) and reusing LocalTransport's rendezvous
// bookkeeping for the blocking AwaitPushes/Pull calls on the receiving
// side.
type NATSTransport struct {
	nc    *nats.Conn
	local *LocalTransport
	subs  []*nats.Subscription
}

type wirePush struct {
	ServerID string
	Msg      PushMsg
	T        int64
}

type wireFinish struct {
	ServerID string
	BlockID  int
	T        int64
	Seg      WeightSegment
}

// NewNATSTransport subscribes to the push/finish subjects of every
// server (bcd.push.* and bcd.finish.*).
func NewNATSTransport(nc *nats.Conn) (*NATSTransport, error) {
	nt := &NATSTransport{nc: nc, local: NewLocalTransport()}

	pushSub, err := natsSubscribe(nc, "bcd.push.*", func(ctx context.Context, m *nats.Msg) {
		var w wirePush
		if err := json.Unmarshal(m.Data, &w); err != nil {
			return
		}
		_ = nt.local.Push(ctx, w.ServerID, w.Msg, w.T)
	})
	if err != nil {
		return nil, err
	}

	finSub, err := natsSubscribe(nc, "bcd.finish.*", func(ctx context.Context, m *nats.Msg) {
		var w wireFinish
		if err := json.Unmarshal(m.Data, &w); err != nil {
			return
		}
		_ = nt.local.Finish(ctx, w.ServerID, w.BlockID, w.T, w.Seg)
	})
	if err != nil {
		pushSub.Unsubscribe()
		return nil, err
	}

	nt.subs = []*nats.Subscription{pushSub, finSub}
	return nt, nil
}

func (nt *NATSTransport) Push(ctx context.Context, serverID string, msg PushMsg, t int64) error {
	data, err := json.Marshal(wirePush{ServerID: serverID, Msg: msg, T: t})
	if err != nil {
		return err
	}
	return natsPublish(ctx, nt.nc, "bcd.push."+serverID, data)
}

func (nt *NATSTransport) AwaitPushes(ctx context.Context, serverID string, blockID int, t int64, expected int) ([]PushMsg, error) {
	return nt.local.AwaitPushes(ctx, serverID, blockID, t, expected)
}

func (nt *NATSTransport) Finish(ctx context.Context, serverID string, blockID int, t int64, seg WeightSegment) error {
	data, err := json.Marshal(wireFinish{ServerID: serverID, BlockID: blockID, T: t, Seg: seg})
	if err != nil {
		return err
	}
	return natsPublish(ctx, nt.nc, "bcd.finish."+serverID, data)
}

func (nt *NATSTransport) Pull(ctx context.Context, serverID string, blockID int, t int64) (WeightSegment, error) {
	return nt.local.Pull(ctx, serverID, blockID, t)
}

// Close unsubscribes from the push/finish subjects.
func (nt *NATSTransport) Close() {
	for _, s := range nt.subs {
		_ = s.Unsubscribe()
	}
}
