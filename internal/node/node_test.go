package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronenet/internal/channel"
	"dronenet/internal/domain"
	"dronenet/internal/registry"
)

// harness drives a single node through its channels
type harness struct {
	t         *testing.T
	node      *Node
	commands  channel.Sender[domain.Command]
	data      channel.Sender[domain.Packet]
	events    channel.Receiver[domain.Event]
	neighbors map[domain.NodeID]channel.Receiver[domain.Packet]
	done      chan struct{}
}

func newHarness(t *testing.T, factory registry.Factory, self domain.ParsedNode) *harness {
	t.Helper()

	cmdTx, cmdRx := channel.New[domain.Command]()
	dataTx, dataRx := channel.New[domain.Packet]()
	evTx, evRx := channel.New[domain.Event]()

	h := &harness{
		t:         t,
		commands:  cmdTx,
		data:      dataTx,
		events:    evRx,
		neighbors: make(map[domain.NodeID]channel.Receiver[domain.Packet]),
		done:      make(chan struct{}),
	}
	senders := make(map[domain.NodeID]channel.Sender[domain.Packet])
	for _, nb := range self.NeighborIDs {
		tx, rx := channel.New[domain.Packet]()
		senders[nb] = tx
		h.neighbors[nb] = rx
	}

	r, err := factory(registry.Spec{
		Node:      self,
		Events:    evTx,
		Commands:  cmdRx,
		Neighbors: senders,
		Data:      dataRx,
	})
	require.NoError(t, err)
	h.node = r.(*Node)

	go func() {
		defer close(h.done)
		h.node.Run()
	}()
	t.Cleanup(h.crash)
	return h
}

func (h *harness) crash() {
	_ = h.commands.Send(domain.Crash())
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("node did not stop")
	}
}

func (h *harness) nextEvent() domain.Event {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := h.events.Recv(ctx)
	require.NoError(h.t, err)
	return ev
}

func (h *harness) received(nb domain.NodeID) domain.Packet {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := h.neighbors[nb].Recv(ctx)
	require.NoError(h.t, err)
	return p
}

func TestFloodForwardsToAllButPreviousHop(t *testing.T) {
	h := newHarness(t, NewFlood, domain.NewDrone(1, 0, 2, 3, 4))

	require.NoError(t, h.data.Send(domain.Packet{SessionID: 5, Source: 9, Hops: []domain.NodeID{9, 2}}))

	ev := h.nextEvent()
	assert.Equal(t, domain.EventPacketSent, ev.Kind)
	assert.Equal(t, domain.NodeID(1), ev.Node)
	require.NotNil(t, ev.Packet)
	assert.Equal(t, []domain.NodeID{9, 2, 1}, ev.Packet.Hops)

	for _, nb := range []domain.NodeID{3, 4} {
		p := h.received(nb)
		assert.Equal(t, uint64(5), p.SessionID)
		assert.Equal(t, []domain.NodeID{9, 2, 1}, p.Hops)
	}
	assert.Equal(t, 0, h.neighbors[2].Len())
}

func TestFloodSuppressesDuplicates(t *testing.T) {
	h := newHarness(t, NewFlood, domain.NewDrone(1, 0, 2, 3))

	p := domain.Packet{SessionID: 1, Source: 2, Hops: []domain.NodeID{2}}
	require.NoError(t, h.data.Send(p))
	require.NoError(t, h.data.Send(p))
	require.NoError(t, h.data.Send(domain.Packet{SessionID: 2, Source: 2, Hops: []domain.NodeID{2}}))

	assert.Equal(t, uint64(1), h.received(3).SessionID)
	assert.Equal(t, uint64(2), h.received(3).SessionID)
	assert.Equal(t, 0, h.neighbors[3].Len())
}

func TestFloodDropsWithRateOne(t *testing.T) {
	h := newHarness(t, NewFlood, domain.NewDrone(1, 1, 2, 3))

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, h.data.Send(domain.Packet{SessionID: i, Source: 2, Hops: []domain.NodeID{2}}))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, domain.EventPacketDropped, h.nextEvent().Kind)
	}
	assert.Equal(t, 0, h.neighbors[3].Len())
}

func TestFloodWithoutRoute(t *testing.T) {
	h := newHarness(t, NewFlood, domain.NewDrone(1, 0, 2))

	require.NoError(t, h.data.Send(domain.Packet{SessionID: 1, Source: 2, Hops: []domain.NodeID{2}}))

	ev := h.nextEvent()
	assert.Equal(t, domain.EventPacketDropped, ev.Kind)
	assert.Equal(t, "no route", ev.Detail)
}

func TestSetPacketDropRate(t *testing.T) {
	h := newHarness(t, NewFlood, domain.NewDrone(1, 0, 2, 3))

	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandSetPacketDropRate, PacketDropRate: 7}))
	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandSetPacketDropRate, PacketDropRate: 1}))
	require.NoError(t, h.data.Send(domain.Packet{SessionID: 1, Source: 2, Hops: []domain.NodeID{2}}))

	assert.Equal(t, domain.EventPacketDropped, h.nextEvent().Kind)
}

func TestSinkDelivers(t *testing.T) {
	h := newHarness(t, NewSink, domain.NewDrone(1, 0, 2))

	require.NoError(t, h.data.Send(domain.Packet{SessionID: 3, Source: 2}))

	ev := h.nextEvent()
	assert.Equal(t, domain.EventPacketDelivered, ev.Kind)
	assert.Equal(t, uint64(3), ev.Packet.SessionID)
	assert.Equal(t, 0, h.neighbors[2].Len())
}

func TestEndpointSendAndDeliver(t *testing.T) {
	h := newHarness(t, NewEndpoint, domain.NewClient(10, 1, 2))

	require.NoError(t, h.commands.Send(domain.Command{
		Kind:   domain.CommandSend,
		Packet: &domain.Packet{Payload: []byte("hi")},
	}))

	ev := h.nextEvent()
	assert.Equal(t, domain.EventPacketSent, ev.Kind)
	assert.Equal(t, domain.NodeID(10), ev.Packet.Source)
	assert.Equal(t, uint64(1), ev.Packet.SessionID)

	for _, nb := range []domain.NodeID{1, 2} {
		p := h.received(nb)
		assert.Equal(t, []byte("hi"), p.Payload)
		assert.Equal(t, []domain.NodeID{10}, p.Hops)
	}

	in := domain.Packet{SessionID: 4, Source: 20, Hops: []domain.NodeID{20, 1}}
	require.NoError(t, h.data.Send(in))
	require.NoError(t, h.data.Send(in))

	ev = h.nextEvent()
	assert.Equal(t, domain.EventPacketDelivered, ev.Kind)
	assert.Equal(t, domain.NodeID(20), ev.Packet.Source)
	assert.Equal(t, 0, h.events.Len(), "duplicate delivery reported")
}

func TestNeighborCommands(t *testing.T) {
	h := newHarness(t, NewEndpoint, domain.NewServer(20, 1))

	tx, rx := channel.New[domain.Packet]()
	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandAddSender, Neighbor: 5, Sender: tx}))
	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandRemoveSender, Neighbor: 1}))
	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandSend}))

	assert.Equal(t, domain.EventPacketSent, h.nextEvent().Kind)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID(20), p.Source)
	assert.Equal(t, 0, h.neighbors[1].Len())
}

func TestAddSenderIntoOwnQueueIgnored(t *testing.T) {
	h := newHarness(t, NewEndpoint, domain.NewServer(20, 1))

	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandRemoveSender, Neighbor: 1}))
	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandAddSender, Neighbor: 7, Sender: h.data}))
	require.NoError(t, h.commands.Send(domain.Command{Kind: domain.CommandSend}))

	ev := h.nextEvent()
	assert.Equal(t, domain.EventPacketDropped, ev.Kind)
	assert.Equal(t, "no neighbors", ev.Detail)
}

func TestCrashStopsNode(t *testing.T) {
	h := newHarness(t, NewSink, domain.NewDrone(1, 0))

	require.NoError(t, h.commands.Send(domain.Crash()))
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("node ignored crash")
	}

	ev := h.nextEvent()
	assert.Equal(t, domain.EventNodeStopped, ev.Kind)
	assert.Equal(t, "crash", ev.Detail)
}

func TestClosedCommandChannelStopsNode(t *testing.T) {
	h := newHarness(t, NewSink, domain.NewDrone(1, 0))

	h.commands.Close()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("node kept running after its command channel closed")
	}
	assert.Equal(t, domain.EventNodeStopped, h.nextEvent().Kind)
}

func TestBuiltinsRegister(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, RegisterBuiltins(reg))

	assert.Equal(t, []string{VariantFlood, VariantSink}, reg.Variants(domain.NodeKindDrone))
	assert.Equal(t, []string{VariantEndpoint}, reg.Variants(domain.NodeKindClient))
	assert.Equal(t, []string{VariantEndpoint}, reg.Variants(domain.NodeKindServer))

	assert.Error(t, RegisterBuiltins(reg), "second registration must collide")
}
