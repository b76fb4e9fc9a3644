package fabric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronenet/internal/domain"
)

func testTopology() *domain.Topology {
	return domain.NewTopology(
		[]domain.ParsedNode{
			domain.NewDrone(1, 0, 2, 3, 10),
			domain.NewDrone(2, 0, 1, 20),
			domain.NewDrone(3, 0, 1, 20),
		},
		[]domain.ParsedNode{domain.NewClient(10, 1)},
		[]domain.ParsedNode{domain.NewServer(20, 2, 3)},
	)
}

func TestBuildAllocatesPerNode(t *testing.T) {
	topo := testTopology()
	set := Build(topo)

	assert.Len(t, set.DataChannels(), topo.Len())
	assert.Len(t, set.CommandSenders(), topo.Len())
	assert.Equal(t, topo.Len(), set.Len())
	assert.True(t, set.EventReceiver().Valid())

	for _, id := range topo.IDs() {
		_, ok := set.DataChannels()[id]
		assert.True(t, ok, "missing data channel for %d", id)
	}
}

func TestNeighborSendersFeedNeighborReceivers(t *testing.T) {
	topo := testTopology()
	set := Build(topo)

	drone1, _ := topo.Lookup(1)
	senders, err := set.BindSenders(drone1)
	require.NoError(t, err)
	require.Len(t, senders, 3)

	data := set.DataChannels()
	for nb, tx := range senders {
		assert.True(t, data[nb].Receiver.Feeds(tx), "sender for %d feeds the wrong queue", nb)
	}

	require.NoError(t, senders[10].Send(domain.Packet{SessionID: 7, Source: 1}))
	ep, err := set.Endpoints(10)
	require.NoError(t, err)

	got, err := ep.Data.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.SessionID)
}

func TestEndpointsShareEventChannel(t *testing.T) {
	set := Build(testTopology())

	a, err := set.Endpoints(1)
	require.NoError(t, err)
	b, err := set.Endpoints(20)
	require.NoError(t, err)

	require.NoError(t, a.Events.Send(domain.NewEvent(domain.EventPacketSent, 1, nil)))
	require.NoError(t, b.Events.Send(domain.NewEvent(domain.EventPacketSent, 20, nil)))
	assert.Equal(t, 2, set.EventReceiver().Len())
}

func TestCommandSendersReachNode(t *testing.T) {
	set := Build(testTopology())

	require.NoError(t, set.CommandSenders()[3].Send(domain.Crash()))
	ep, err := set.Endpoints(3)
	require.NoError(t, err)

	cmd, ok := ep.Commands.TryRecv()
	require.True(t, ok)
	assert.Equal(t, domain.CommandCrash, cmd.Kind)
}

func TestMissingChannel(t *testing.T) {
	set := Build(testTopology())

	_, err := set.BindSenders(domain.NewDrone(1, 0, 99))
	assert.ErrorIs(t, err, ErrChannelNotFound)

	var mce *MissingChannelError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, domain.NodeID(99), mce.Node)

	_, err = set.Endpoints(42)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestClearKeepsControllerHandles(t *testing.T) {
	set := Build(testTopology())
	set.Clear()

	assert.Empty(t, set.DataChannels())
	assert.Len(t, set.CommandSenders(), 5)
	assert.True(t, set.EventReceiver().Valid())

	_, err := set.Endpoints(1)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestDataChannelsReturnsCopy(t *testing.T) {
	set := Build(testTopology())

	m := set.DataChannels()
	delete(m, 1)
	assert.Len(t, set.DataChannels(), 5)
}
