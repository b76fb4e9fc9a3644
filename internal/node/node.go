// Package node provides the built-in node implementations and registers
// them with a factory registry.
//
// Every node runs the same loop: controller commands take priority over data
// packets, and a crash command ends the loop after a node_stopped event.
// What happens to a packet is up to the variant.
package node

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"dronenet/internal/channel"
	"dronenet/internal/domain"
	"dronenet/internal/registry"
)

// packetHandler decides what a variant does with an incoming packet
type packetHandler func(n *Node, p domain.Packet)

type sessionKey struct {
	source  domain.NodeID
	session uint64
}

// Node is a running network participant. Its state is owned by the goroutine
// executing Run.
type Node struct {
	self    domain.ParsedNode
	variant string

	events    channel.Sender[domain.Event]
	commands  channel.Receiver[domain.Command]
	data      channel.Receiver[domain.Packet]
	neighbors map[domain.NodeID]channel.Sender[domain.Packet]

	pdr      float64
	rng      *rand.Rand
	seen     map[sessionKey]struct{}
	sessions uint64
	onPacket packetHandler
	logger   *logrus.Entry
}

func newNode(spec registry.Spec, variant string, onPacket packetHandler) *Node {
	neighbors := make(map[domain.NodeID]channel.Sender[domain.Packet], len(spec.Neighbors))
	for id, tx := range spec.Neighbors {
		neighbors[id] = tx
	}
	logger := spec.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Node{
		self:      spec.Node,
		variant:   variant,
		events:    spec.Events,
		commands:  spec.Commands,
		data:      spec.Data,
		neighbors: neighbors,
		pdr:       spec.Node.PacketDropRate,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano() + int64(spec.Node.ID))),
		seen:      make(map[sessionKey]struct{}),
		onPacket:  onPacket,
		logger:    logger,
	}
}

// ID returns the node id
func (n *Node) ID() domain.NodeID {
	return n.self.ID
}

// Run processes commands and packets until a crash command arrives or the
// command channel is closed.
func (n *Node) Run() {
	n.logger.WithField("variant", n.variant).Debug("Node started")

	data := n.data
	for {
		if cmd, ok := n.commands.TryRecv(); ok {
			if !n.handleCommand(cmd) {
				return
			}
			continue
		}
		if n.commands.Closed() {
			n.stop("command channel closed")
			return
		}

		if p, ok := data.TryRecv(); ok {
			n.onPacket(n, p)
			continue
		}
		if data.Valid() && data.Closed() {
			data = channel.Receiver[domain.Packet]{}
		}

		select {
		case <-n.commands.Ready():
		case <-data.Ready():
		}
	}
}

// handleCommand applies a controller command and reports whether the node
// keeps running.
func (n *Node) handleCommand(cmd domain.Command) bool {
	switch cmd.Kind {
	case domain.CommandCrash:
		n.stop("crash")
		return false

	case domain.CommandAddSender:
		if !cmd.Sender.Valid() {
			n.logger.WithField("neighbor", cmd.Neighbor).Warn("add_sender without a sender, ignoring")
			return true
		}
		if n.data.Feeds(cmd.Sender) {
			n.logger.WithField("neighbor", cmd.Neighbor).Warn("add_sender into own data queue, ignoring")
			return true
		}
		n.neighbors[cmd.Neighbor] = cmd.Sender
		n.logger.WithField("neighbor", cmd.Neighbor).Debug("Neighbor added")

	case domain.CommandRemoveSender:
		delete(n.neighbors, cmd.Neighbor)
		n.logger.WithField("neighbor", cmd.Neighbor).Debug("Neighbor removed")

	case domain.CommandSetPacketDropRate:
		if cmd.PacketDropRate < 0 || cmd.PacketDropRate > 1 {
			n.logger.WithField("pdr", cmd.PacketDropRate).Warn("Packet drop rate out of range, ignoring")
			return true
		}
		n.pdr = cmd.PacketDropRate

	case domain.CommandSend:
		var p domain.Packet
		if cmd.Packet != nil {
			p = *cmd.Packet
		}
		n.originate(p)

	default:
		n.logger.WithField("command", cmd.Kind).Warn("Unknown command, ignoring")
	}
	return true
}

// originate stamps p as coming from this node and sends it to every neighbor
func (n *Node) originate(p domain.Packet) {
	n.sessions++
	if p.SessionID == 0 {
		p.SessionID = n.sessions
	}
	p.Source = n.self.ID
	p.Hops = []domain.NodeID{n.self.ID}

	n.markSeen(p)
	if sent := n.broadcast(p, nil); sent > 0 {
		n.emit(domain.EventPacketSent, &p, "")
	} else {
		n.emit(domain.EventPacketDropped, &p, "no neighbors")
	}
}

// broadcast sends p to every neighbor except skip and returns how many
// neighbors accepted it.
func (n *Node) broadcast(p domain.Packet, skip *domain.NodeID) int {
	sent := 0
	for id, tx := range n.neighbors {
		if skip != nil && id == *skip {
			continue
		}
		if err := tx.Send(p); err != nil {
			n.logger.WithError(err).WithField("neighbor", id).Debug("Neighbor unreachable")
			continue
		}
		sent++
	}
	return sent
}

// markSeen records p and reports whether it was new
func (n *Node) markSeen(p domain.Packet) bool {
	k := sessionKey{source: p.Source, session: p.SessionID}
	if _, dup := n.seen[k]; dup {
		return false
	}
	n.seen[k] = struct{}{}
	return true
}

func (n *Node) emit(kind domain.EventKind, p *domain.Packet, detail string) {
	ev := domain.NewEvent(kind, n.self.ID, p)
	ev.Detail = detail
	if err := n.events.Send(ev); err != nil {
		n.logger.WithError(err).WithField("event", kind).Debug("Event dropped")
	}
}

func (n *Node) stop(reason string) {
	n.emit(domain.EventNodeStopped, nil, reason)
	n.logger.WithField("reason", reason).Debug("Node stopped")
}
