package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"dronenet/internal/channel"
	"dronenet/internal/codec"
	"dronenet/internal/domain"
	"dronenet/internal/orchestrator"
	"dronenet/internal/repository"
)

// Network is the part of the orchestrator the API reads
type Network interface {
	Topology() *domain.Topology
	RunningNodes() []domain.NodeID
	Exits() []orchestrator.NodeExit
}

// ControlHandler handles control API requests
type ControlHandler struct {
	net      Network
	commands map[domain.NodeID]channel.Sender[domain.Command]
	data     map[domain.NodeID]channel.Pair[domain.Packet]
	ledger   repository.Ledger
	logger   *logrus.Entry
}

// NewControlHandler creates a control handler over the handles the
// controller took from the orchestrator
func NewControlHandler(net Network, commands map[domain.NodeID]channel.Sender[domain.Command], data map[domain.NodeID]channel.Pair[domain.Packet], logger *logrus.Entry) *ControlHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ControlHandler{
		net:      net,
		commands: commands,
		data:     data,
		logger:   logger.WithField("component", "api"),
	}
}

// SetLedger enables the run history routes
func (h *ControlHandler) SetLedger(l repository.Ledger) {
	h.ledger = l
}

// Register mounts every route on mux
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/topology", h.GetTopology)
	mux.HandleFunc("GET /api/nodes", h.ListNodes)
	mux.HandleFunc("POST /api/nodes/{id}/crash", h.CrashNode)
	mux.HandleFunc("POST /api/nodes/{id}/send", h.SendPacket)
	mux.HandleFunc("PUT /api/nodes/{id}/pdr", h.SetDropRate)
	mux.HandleFunc("PUT /api/nodes/{id}/neighbors/{nb}", h.AddNeighbor)
	mux.HandleFunc("DELETE /api/nodes/{id}/neighbors/{nb}", h.RemoveNeighbor)
	mux.HandleFunc("GET /api/runs", h.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NodeStatus reports one declared node
type NodeStatus struct {
	ID       domain.NodeID   `json:"id"`
	Kind     domain.NodeKind `json:"kind"`
	Running  bool            `json:"running"`
	Variant  string          `json:"variant,omitempty"`
	Outcome  string          `json:"outcome,omitempty"`
	Error    string          `json:"error,omitempty"`
	Lifetime string          `json:"lifetime,omitempty"`
}

// SendRequest is the body of POST /api/nodes/{id}/send
type SendRequest struct {
	SessionID uint64 `json:"session_id,omitempty"`
	Payload   string `json:"payload"`
}

// DropRateRequest is the body of PUT /api/nodes/{id}/pdr
type DropRateRequest struct {
	PacketDropRate *float64 `json:"packet_drop_rate"`
}

// GetTopology returns the validated topology in its file layout
func (h *ControlHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, codec.FromTopology(h.net.Topology()), http.StatusOK)
}

// ListNodes returns every declared node with its run state
func (h *ControlHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	running := make(map[domain.NodeID]bool)
	for _, id := range h.net.RunningNodes() {
		running[id] = true
	}
	exits := make(map[domain.NodeID]orchestrator.NodeExit)
	for _, exit := range h.net.Exits() {
		exits[exit.Node] = exit
	}

	all := h.net.Topology().All()
	nodes := make([]NodeStatus, 0, len(all))
	for _, n := range all {
		status := NodeStatus{ID: n.ID, Kind: n.Kind, Running: running[n.ID]}
		if exit, ok := exits[n.ID]; ok {
			status.Variant = exit.Variant
			status.Outcome = string(exit.Outcome)
			status.Lifetime = exit.Duration.Round(time.Millisecond).String()
			if exit.Err != nil {
				status.Error = exit.Err.Error()
			}
		}
		nodes = append(nodes, status)
	}

	h.writeJSON(w, nodes, http.StatusOK)
}

// CrashNode asks one node to stop
func (h *ControlHandler) CrashNode(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, domain.Crash())
}

// SendPacket asks a node to originate a packet
func (h *ControlHandler) SendPacket(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	h.command(w, r, domain.Command{
		Kind:   domain.CommandSend,
		Packet: &domain.Packet{SessionID: req.SessionID, Payload: []byte(req.Payload)},
	})
}

// SetDropRate changes a drone's packet drop rate
func (h *ControlHandler) SetDropRate(w http.ResponseWriter, r *http.Request) {
	var req DropRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.PacketDropRate == nil {
		h.writeError(w, "packet_drop_rate is required", "", http.StatusBadRequest)
		return
	}
	if pdr := *req.PacketDropRate; pdr < 0 || pdr > 1 {
		h.writeError(w, "packet_drop_rate must be within [0, 1]", strconv.FormatFloat(pdr, 'g', -1, 64), http.StatusBadRequest)
		return
	}

	h.command(w, r, domain.Command{Kind: domain.CommandSetPacketDropRate, PacketDropRate: *req.PacketDropRate})
}

// AddNeighbor hands node id the send endpoint of nb's data channel
func (h *ControlHandler) AddNeighbor(w http.ResponseWriter, r *http.Request) {
	nb, ok := h.nodeParam(w, r, "nb")
	if !ok {
		return
	}
	pair, ok := h.data[nb]
	if !ok {
		h.writeError(w, "Unknown neighbor", strconv.Itoa(int(nb)), http.StatusNotFound)
		return
	}

	h.command(w, r, domain.Command{Kind: domain.CommandAddSender, Neighbor: nb, Sender: pair.Sender})
}

// RemoveNeighbor makes node id forget its sender to nb
func (h *ControlHandler) RemoveNeighbor(w http.ResponseWriter, r *http.Request) {
	nb, ok := h.nodeParam(w, r, "nb")
	if !ok {
		return
	}

	h.command(w, r, domain.Command{Kind: domain.CommandRemoveSender, Neighbor: nb})
}

// ListRuns returns recorded runs, newest first
func (h *ControlHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		h.writeError(w, "No run ledger configured", "", http.StatusNotFound)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, "Invalid limit", raw, http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.ledger.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		h.writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, runs, http.StatusOK)
}

// GetRun returns one run with its node exits and event counts
func (h *ControlHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		h.writeError(w, "No run ledger configured", "", http.StatusNotFound)
		return
	}

	id := r.PathValue("id")
	run, err := h.ledger.GetRun(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, "Not found", id, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run", id).Error("Failed to get run")
		h.writeError(w, "Failed to get run", err.Error(), http.StatusInternalServerError)
		return
	}

	exits, err := h.ledger.ListNodeExits(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to list node exits", err.Error(), http.StatusInternalServerError)
		return
	}
	events, err := h.ledger.CountEvents(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to count events", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{"run": run, "exits": exits, "events": events}, http.StatusOK)
}

// command queues cmd on the node named by the {id} path parameter
func (h *ControlHandler) command(w http.ResponseWriter, r *http.Request, cmd domain.Command) {
	id, ok := h.nodeParam(w, r, "id")
	if !ok {
		return
	}
	tx, ok := h.commands[id]
	if !ok {
		h.writeError(w, "Unknown node", strconv.Itoa(int(id)), http.StatusNotFound)
		return
	}
	if !slices.Contains(h.net.RunningNodes(), id) {
		h.writeError(w, "Node not running", strconv.Itoa(int(id)), http.StatusConflict)
		return
	}

	if err := tx.Send(cmd); err != nil {
		h.writeError(w, "Command not delivered", err.Error(), http.StatusConflict)
		return
	}

	h.logger.WithFields(logrus.Fields{"node": id, "command": cmd.Kind}).Info("Command queued")
	h.writeJSON(w, map[string]any{"node": id, "command": cmd.Kind}, http.StatusAccepted)
}

func (h *ControlHandler) nodeParam(w http.ResponseWriter, r *http.Request, name string) (domain.NodeID, bool) {
	raw := r.PathValue(name)
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		h.writeError(w, "Invalid node ID", raw, http.StatusBadRequest)
		return 0, false
	}
	return domain.NodeID(n), true
}

func (h *ControlHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Warn("Failed to encode JSON")
	}
}

func (h *ControlHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.WithError(err).Warn("Failed to encode error response")
	}
}
