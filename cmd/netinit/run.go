package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dronenet/internal/bridge"
	"dronenet/internal/config"
	"dronenet/internal/domain"
	"dronenet/internal/handler"
	"dronenet/internal/hub"
	"dronenet/internal/metrics"
	"dronenet/internal/node"
	"dronenet/internal/orchestrator"
	"dronenet/internal/registry"
	"dronenet/internal/repository"
	"dronenet/internal/repository/sqlite"
)

type runOptions struct {
	configPath  string
	topology    string
	selection   selectionFlag
	dbPath      string
	metricsAddr string
	sseAddr     string
	publishAddr string
	apiAddr     string
	timeout     time.Duration
	duration    time.Duration
	ping        bool
}

func runCommand(args []string) error {
	opts := runOptions{selection: selectionFlag{}}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "config file (default: search "+config.EnvConfigPath+", "+config.ConfigFileName+" next to the topology, ./"+config.ConfigFileName+", XDG dirs)")
	fs.StringVar(&opts.topology, "topology", "", "topology file, overrides topology.path")
	fs.Var(opts.selection, "select", "restrict a kind to variants, e.g. drone=flood,sink (repeatable)")
	fs.StringVar(&opts.dbPath, "db", "", "run ledger database, overrides database.path")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	fs.StringVar(&opts.sseAddr, "sse-addr", "", "serve /events on this address")
	fs.StringVar(&opts.publishAddr, "publish-addr", "", "publish events on a nanomsg PUB socket, e.g. tcp://127.0.0.1:9095")
	fs.StringVar(&opts.apiAddr, "api-addr", "", "serve the control API on this address")
	fs.DurationVar(&opts.timeout, "shutdown-timeout", 0, "cooperative shutdown deadline")
	fs.DurationVar(&opts.duration, "duration", 0, "stop the network after this long (0 waits for a signal)")
	fs.BoolVar(&opts.ping, "ping", false, "have every client originate one packet after start")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 1 && opts.topology == "" {
		opts.topology = fs.Arg(0)
	}

	cfg, cfgPath, err := loadConfig(opts)
	if err != nil {
		return err
	}

	base, err := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := logrus.NewEntry(base)
	if cfgPath != "" {
		logger.WithField("path", cfgPath).Debug("Config loaded")
	}
	logger.Debug(cfg.Summary())

	if cfg.Topology.Path == "" {
		return errors.New("no topology given (use -topology or topology.path)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	return execute(ctx, cfg, opts.ping, logger)
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(opts runOptions) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if opts.configPath != "" {
		cfg, path, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, path, err = config.Load(opts.topology)
	}
	if err != nil {
		return nil, path, err
	}

	if opts.topology != "" {
		cfg.Topology.Path = opts.topology
	}
	if len(opts.selection) > 0 {
		cfg.Selection = opts.selection
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.sseAddr != "" {
		cfg.Events.SSEAddr = opts.sseAddr
	}
	if opts.publishAddr != "" {
		cfg.Events.PublishAddr = opts.publishAddr
	}
	if opts.apiAddr != "" {
		cfg.API.Addr = opts.apiAddr
	}
	if opts.timeout > 0 {
		cfg.Shutdown.Timeout = config.Duration(opts.timeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// execute runs one network to completion with the CLI as its controller
func execute(ctx context.Context, cfg *config.Config, ping bool, logger *logrus.Entry) error {
	sel, err := registry.ParseSelection(cfg.Selection)
	if err != nil {
		return err
	}

	reg := registry.New(logger)
	if err := node.RegisterBuiltins(reg); err != nil {
		return err
	}

	m := metrics.NewRegistry()
	orch, err := orchestrator.Load(cfg.Topology.Path, reg,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
		orchestrator.WithShutdownTimeout(cfg.Shutdown.Timeout.Duration()),
	)
	if err != nil {
		return err
	}

	// The CLI is the controller: it takes every handle before Start
	data := orch.DataChannels()
	commands := orch.CommandSenders()
	events := orch.EventReceiver()
	logger.WithField("channels", len(data)).Debug("Data channels taken")

	var ledger repository.Ledger
	var runID string
	if cfg.Database.Path != "" {
		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer repo.Close()

		run := &repository.Run{
			TopologyPath:   cfg.Topology.Path,
			TopologyDigest: domain.Digest(orch.Topology()),
			Nodes:          orch.Topology().Len(),
			Selection:      cfg.Selection,
			StartedAt:      time.Now(),
		}
		if err := repo.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		ledger, runID = repo, run.ID
		logger = logger.WithField("run", runID)
	}

	h := hub.New(logger)
	h.Handle(func(ev domain.Event) { m.RecordEvent(string(ev.Kind)) })
	h.Handle(logEvent(logger))
	if ledger != nil {
		h.Handle(func(ev domain.Event) {
			if err := ledger.RecordEvent(context.Background(), runID, ev); err != nil {
				logger.WithError(err).Warn("Failed to record event")
			}
		})
	}
	if cfg.Events.PublishAddr != "" {
		pub, err := bridge.NewPublisher(cfg.Events.PublishAddr, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		h.Handle(pub.Handle)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go h.Run(hubCtx)

	pumpCtx, stopPump := context.WithCancel(context.Background())
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		if err := h.Pump(pumpCtx, events); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Warn("Event pump stopped")
		}
	}()

	api := handler.NewControlHandler(orch, commands, data, logger)
	if ledger != nil {
		api.SetLedger(ledger)
	}
	servers := serveHTTP(cfg, m, h, api, logger)

	if ping {
		for _, c := range orch.Topology().Clients {
			cmd := domain.Command{Kind: domain.CommandSend, Packet: &domain.Packet{Payload: []byte("ping")}}
			if err := commands[c.ID].Send(cmd); err != nil {
				logger.WithError(err).WithField("node", c.ID).Warn("Ping not queued")
			}
		}
	}

	exits, runErr := orch.Run(ctx, sel)

	// Let the pump drain whatever the nodes emitted before they stopped
	stopPump()
	<-pumped
	stopHub()
	shutdownHTTP(servers, logger)

	status := runStatus(ctx, runErr)
	if ledger != nil {
		for _, exit := range exits {
			rec := repository.NodeExit{
				Node:     exit.Node,
				Kind:     exit.Kind,
				Variant:  exit.Variant,
				Outcome:  string(exit.Outcome),
				Duration: exit.Duration,
			}
			if exit.Err != nil {
				rec.Error = exit.Err.Error()
			}
			if err := ledger.RecordNodeExit(context.Background(), runID, rec); err != nil {
				logger.WithError(err).Warn("Failed to record node exit")
			}
		}
		if err := ledger.FinishRun(context.Background(), runID, status); err != nil {
			logger.WithError(err).Warn("Failed to finish run")
		}
	}

	panicked := 0
	for _, exit := range exits {
		if exit.Outcome == orchestrator.OutcomePanicked {
			panicked++
		}
	}
	logger.WithFields(logrus.Fields{
		"status":   status,
		"exits":    len(exits),
		"panicked": panicked,
	}).Info("Network finished")

	return runErr
}

// runStatus maps how Run returned onto the ledger status
func runStatus(ctx context.Context, err error) repository.RunStatus {
	switch {
	case errors.Is(err, orchestrator.ErrShutdownTimeout):
		return repository.RunStatusTimedOut
	case err != nil:
		return repository.RunStatusFailed
	case ctx.Err() != nil:
		return repository.RunStatusStopped
	}
	return repository.RunStatusCompleted
}

func logEvent(logger *logrus.Entry) hub.Handler {
	return func(ev domain.Event) {
		fields := logrus.Fields{"node": ev.Node, "kind": ev.Kind}
		if ev.Packet != nil {
			fields["session"] = ev.Packet.SessionID
			fields["source"] = ev.Packet.Source
			fields["hops"] = len(ev.Packet.Hops)
		}
		if ev.Detail != "" {
			fields["detail"] = ev.Detail
		}
		logger.WithFields(fields).Debug("Event")
	}
}

// serveHTTP starts one server per distinct address for /metrics, /events
// and the control API
func serveHTTP(cfg *config.Config, m *metrics.Registry, h *hub.Hub, api *handler.ControlHandler, logger *logrus.Entry) []*http.Server {
	muxes := make(map[string]*http.ServeMux)
	mux := func(addr string) *http.ServeMux {
		if _, ok := muxes[addr]; !ok {
			muxes[addr] = http.NewServeMux()
		}
		return muxes[addr]
	}
	if cfg.Metrics.Addr != "" {
		mux(cfg.Metrics.Addr).Handle("GET /metrics", m.Handler())
	}
	if cfg.Events.SSEAddr != "" {
		mux(cfg.Events.SSEAddr).Handle("GET /events", h)
	}
	if cfg.API.Addr != "" {
		api.Register(mux(cfg.API.Addr))
	}

	var servers []*http.Server
	for addr, routes := range muxes {
		server := &http.Server{
			Addr:        addr,
			Handler:     routes,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		}
		go func() {
			logger.WithField("addr", addr).Info("HTTP listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).WithField("addr", addr).Error("HTTP server error")
			}
		}()
		servers = append(servers, server)
	}
	return servers
}

func shutdownHTTP(servers []*http.Server, logger *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).WithField("addr", server.Addr).Warn("HTTP shutdown error")
		}
	}
}
