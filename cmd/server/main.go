package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	consul "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"souls/internal/api"
	"souls/internal/cluster"
	"souls/internal/config"
	"souls/internal/events"
	"souls/internal/game/card"
	"souls/internal/lobby"
	"souls/internal/logging"
	"souls/internal/network"
	"souls/internal/protocol"
	"souls/internal/router"
	"souls/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("server exited", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run wires the server and blocks until a signal or a listener failure.
// Every setup error is returned so deferred cleanup still runs.
func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("config loaded",
		zap.String("service", cfg.ServiceName),
		zap.String("listen", cfg.ListenAddr),
		zap.String("consul", cfg.ConsulAddr),
		zap.String("nats", cfg.NATSURL),
	)

	// ============================================================================
	// Cluster and card catalog
	// ============================================================================
	var consulClient *consul.Client
	if cfg.ConsulAddr != "" {
		client, err := cluster.NewConsulClient(cfg.ConsulAddr, logger.Named("consul"))
		if err != nil {
			return fmt.Errorf("connect to consul: %w", err)
		}
		consulClient = client
	}

	catalog, err := loadCatalog(cfg, consulClient, logger)
	if err != nil {
		return fmt.Errorf("load card catalog: %w", err)
	}
	logger.Info("card catalog loaded", zap.Int("templates", catalog.Size()), zap.Int("deck_size", catalog.DeckSize()))

	registry := session.NewRegistry()
	health := api.NewHealth()
	health.Add("catalog", api.CatalogCheck(catalog))
	health.Add("sessions", api.SessionsCheck(registry))

	// ============================================================================
	// Events
	// ============================================================================
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nats, err := events.ConnectNATS(cfg.NATSURL, cfg.ServiceName, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		health.Add("nats", nats.Healthy)
		publisher = nats
	}
	defer publisher.Close()

	// ============================================================================
	// Sessions, lobby and routing
	// ============================================================================
	opts := network.DefaultOptions()
	opts.Policy = cfg.Policy()
	conns := network.NewManager(protocol.JSONCodec{}, opts, logger)

	lobbyMgr := lobby.NewManager(cfg.Lobby(), lobby.Deps{
		Registry: registry,
		Catalog:  catalog,
		Out:      conns,
		Events:   publisher,
		Log:      logger,
	})
	conns.SetHandler(router.New(conns, lobbyMgr, registry, cfg.EnqueueTimeout, logger))
	defer func() {
		for _, r := range lobbyMgr.Rooms() {
			_, _ = lobbyMgr.DestroyRoom(r.ID)
		}
	}()

	sweeper, err := lobby.StartSweeper(cfg.SweepSchedule, lobbyMgr, logger)
	if err != nil {
		return fmt.Errorf("start room sweeper: %w", err)
	}
	defer func() { <-sweeper.Stop().Done() }()

	// ============================================================================
	// HTTP surface
	// ============================================================================
	server := network.NewServer(cfg.ListenAddr, conns, logger)
	api.RegisterHealth(server.Router(), health)
	api.RegisterRoutes(server.Router(), lobbyMgr, conns, api.CounterFunc(registry.Len))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("http shutdown", zap.Error(err))
		}
	}()

	if consulClient != nil {
		serviceID, err := cluster.RegisterService(consulClient, cluster.Registration{Name: cfg.ServiceName, Port: cfg.ServicePort})
		if err != nil {
			return fmt.Errorf("register in consul: %w", err)
		}
		logger.Info("registered in consul", zap.String("service_id", serviceID))
		defer func() {
			if err := cluster.Deregister(consulClient, serviceID); err != nil {
				logger.Warn("consul deregistration", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen() }()

	// ============================================================================
	// Shutdown
	// ============================================================================
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}
}

// loadCatalog prefers the Consul KV copy, then a file, then the embedded
// default.
func loadCatalog(cfg *config.Config, client *consul.Client, logger *zap.Logger) (*card.Catalog, error) {
	if client != nil && cfg.ConsulCatalogKey != "" {
		raw, err := cluster.LoadCatalogKV(client, cfg.ConsulCatalogKey)
		if err == nil {
			return card.Parse(raw)
		}
		logger.Warn("catalog not in consul, falling back", zap.String("key", cfg.ConsulCatalogKey), zap.Error(err))
	}
	if cfg.CatalogPath != "" {
		return card.Load(cfg.CatalogPath)
	}
	return card.Default()
}
