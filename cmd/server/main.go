package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"autobot/internal/adapter"
	"autobot/internal/config"
	"autobot/internal/domain"
	"autobot/internal/handler"
	"autobot/internal/hub"
	"autobot/internal/metrics"
	"autobot/internal/repository/file"
	"autobot/internal/repository/sqlite"
	"autobot/internal/service"
	"autobot/internal/watcher"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write a default config file and exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *writeConfig {
		path := *configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Default config written to %s", path)
		return
	}

	log.Println("Starting autobot server...")

	cfg, loadedFrom, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if loadedFrom != "" {
		log.Printf("Config loaded: %s", loadedFrom)
	} else {
		log.Println("No config file found, using defaults")
	}
	log.Printf("Config: %s", cfg.Summary())

	// Deployment history
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	// Credential document
	credStore := file.NewCredentialStore(cfg.Credentials.Path)

	// Initialize event bus
	eventBus := service.NewEventBus()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize SSE hub
	sseHub := hub.New()
	go sseHub.Run(ctx)

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(string(event.Type), event.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Initialize services
	credSvc := service.NewCredentialService(credStore, eventBus)

	linkLayer := adapter.NewLinkLayerSweeper(
		adapter.WithBatchSize(cfg.Discovery.ARPBatchSize),
		adapter.WithReplyWindow(cfg.Discovery.ARPTimeout.Duration()),
		adapter.WithInterface(cfg.Discovery.Interface),
		adapter.WithPrivilegedPing(cfg.Discovery.Privileged),
	)
	prober := adapter.NewProber(linkLayer, cfg.Discovery.Privileged)

	var remote service.RemoteSweeper
	if cfg.Intermediary.Enabled() {
		agent, err := adapter.NewRemoteSweepAgent(
			cfg.Intermediary.Host,
			cfg.Intermediary.Network,
			intermediaryCredentials(credSvc, cfg.Intermediary),
			adapter.WithPort(cfg.Intermediary.Port),
			adapter.WithDialTimeout(cfg.Intermediary.Timeout.Duration()),
			adapter.WithCommandTimeout(cfg.Intermediary.CommandTimeout.Duration()),
			adapter.WithOutputFormat(adapter.OutputFormat(cfg.Intermediary.Output)),
		)
		if err != nil {
			log.Fatalf("Invalid intermediary settings: %v", err)
		}
		remote = agent
		log.Printf("Remote sweep enabled: %s via %s", agent.Network(), cfg.Intermediary.Host)
	}

	discoverySvc := service.NewDiscoveryService(prober, linkLayer, remote, eventBus, service.DiscoveryOptions{
		PingTimeout:        cfg.Discovery.PingTimeout.Duration(),
		ConfirmPingTimeout: cfg.Discovery.ConfirmPingTimeout.Duration(),
		ManualPingTimeout:  cfg.Discovery.ManualPingTimeout.Duration(),
		PortTimeout:        cfg.Discovery.PortTimeout.Duration(),
		Ports:              cfg.Discovery.Ports,
		MaxTargets:         cfg.Discovery.MaxTargets,
		YieldEvery:         cfg.Discovery.YieldEvery,
	})

	devices := netconfDevices{dialer: adapter.NewNetconfDialer(
		cfg.Deployment.Port,
		cfg.Deployment.ConnectTimeout.Duration(),
		cfg.Deployment.RPCTimeout.Duration(),
	)}
	deploymentSvc := service.NewDeploymentService(devices, credSvc, repo, eventBus)

	// Announce edits made to the credential document outside the API
	if cfg.Credentials.Watch {
		if err := os.MkdirAll(filepath.Dir(cfg.Credentials.Path), 0700); err != nil {
			log.Printf("Warning: cannot create credentials directory: %v", err)
		}
		go func() {
			w := watcher.New(cfg.Credentials.Path, credSvc.NotifyExternalChange)
			if err := w.Watch(ctx); err != nil && err != context.Canceled {
				log.Printf("Credential watcher stopped: %v", err)
			}
		}()
	}

	// Initialize handlers
	scanHandler := handler.NewScanHandler(discoverySvc)
	credHandler := handler.NewCredentialHandler(credSvc)
	deployHandler := handler.NewDeploymentHandler(deploymentSvc)

	// Set up routes
	mux := http.NewServeMux()

	// Discovery
	mux.HandleFunc("POST /api/scan", scanHandler.StartScan)
	mux.HandleFunc("GET /api/scan/status", scanHandler.GetStatus)
	mux.HandleFunc("GET /api/ping/{ip}", scanHandler.Ping)

	// Credential groups
	mux.HandleFunc("GET /api/credentials", credHandler.List)
	mux.HandleFunc("POST /api/credentials", credHandler.Upsert)
	mux.HandleFunc("DELETE /api/credentials/{group_name}", credHandler.Delete)

	// Deployments
	mux.HandleFunc("POST /api/push-config", deployHandler.Push)
	mux.HandleFunc("GET /api/deployments", deployHandler.List)
	mux.HandleFunc("GET /api/deployments/{id}", deployHandler.Get)

	// SSE endpoint and metrics
	mux.Handle("GET /events", sseHub)
	mux.Handle("GET /metrics", metrics.Handler())

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// WriteTimeout stays zero: SSE streams are long lived and a push waits
	// on device RPCs
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop background work; a running scan finishes quickly once its
	// probes see the cancelled context
	stop()
	discoverySvc.Close()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// intermediaryCredentials resolves the sweep login at sweep time so a
// credential group edited through the API applies to the next scan
func intermediaryCredentials(creds *service.CredentialService, cfg config.IntermediaryConfig) adapter.CredentialSource {
	return func(ctx context.Context) (adapter.Credentials, error) {
		g, err := creds.Resolve(ctx, cfg.CredentialGroup, cfg.Username, cfg.Password)
		if err != nil {
			return adapter.Credentials{}, err
		}
		return adapter.Credentials{Username: g.Username, Password: g.Password}, nil
	}
}

// netconfDevices adapts the NETCONF dialer to the deployment service
type netconfDevices struct {
	dialer *adapter.NetconfDialer
}

func (d netconfDevices) Address(target string) string {
	return d.dialer.Address(target)
}

func (d netconfDevices) Dial(ctx context.Context, target string, creds domain.CredentialGroup) (service.DeviceSession, error) {
	session, err := d.dialer.Dial(ctx, target, adapter.Credentials{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return nil, err
	}
	return session, nil
}
