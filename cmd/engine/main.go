package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/metrics/pkg/client/clientset/versioned"
	"k8s.io/utils/clock"

	"github.com/optiplace/optiplace-engine/internal/cache"
	"github.com/optiplace/optiplace-engine/internal/cloud"
	"github.com/optiplace/optiplace-engine/internal/config"
	"github.com/optiplace/optiplace-engine/internal/engine"
	"github.com/optiplace/optiplace-engine/internal/errors"
	"github.com/optiplace/optiplace-engine/internal/health"
	"github.com/optiplace/optiplace-engine/internal/manager"
	"github.com/optiplace/optiplace-engine/internal/observability"
	"github.com/optiplace/optiplace-engine/internal/plugin"
	"github.com/optiplace/optiplace-engine/internal/provider"
	"github.com/optiplace/optiplace-engine/internal/server"
)

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	slog.Info("optiplace-engine starting",
		"version", cfg.EngineVersion,
		"listen_port", cfg.ListenPort,
		"health_port", cfg.HealthPort,
		"cache_max_size", cfg.CacheMaxSize,
		"cache_ttl", cfg.CacheTTL,
	)

	// 3. Create shared infrastructure.
	metrics := observability.NewMetrics()
	errCollector := errors.NewCollector(clock.RealClock{})
	resultCache := cache.New(cfg.CacheMaxSize, cfg.CacheTTL, clock.RealClock{})

	registry := plugin.NewRegistry()
	registry.Subscribe(func(ev plugin.Event) {
		slog.Info("plugin lifecycle event", "event", ev.Type, "plugin", ev.Plugin, "version", ev.Version)
		metrics.PluginsEnabled.Set(float64(registry.EnabledCount()))
	})

	// 4. Load the geo-region reference table.
	regions, err := config.LoadRegions(cfg.RegionsFile)
	if err != nil {
		slog.Error("failed to load regions", "file", cfg.RegionsFile, "error", err)
		os.Exit(1)
	}

	// 5. Identify the surrounding cloud for default provider/region tagging.
	defaultProvider := cfg.DefaultProvider
	if defaultProvider == "" {
		env := cloud.Detect(ctx, cfg.CloudDetectTimeout)
		if env.Detected() {
			defaultProvider = env.Provider
		} else {
			defaultProvider = "static"
		}
	}

	// 6. Build the resource manager and register provider adapters.
	mgr := manager.New(manager.Options{
		Regions:             regions,
		SpareCapacityWeight: cfg.SpareCapacityWeight,
		GeoDistanceWeight:   cfg.GeoDistanceWeight,
		MaxConcurrentShards: cfg.MaxConcurrentShards,
		Metrics:             metrics,
		Errors:              errCollector,
	})

	static := provider.NewStatic(defaultProvider, nil, nil)
	if err := static.Initialize(ctx, nil); err != nil {
		slog.Error("failed to initialize static provider", "error", err)
		os.Exit(1)
	}
	if err := mgr.RegisterProvider(ctx, static); err != nil {
		slog.Error("failed to register static provider", "error", err)
		os.Exit(1)
	}

	if cfg.KubeAdapterEnabled {
		restCfg := buildKubeConfig()
		kubeClient := kubernetes.NewForConfigOrDie(restCfg)
		metricsClient := versioned.NewForConfigOrDie(restCfg)

		kube := provider.NewKube(cfg.KubeProviderName, kubeClient, metricsClient, nil)
		if err := kube.Initialize(ctx, nil); err != nil {
			slog.Error("failed to initialize kubernetes provider", "error", err)
			os.Exit(1)
		}
		if err := mgr.RegisterProvider(ctx, kube); err != nil {
			slog.Error("failed to register kubernetes provider", "error", err)
			os.Exit(1)
		}
		slog.Info("kubernetes provider registered", "name", cfg.KubeProviderName)
	}

	// 7. Create and initialize the engine.
	eng := engine.New(engine.Options{
		Cache:          resultCache,
		Registry:       registry,
		Collector:      metrics,
		Metrics:        metrics,
		Errors:         errCollector,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err := eng.Init(ctx); err != nil {
		slog.Error("engine initialization failed", "error", err)
		os.Exit(1)
	}

	// 8. Start the health server.
	healthSrv := health.NewServer(cfg.HealthPort, health.Options{
		Metrics:     metrics,
		Readiness:   eng,
		Cache:       eng,
		Inventory:   mgr,
		Errors:      errCollector,
		Decisions:   eng.Decisions(),
		EnableDebug: cfg.DebugEndpoints,
	})
	if err := healthSrv.Start(); err != nil {
		slog.Error("failed to start health server", "error", err)
		os.Exit(1)
	}

	// 9. Start the API server.
	apiSrv := server.NewServer(cfg.ListenPort, server.Options{
		Engine:   eng,
		Manager:  mgr,
		Registry: registry,
		APIKey:   cfg.APIKey,
	})
	if err := apiSrv.Start(); err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	slog.Info("optiplace-engine ready", "api_addr", apiSrv.Addr(), "health_addr", healthSrv.Addr())

	// 10. Block until a shutdown signal arrives.
	<-ctx.Done()

	// 11. Graceful shutdown: stop admitting requests, then drain servers.
	eng.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Stop(shutdownCtx); err != nil {
		slog.Error("api server shutdown error", "error", err)
	}
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}

	slog.Info("optiplace-engine stopped")
}

// buildKubeConfig creates a Kubernetes REST config, trying in-cluster
// config first and falling back to the kubeconfig file from $KUBECONFIG or
// the default location.
func buildKubeConfig() *rest.Config {
	cfg, err := rest.InClusterConfig()
	if err == nil {
		slog.Info("using in-cluster kubernetes config")
		return cfg
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		kubeconfig = clientcmd.RecommendedHomeFile
	}

	cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		slog.Error("failed to build kubernetes config", "error", err)
		os.Exit(1)
	}
	slog.Info("using kubeconfig file", "path", kubeconfig)
	return cfg
}
