package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumen/lumen/config"
	"github.com/lumen/lumen/pkg/api"
	"github.com/lumen/lumen/pkg/cache"
	"github.com/lumen/lumen/pkg/catalog"
	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/logger"
	"github.com/lumen/lumen/pkg/media"
	"github.com/lumen/lumen/pkg/metrics"
	"github.com/lumen/lumen/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	logLevel = flag.String("log-level", "", "Override log level")

	// One-shot pipeline work
	homeLink  = flag.String("home", "", "Catalog home document to fetch and validate")
	imageLink = flag.String("image", "", "Image to fetch and decode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting Lumen",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Metrics
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)

	// Media cache
	var mediaCache *cache.Cache
	if cfg.Cache.Enabled {
		mediaCache, err = cache.Open(cache.Config{
			Path:          cfg.Cache.Path,
			SyncWrites:    cfg.Cache.SyncWrites,
			TTL:           cfg.Cache.TTL,
			MaxEntryBytes: cfg.Cache.MaxEntryBytes,
		})
		if err != nil {
			log.Error("Failed to open media cache", "error", err)
			os.Exit(1)
		}
		defer mediaCache.Close()
		log.Info("Opened media cache", "path", cfg.Cache.Path)
	}

	// Pipeline: one consumer loop, one reactor per worker kind.
	loop := dispatch.NewLoop()

	fetchReactor := fetch.New(fetch.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.Fetch.Timeout,
		SpoolDir:      cfg.Fetch.SpoolDir,
		PollInterval:  cfg.Fetch.PollInterval,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		Burst:         cfg.Fetch.Burst,
		MaxCacheBody:  cfg.Fetch.MaxCacheBody,
	}, loop)
	fetchReactor.SetLogger(log.With("component", "fetch"))
	fetchReactor.SetMetrics(metricsManager)
	if mediaCache != nil {
		fetchReactor.SetCache(mediaCache)
	}

	decodeReactor := decode.New(loop)
	decodeReactor.SetLogger(log.With("component", "decode"))
	decodeReactor.SetMetrics(metricsManager)

	fetchReactor.Start()
	decodeReactor.Start()

	pipe := &media.Pipeline{Fetch: fetchReactor, Decode: decodeReactor, Loop: loop}

	// Debug server carries the scrape endpoint when enabled; otherwise a
	// standalone metrics server is started.
	var debugServer *api.Server
	if cfg.Debug.Enabled {
		var handler http.Handler
		if metricsManager.Enabled() {
			handler = metricsManager.Handler()
		}
		addr := fmt.Sprintf("%s:%d", cfg.Debug.Host, cfg.Debug.Port)
		debugServer = api.NewServer(addr, log.With("component", "api"), api.Deps{
			Fetch:   fetchReactor,
			Decode:  decodeReactor,
			Metrics: handler,
		})
		go func() {
			if err := debugServer.Start(); err != nil {
				log.Error("Debug server error", "error", err)
			}
		}()
	} else if metricsManager.Enabled() {
		go func() {
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil && err != http.ErrServerClosed {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Hot-reload the log level on config file changes.
	watcher := startWatcher(ctx, *configPath, cfg, log)
	if watcher != nil {
		defer watcher.Stop()
	}

	// Launch the requested front-ends and pump the consumer loop.
	outstanding := launchFrontEnds(pipe, log)

	runConsumerLoop(loop, sigChan, outstanding, log)

	// Graceful shutdown: servers first, then the reactors.
	if debugServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := debugServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down debug server", "error", err)
		}
		shutdownCancel()
	}

	log.Info("Stopping reactors")
	fetchReactor.Stop()
	decodeReactor.Stop()

	log.Info("Lumen stopped gracefully")
}

// launchFrontEnds starts a Query and/or Image per the CLI flags and
// returns a countdown of unsettled front-ends. Nil means service mode:
// nothing launched, run until a signal arrives.
func launchFrontEnds(pipe *media.Pipeline, log logger.Logger) *int {
	count := 0

	if *homeLink != "" {
		count++
		q := media.NewQuery(pipe, *homeLink, catalog.KindHome)
		q.Finished.Connect(func(doc *catalog.Document) {
			count--
			log.Info("Catalog home validated",
				"title", doc.Home.Title,
				"links", len(doc.Home.Links),
			)
			q.Close()
		})
		q.Failed.Connect(func(msg string) {
			count--
			log.Error("Catalog home failed", "error", msg)
			q.Close()
		})
		q.Launch()
	}

	if *imageLink != "" {
		count++
		im := media.NewImage(pipe, *imageLink)
		im.Finished.Connect(func(p *decode.Pixmap) {
			count--
			log.Info("Image decoded",
				"width", p.Width,
				"height", p.Height,
				"bytes", len(p.Pix),
			)
			im.Close()
		})
		im.Failed.Connect(func(msg string) {
			count--
			log.Error("Image failed", "error", msg)
			im.Close()
		})
		im.Launch()
	}

	if count == 0 {
		return nil
	}
	return &count
}

// runConsumerLoop is the single consumer context: it drains one posted
// callback per iteration and never blocks on a worker. In one-shot mode
// it returns when every front-end has settled; in service mode it runs
// until a signal arrives.
func runConsumerLoop(loop *dispatch.Loop, sigChan <-chan os.Signal, outstanding *int, log logger.Logger) {
	for {
		if loop.DrainOne() {
			if outstanding != nil && *outstanding == 0 {
				// Flush whatever was posted behind the last completion.
				for loop.DrainOne() {
				}
				return
			}
			continue
		}

		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", "signal", sig.String())
			return
		case <-loop.Wake():
		}
	}
}

// startWatcher wires config hot-reload when a config file is in use.
func startWatcher(ctx context.Context, path string, cfg *config.Config, log logger.Logger) *config.Watcher {
	if path == "" {
		return nil
	}

	watcher, err := config.NewWatcher(path, config.NewLoader())
	if err != nil {
		log.Warn("Config watching disabled", "error", err)
		return nil
	}

	current := config.ExtractHotReloadable(cfg)
	watcher.OnChange(func(next *config.Config) {
		reloaded := config.ExtractHotReloadable(next)
		if !current.Changed(reloaded) {
			return
		}
		log.Info("Applying hot-reloaded configuration", "log_level", reloaded.LogLevel)
		log.SetLevel(logger.ParseLevel(reloaded.LogLevel))
		current = reloaded
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil && err != context.Canceled {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()

	return watcher
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	return overrides
}

func printVersion() {
	fmt.Printf("Lumen - Asynchronous media pipeline\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Lumen - Asynchronous media pipeline\n\n")
	fmt.Printf("Usage: lumen [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  lumen                                          # Run as a service with default config\n")
	fmt.Printf("  lumen -config config.yaml                      # Use specific config file\n")
	fmt.Printf("  lumen -home https://example.com/home.json      # Fetch and validate a catalog home\n")
	fmt.Printf("  lumen -image https://example.com/pic.jpg       # Fetch and decode an image\n")
	fmt.Printf("  lumen -version                                 # Print version info\n")
}
