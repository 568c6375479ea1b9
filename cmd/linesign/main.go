// Command linesign polls a production line controller and drives the
// signage outputs: terminal display, REST API, and MQTT/Kafka/Valkey
// publishers.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linesign/catalog"
	"linesign/config"
	"linesign/kafka"
	"linesign/logging"
	"linesign/melsec"
	"linesign/mqtt"
	"linesign/poller"
	"linesign/push"
	"linesign/snapshot"
	"linesign/tui"
	"linesign/valkey"
	"linesign/web"
)

// Version is set at build time via -ldflags
var Version = "dev"

// preprocessLogDebugFlag handles --log-debug without a value by injecting
// "all" as the default, so `--log-debug` alone enables all components.
func preprocessLogDebugFlag() {
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--log-debug" || arg == "-log-debug" {
			if i+1 >= len(args) || (len(args[i+1]) > 0 && args[i+1][0] == '-') {
				os.Args = append(os.Args[:i+2], append([]string{"all"}, os.Args[i+2:]...)...)
			}
			return
		}
		if len(arg) > 11 && (arg[:12] == "--log-debug=" || arg[:11] == "-log-debug=") {
			return
		}
	}
}

// Command line flags
var (
	configPath  = flag.String("config", config.DefaultPath(), "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version and exit")
	noTUI       = flag.Bool("d", false, "Disable local display (headless mode)")
	noTUILong   = flag.Bool("no-tui", false, "Disable local display (headless mode)")
	lineFlag    = flag.String("line", "", "Line name (overrides config)")
	dummyMode   = flag.Bool("dummy", false, "Use the simulated source instead of a controller")
	logFile     = flag.String("log", "", "Path to log file (optional)")
	logDebug    = flag.String("log-debug", "", "Enable debug logging to debug.log (component filter, or 'all')")
)

func main() {
	preprocessLogDebugFlag()
	flag.Parse()

	if *showVersion {
		fmt.Printf("linesign %s\n", Version)
		os.Exit(0)
	}

	headless := *noTUI || *noTUILong

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *lineFlag != "" {
		cfg.Line = *lineFlag
	}
	if *dummyMode {
		cfg.PLC.DummyMode = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Set up file logging if specified
	var fileLogger *logging.FileLogger
	if *logFile != "" {
		fileLogger, err = logging.NewFileLogger(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open log file: %v\n", err)
		} else {
			logging.SetGlobalFileLogger(fileLogger)
		}
	}

	// Set up debug logging if specified
	var debugLogger *logging.DebugLogger
	if *logDebug != "" {
		debugLogger, err = logging.NewDebugLogger("debug.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open debug log: %v\n", err)
		} else {
			filter := *logDebug
			if filter == "all" || filter == "true" || filter == "1" {
				filter = ""
			}
			debugLogger.SetFilter(filter)
			logging.SetGlobalDebugLogger(debugLogger)
		}
	}

	if err := run(cfg, headless); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if fileLogger != nil {
		fileLogger.Close()
	}
	if debugLogger != nil {
		debugLogger.Close()
	}
}

// run is the unified startup flow for both display and headless modes.
func run(cfg *config.Config, headless bool) error {
	cat, err := catalog.Load(cfg.CatalogDir, cfg.Line)
	if err != nil {
		return fmt.Errorf("load product catalog: %w", err)
	}

	source, err := buildSource(cfg)
	if err != nil {
		return err
	}
	logging.Info("starting line %s in %s mode", cfg.Line, source.Mode())

	p := poller.New(source, cat, cfg.PollRate)

	// Fan poll updates out to the configured publishers.
	pushMgr := push.NewManager()
	for _, mc := range cfg.MQTT {
		if mc.Enabled {
			pushMgr.Add(mqtt.NewPublisher(mc, cfg.Namespace, cfg.Line))
		}
	}
	for _, kc := range cfg.Kafka {
		if kc.Enabled {
			pushMgr.Add(kafka.NewProducer(kc, cfg.Namespace, cfg.Line))
		}
	}
	var warmSource *valkey.Publisher
	for _, vc := range cfg.Valkey {
		if vc.Enabled {
			vp := valkey.NewPublisher(vc, cfg.Namespace, cfg.Line)
			pushMgr.Add(vp)
			if warmSource == nil {
				warmSource = vp
			}
		}
	}
	pushMgr.Start()
	p.OnUpdate(pushMgr.Offer)

	// Warm-start from the last published reading so displays are not
	// blank while the first poll is in flight.
	if warmSource != nil {
		if snap, ok := warmSource.LoadLastGood(); ok {
			p.Prime(snap)
			logging.Info("warm start from last published reading (actual %d/%d)", snap.Actual, snap.Plan)
		}
	}

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web, cfg.Line, Version, p)
		if err := webServer.Start(); err != nil {
			return fmt.Errorf("start web server: %w", err)
		}
		logging.Info("web server listening on %s", webServer.Address())
	}

	p.Start()

	shutdown := func() {
		p.Stop()
		pushMgr.Stop()
		if webServer != nil {
			webServer.Stop()
		}
	}

	if headless || !cfg.UI.Enabled {
		fmt.Println("Running in headless mode. Press Ctrl+C to stop.")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		fmt.Printf("\nReceived %v, shutting down...\n", sig)

		done := make(chan struct{})
		go func() {
			shutdown()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		fmt.Println("Stopped")
		return nil
	}

	app := tui.NewApp(cfg.UI, cfg.Line, p)

	// Ctrl+C must still work when the display owns the terminal.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		app.Stop()
	}()

	err = app.Run()
	shutdown()
	return err
}

// buildSource picks the snapshot source for the configured mode.
func buildSource(cfg *config.Config) (snapshot.Source, error) {
	if cfg.PLC.DummyMode {
		seed := cfg.PLC.SimSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return snapshot.NewSimSource(seed), nil
	}

	regs, err := snapshot.NewRegisterMap(cfg.Registers)
	if err != nil {
		return nil, fmt.Errorf("register map: %w", err)
	}

	client := melsec.NewClient(cfg.PLC.Host, cfg.PLC.Port,
		melsec.WithTimeout(cfg.PLC.Timeout),
		melsec.WithRetryPolicy(melsec.RetryPolicy{
			MaxRetries:    cfg.PLC.MaxRetries,
			RetryDelay:    cfg.PLC.RetryDelay,
			AutoReconnect: cfg.PLC.AutoReconnect,
		}),
	)
	return snapshot.NewPLCSource(client, regs), nil
}
