package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("hotkeyd v%s\n", version)
	fmt.Println("Resident hotkey daemon for handheld game consoles")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  hotkeyd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that owns the physical volume keys of a handheld console.")
	fmt.Println("  Plain presses step the volume; presses with the MODE button held")
	fmt.Println("  step the screen brightness instead. The headphone jack switch")
	fmt.Println("  toggles the audio output path between speaker and headphones.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -device-glob string")
	fmt.Printf("        Glob for candidate input devices (default %q)\n", defaultDeviceGlob)
	fmt.Println()
	fmt.Println("  -name-family string")
	fmt.Printf("        Device-name substring for the key devices (default %q)\n", defaultNameFamily)
	fmt.Println()
	fmt.Println("  -volume-control string")
	fmt.Printf("        ALSA mixer control for volume level (default %q)\n", defaultVolumeControl)
	fmt.Println()
	fmt.Println("  -route-control string")
	fmt.Printf("        ALSA mixer enum control for output routing (default %q)\n", defaultRouteControl)
	fmt.Println()
	fmt.Println("  -vol-step int")
	fmt.Printf("        Volume change per key press in percent (default %d)\n", defaultVolStepPct)
	fmt.Println()
	fmt.Println("  -backlight-dir string")
	fmt.Printf("        Kernel backlight sysfs directory (default %q)\n", defaultBacklightDir)
	fmt.Println()
	fmt.Println("  -bright-step int")
	fmt.Printf("        Brightness change per key press in percent (default %d)\n", defaultBrightStepPct)
	fmt.Println()
	fmt.Println("  -bright-floor int")
	fmt.Printf("        Minimum brightness in percent (default %d)\n", defaultBrightMinPct)
	fmt.Println()
	fmt.Println("  -bright-save string")
	fmt.Println("        Path for the persisted brightness record (default \"~/.config/hotkeyd/brightness\")")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/hotkeyd.sock\")")
	fmt.Println()
	fmt.Println("  -state-ws")
	fmt.Println("        Enable the state WebSocket server for frontend OSD clients")
	fmt.Println()
	fmt.Println("  -state-ws-port int")
	fmt.Println("        State WebSocket port on loopback (default 3002)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with stock settings")
	fmt.Println("  hotkeyd")
	fmt.Println()
	fmt.Println("  # Custom mixer controls (different codec)")
	fmt.Println("  hotkeyd -volume-control 'Master Playback Volume' -route-control 'Output Select'")
	fmt.Println()
	fmt.Println("  # Config file plus one override")
	fmt.Println("  hotkeyd -config /etc/hotkeyd.yaml -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or join the 'input' group)")
	fmt.Println("  - The volume-key device is grabbed exclusively; the daemon exits if")
	fmt.Println("    another process already holds it")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "Path to YAML config file")

		deviceGlob = flag.String("device-glob", defaultDeviceGlob, "Glob for candidate input devices")
		nameFamily = flag.String("name-family", defaultNameFamily, "Device-name substring for the key devices")

		volumeControl = flag.String("volume-control", defaultVolumeControl, "ALSA mixer control for volume level")
		routeControl  = flag.String("route-control", defaultRouteControl, "ALSA mixer enum control for output routing")
		volStep       = flag.Int("vol-step", defaultVolStepPct, "Volume change per key press in percent")

		backlightDir = flag.String("backlight-dir", defaultBacklightDir, "Kernel backlight sysfs directory")
		brightStep   = flag.Int("bright-step", defaultBrightStepPct, "Brightness change per key press in percent")
		brightFloor  = flag.Int("bright-floor", defaultBrightMinPct, "Minimum brightness in percent")
		brightSave   = flag.String("bright-save", "~/.config/hotkeyd/brightness", "Path for the persisted brightness record")

		ipcSocketPath = flag.String("ipc-socket", "/tmp/hotkeyd.sock", "Unix domain socket path for IPC")

		stateWS     = flag.Bool("state-ws", false, "Enable the state WebSocket server")
		stateWSPort = flag.Int("state-ws-port", 3002, "State WebSocket port on loopback")

		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags the user actually set override the config file.
	overrides := FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device-glob":
			overrides.DeviceGlob = deviceGlob
		case "name-family":
			overrides.NameFamily = nameFamily
		case "volume-control":
			overrides.VolumeControl = volumeControl
		case "route-control":
			overrides.RouteControl = routeControl
		case "vol-step":
			overrides.VolStepPct = volStep
		case "backlight-dir":
			overrides.BacklightDir = backlightDir
		case "bright-step":
			overrides.BrightStep = brightStep
		case "bright-floor":
			overrides.BrightFloor = brightFloor
		case "bright-save":
			overrides.BrightSave = brightSave
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "state-ws":
			overrides.StateWSEnabled = stateWS
		case "state-ws-port":
			overrides.StateWSPort = stateWSPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(os.Stderr, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hotkeyd failed", "error", err)
		os.Exit(1)
	}
}

// run wires the daemon together and blocks until shutdown.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	logger.Info("starting hotkeyd", "version", version)
	logger.Debug("configuration",
		"device_glob", cfg.Input.DeviceGlob,
		"name_family", cfg.Input.NameFamily,
		"volume_control", cfg.Audio.VolumeControl,
		"route_control", cfg.Audio.RouteControl,
		"vol_step_pct", cfg.Audio.VolStepPct,
		"backlight_dir", cfg.Backlight.SysfsDir,
		"bright_step_pct", cfg.Backlight.StepPct,
		"bright_floor_pct", cfg.Backlight.FloorPct,
		"ipc_socket", cfg.IPC.SocketPath,
		"state_ws_enabled", cfg.StateWS.Enabled)

	sources, err := waitForSources(ctx, cfg, logger)
	if err != nil {
		// A termination signal during the startup retry window is a
		// normal shutdown, not a failure.
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown requested during startup")
			return nil
		}
		return err
	}
	defer func() {
		for _, s := range sources {
			s.close(logger)
		}
	}()

	// The volume device must be owned exclusively before anything else
	// starts; a failure here means another hotkey handler is running.
	for _, s := range sources {
		if err := acquire(s); err != nil {
			return err
		}
		mode := "shared"
		if s.grabbed {
			mode = "grabbed"
		}
		logger.Info("input source ready", "role", s.role.String(), "path", s.path, "name", s.name, "mode", mode)
	}

	mux, err := newMultiplexer(sources, logger)
	if err != nil {
		return err
	}
	defer mux.close()

	disp := newDispatcher(
		newAmixerGain(cfg.Audio.VolumeControl),
		newSysfsBacklight(cfg.Backlight.SysfsDir),
		newAmixerRoute(cfg.Audio.RouteControl, cfg.Audio.HeadphoneValue, cfg.Audio.SpeakerValue),
		newFileBrightnessStore(cfg.Backlight.SavePath),
		cfg,
		logger,
	)

	actions := make(chan Action, 64)

	ipcErr := make(chan error, 1)
	go func() {
		ipcErr <- runIPCServer(ctx, cfg.IPC.SocketPath, actions, mux.Wake, logger)
	}()

	var hub *wsHub
	if cfg.StateWS.Enabled {
		hub = newWSHub(logger)
		go hub.Run(ctx)
		go func() {
			if err := runStateWSServer(ctx, cfg.StateWS.Port, hub, logger); err != nil {
				logger.Error("state ws server error", "error", err)
			}
		}()
	}

	d := newDaemon(mux, disp, actions, hub, cfg, logger)
	runErr := d.run(ctx)

	// Surface an IPC startup failure (bad socket path and the like) even
	// though the control loop itself shut down cleanly.
	select {
	case err := <-ipcErr:
		if runErr == nil {
			runErr = err
		}
	default:
	}

	logger.Info("hotkeyd stopped")
	return runErr
}

// waitForSources runs device discovery under the startup retry policy.
//
// At boot the kernel may not have registered the gpio-keys devices yet, so
// discovery is retried on an interval. The volume-key device is mandatory;
// running out of attempts without it is fatal. Pad and jack devices are
// optional and the daemon degrades gracefully without them.
func waitForSources(ctx context.Context, cfg Config, logger *slog.Logger) ([]*source, error) {
	interval := time.Duration(cfg.Input.RetryIntervalMS) * time.Millisecond

	for attempt := 1; attempt <= cfg.Input.RetryAttempts; attempt++ {
		found := discoverDevices(cfg.Input.DeviceGlob, cfg.Input.NameFamily, logger)

		if vol, ok := found[roleVolume]; ok && vol != nil {
			sources := make([]*source, 0, len(found))
			sources = append(sources, vol)
			if pad, ok := found[rolePad]; ok {
				sources = append(sources, pad)
			} else {
				logger.Warn("gamepad device not found, modifier combos disabled")
			}
			if jack, ok := found[roleJack]; ok {
				sources = append(sources, jack)
			} else {
				logger.Warn("jack switch device not found, audio routing disabled")
			}
			return sources, nil
		}

		// Do not hold probed handles across the retry sleep.
		for _, s := range found {
			s.close(logger)
		}

		logger.Info("volume-key device not found, retrying",
			"attempt", attempt, "max_attempts", cfg.Input.RetryAttempts)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, errors.New("volume-key device never appeared, giving up")
}
