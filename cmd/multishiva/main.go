// Command multishiva is the single-binary host/agent process.
// Flag parsing, exit codes, and the host/agent construction sequence are
// grounded on the teacher's top-level main.go: flags parsed with
// spf13/pflag, a zap.Logger built once and threaded explicitly, then one
// long-lived component constructed and run until a signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/multishiva/multishiva/internal/agentd"
	"github.com/multishiva/multishiva/internal/config"
	"github.com/multishiva/multishiva/internal/connstats"
	"github.com/multishiva/multishiva/internal/discovery"
	"github.com/multishiva/multishiva/internal/fingerprint"
	"github.com/multishiva/multishiva/internal/hostd"
	"github.com/multishiva/multishiva/internal/hotkey"
	"github.com/multishiva/multishiva/internal/input"
	"github.com/multishiva/multishiva/internal/journal"
	"github.com/multishiva/multishiva/internal/statusui"
	"github.com/multishiva/multishiva/internal/topology"
	"github.com/multishiva/multishiva/internal/wire"
)

// Exit codes distinguish why the process stopped, for scripts/systemd
// unit files that branch on them.
const (
	exitOK = iota
	exitConfigError
	exitAuthError
	exitDeviceError
	exitArgConflict
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		flagMode     string
		flagConfig   string
		flagHost     string
		flagSimulate bool
		flagGUI      bool
		flagReplay   bool
		flagPrintFPs bool
	)
	flags := pflag.NewFlagSet("multishiva", pflag.ContinueOnError)
	flags.StringVarP(&flagMode, "mode", "m", "", "process role: host or agent")
	flags.StringVarP(&flagConfig, "config", "c", "", "path to configuration document")
	flags.StringVar(&flagHost, "host", "", "agent-mode host address override (host:port)")
	flags.BoolVar(&flagSimulate, "simulate", false, "use a synthetic input source instead of real device capture")
	flags.BoolVar(&flagGUI, "gui", false, "launch the configuration UI (external collaborator, not built here)")
	flags.BoolVar(&flagReplay, "replay-journal", false, "print recent connection/focus events from the journal and exit")
	flags.BoolVar(&flagPrintFPs, "fingerprints", false, "print stored peer fingerprints and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitArgConflict
	}

	if flagGUI && (flagReplay || flagPrintFPs) {
		fmt.Fprintln(os.Stderr, "multishiva: --gui cannot be combined with a diagnostic flag")
		return exitArgConflict
	}
	if flagReplay && flagPrintFPs {
		fmt.Fprintln(os.Stderr, "multishiva: --replay-journal and --fingerprints are mutually exclusive")
		return exitArgConflict
	}
	if flagGUI {
		fmt.Fprintln(os.Stderr, "multishiva: --gui is an external collaborator; no configuration UI is built into this binary")
		return exitArgConflict
	}

	stateDir, err := defaultStateDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "multishiva:", err)
		return exitConfigError
	}

	if flagReplay || flagPrintFPs {
		return runDiagnostics(stateDir, flagReplay, flagPrintFPs)
	}

	log := newLogger()
	defer log.Sync()

	configPath := config.ResolveConfigPath(flagConfig, filepath.Join(stateDir, "config.yaml"))
	cfg, err := config.LoadLenient(configPath)
	if err != nil {
		log.Error("load config", zap.Error(err))
		return exitConfigError
	}
	cfg.ResolveMode(flagMode)
	cfg.ResolveHostAddress(flagHost)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", zap.Error(err))
		return exitConfigError
	}
	log.Info("loaded configuration", zap.String("summary", cfg.Summary()))

	killSwitch, err := parseHotkey(cfg.Hotkeys.KillSwitch)
	if err != nil {
		log.Error("parse kill_switch hotkey", zap.Error(err))
		return exitConfigError
	}
	focusReturn, err := parseHotkey(cfg.Hotkeys.FocusReturn)
	if err != nil {
		log.Error("parse focus_return hotkey", zap.Error(err))
		return exitConfigError
	}

	fps, err := fingerprint.Open(filepath.Join(stateDir, "fingerprints.json"))
	if err != nil {
		log.Error("open fingerprint store", zap.Error(err))
		return exitConfigError
	}
	defer fps.Close()

	jrnl, err := journal.Open(filepath.Join(stateDir, "journal.db"))
	if err != nil {
		log.Error("open journal", zap.Error(err))
		return exitConfigError
	}
	defer jrnl.Close()

	device, err := selectDevice(flagSimulate)
	if err != nil {
		log.Error("open input device", zap.Error(err))
		return exitDeviceError
	}
	defer device.Close()

	topo := topology.New(cfg.SelfName, cfg.Edges.EdgeMap())
	stats := connstats.NewTracker()
	bounds := topology.Bounds{Width: 1920, Height: 1080}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch cfg.Mode {
	case config.ModeHost:
		runErr = runHost(ctx, log, cfg, topo, fps, device, jrnl, stats, killSwitch, focusReturn, bounds)
	case config.ModeAgent:
		runErr = runAgent(ctx, log, cfg, topo, fps, device, jrnl, stats, bounds)
	}

	var authErr *wire.AuthError
	if errors.As(runErr, &authErr) {
		log.Error("authentication give-up ceiling reached", zap.Error(runErr))
		return exitAuthError
	}
	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		return exitDeviceError
	}
	return exitOK
}

func runHost(ctx context.Context, log *zap.Logger, cfg *config.Config, topo *topology.Topology, fps *fingerprint.Store, device input.Device, jrnl *journal.Journal, stats *connstats.Tracker, killSwitch, focusReturn *hotkey.Combo, bounds topology.Bounds) error {
	h := hostd.New(cfg, log, topo, fps, device, jrnl, stats, killSwitch, focusReturn, bounds)

	ln, err := wire.Listen(log, fmt.Sprintf(":%d", cfg.Port), cfg.SelfName, []byte(cfg.TLS.PSK))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	h.AttachListener(hostd.NewListenerAdapter(ln))

	adv, err := discovery.Advertise(log, cfg.SelfName, int(cfg.Port))
	if err != nil {
		log.Warn("mdns advertise failed, agents must use an explicit host address", zap.Error(err))
	} else {
		defer adv.Close()
	}

	dash := statusui.New()
	if term.IsTerminal(int(os.Stdout.Fd())) {
		go runDashboard(ctx, dash, h, stats, cfg.SelfName)
	}

	return h.Run(ctx)
}

func runDashboard(ctx context.Context, dash *statusui.Dashboard, h *hostd.Host, stats *connstats.Tracker, selfName string) {
	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	go func() {
		<-ctx.Done()
		dash.Stop()
	}()
	go func() {
		for range ticker.C {
			peers := h.Peers()
			statusPeers := make([]statusui.PeerStatus, 0, len(peers))
			for _, p := range peers {
				statusPeers = append(statusPeers, statusui.PeerStatus{Name: p.Name, State: "authenticated", Addr: p.Addr})
			}
			dash.Update(statusui.Snapshot{
				SelfName: selfName,
				Focus:    h.FocusSnapshot(),
				Peers:    statusPeers,
				Stats:    stats,
				Uptime:   time.Since(start),
			})
		}
	}()
	_ = dash.Run()
}

func runAgent(ctx context.Context, log *zap.Logger, cfg *config.Config, topo *topology.Topology, fps *fingerprint.Store, device input.Device, jrnl *journal.Journal, stats *connstats.Tracker, bounds topology.Bounds) error {
	a := agentd.New(cfg, log, topo, device, jrnl, stats, bounds)
	reconnectDelay := time.Duration(cfg.Behavior.ReconnectDelayMS) * time.Millisecond
	newDialer := agentd.NewDialerFactory(log, cfg.SelfName, []byte(cfg.TLS.PSK), fps, reconnectDelay)
	return a.Run(ctx, newDialer)
}

func selectDevice(simulate bool) (input.Device, error) {
	if simulate {
		return input.NewSimulated(), nil
	}
	return input.OpenPlatformDevice()
}

func parseHotkey(raw string) (*hotkey.Combo, error) {
	if raw == "" {
		return nil, nil
	}
	combo, err := hotkey.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &combo, nil
}

func defaultStateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	dir = filepath.Join(dir, "multishiva")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return dir, nil
}

func newLogger() *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	var encoder zapcore.Encoder
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	return zap.New(core)
}

func runDiagnostics(stateDir string, replay, printFPs bool) int {
	if replay {
		jrnl, err := journal.Open(filepath.Join(stateDir, "journal.db"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "multishiva:", err)
			return exitConfigError
		}
		defer jrnl.Close()

		connEvents, err := jrnl.RecentConnectionEvents(50)
		if err != nil {
			fmt.Fprintln(os.Stderr, "multishiva:", err)
			return exitConfigError
		}
		for _, e := range connEvents {
			fmt.Printf("%s  connection  peer=%s  kind=%s  %s\n", e.At.Format(time.RFC3339), e.Peer, e.Kind, e.Detail)
		}
		focusEvents, err := jrnl.RecentFocusEvents(50)
		if err != nil {
			fmt.Fprintln(os.Stderr, "multishiva:", err)
			return exitConfigError
		}
		for _, e := range focusEvents {
			fmt.Printf("%s  focus       peer=%s  phase=%s  edge=%s\n", e.At.Format(time.RFC3339), e.Peer, e.Phase, e.Edge)
		}
		return exitOK
	}

	if printFPs {
		fps, err := fingerprint.Open(filepath.Join(stateDir, "fingerprints.json"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "multishiva:", err)
			return exitConfigError
		}
		defer fps.Close()
		for peer, r := range fps.List() {
			fmt.Printf("%-24s  %s  first_seen=%s  last_seen=%s\n", peer, r.Digest, r.FirstSeen.Format(time.RFC3339), r.LastSeen.Format(time.RFC3339))
		}
		return exitOK
	}
	return exitOK
}
