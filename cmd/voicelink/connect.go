package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/leonardotrapani/voicelink/internal/config"
	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/telemetry"
	"github.com/leonardotrapani/voicelink/internal/tui"
)

type connectOptions struct {
	baseURL     string
	ticket      string
	backend     string
	metricsAddr string
	plain       bool
}

// apply layers command line flags over the loaded config.
func (o connectOptions) apply(cfg *config.Config) {
	if o.baseURL != "" {
		cfg.Server.BaseURL = o.baseURL
	}
	if o.ticket != "" {
		cfg.Server.Ticket = o.ticket
	}
	if o.backend != "" {
		cfg.Recording.Backend = o.backend
	}
	if o.metricsAddr != "" {
		cfg.Metrics.ListenAddr = o.metricsAddr
	}
}

func connectCmd() *cobra.Command {
	var opts connectOptions

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Start a conversation in the foreground",
		Long: `Connect to the backend, stream the microphone and show the live transcript.
Press r to reconnect and q to quit. With --plain, or when stdout is not a
terminal, completed lines are printed as they arrive and the command exits
when the connection ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "url", "", "backend base URL (overrides config and VOICELINK_BASE_URL)")
	cmd.Flags().StringVar(&opts.ticket, "ticket", "", "access ticket (overrides config and VOICELINK_TICKET)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "capture backend: pipewire or malgo")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print lines instead of the interactive view")
	return cmd
}

func runConnect(ctx context.Context, opts connectOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sc, err := cfg.ToSessionConfig()
	if err != nil {
		return err
	}
	plain := opts.plain || !isatty.IsTerminal(os.Stdout.Fd())
	// the interactive view stays up after the connection ends so the user can reconnect
	sc.KeepAlive = !plain

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := telemetry.NewRegistry()
	stopMetrics := telemetry.Serve(cfg.Metrics.ListenAddr, reg)
	defer stopMetrics()

	changes := make(chan struct{}, 1)
	live := tui.NewLive()
	onChange := func() {
		if plain {
			select {
			case changes <- struct{}{}:
			default:
			}
			return
		}
		live.Refresh()
	}

	sess, err := session.New(sc, session.Deps{
		Notifier: cfg.Notifier(),
		Metrics:  telemetry.NewMetrics(reg),
		OnChange: onChange,
		OnVolume: func(float64) {
			if !plain {
				live.Refresh()
			}
		},
	})
	if err != nil {
		return err
	}

	if plain {
		return runPlain(ctx, sess, changes)
	}
	return runLive(ctx, sess, live)
}

func runPlain(ctx context.Context, sess *session.Session, changes <-chan struct{}) error {
	printer := tui.NewPrinter(os.Stdout)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-changes:
				printer.Update(sess)
			}
		}
	}()

	err := sess.Run(ctx)
	close(done)
	printer.Update(sess)
	return err
}

func runLive(ctx context.Context, sess *session.Session, live *tui.Live) error {
	if logFile, err := openLogFile(); err == nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		err := sess.Run(ctx)
		if err != nil {
			cancel()
		}
		errCh <- err
	}()

	uiErr := live.Run(ctx, sess, func() error { return sess.Reconnect(ctx) })
	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	return uiErr
}

// openLogFile sends log output to the cache dir while the full screen view
// owns the terminal.
func openLogFile() (*os.File, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	dir = filepath.Join(dir, "voicelink")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := tea.LogToFile(filepath.Join(dir, "connect.log"), "")
	if err != nil {
		log.Printf("Failed to redirect logs: %v", err)
		return nil, err
	}
	return f, nil
}
