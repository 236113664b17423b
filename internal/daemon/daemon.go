package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leonardotrapani/voicelink/internal/bus"
	"github.com/leonardotrapani/voicelink/internal/config"
	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/telemetry"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

const reconnectTimeout = 20 * time.Second

// Options overrides collaborators, mainly for tests.
type Options struct {
	// Deps is passed to every session; Notifier and Metrics are filled in
	// from config when left nil.
	Deps session.Deps
}

type Daemon struct {
	mu     sync.RWMutex
	cfgMgr *config.Manager
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	session       *session.Session
	sessionCancel context.CancelFunc
	wg            sync.WaitGroup
}

func New(cfgMgr *config.Manager, opts Options) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	registry := telemetry.NewRegistry()
	metrics := opts.Deps.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics(registry)
	}

	return &Daemon{
		cfgMgr:   cfgMgr,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		registry: registry,
		metrics:  metrics,
	}
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal %v, shutting down gracefully", sig)
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	cfg := d.cfgMgr.GetConfig()
	stopMetrics := telemetry.Serve(cfg.Metrics.ListenAddr, d.registry)
	defer stopMetrics()

	d.cfgMgr.OnReload(d.configReloaded)
	if err := d.cfgMgr.StartWatching(d.ctx); err != nil {
		log.Printf("Config watching disabled: %v", err)
	}
	defer d.cfgMgr.Stop()

	if err := d.startSession(cfg); err != nil {
		log.Printf("Session not started: %v", err)
	}
	defer d.stopSession()

	log.Printf("Daemon started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("Shutdown requested")
				return nil
			}
			log.Printf("Accept error: %v", err)
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("Client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]

	switch cmd {
	case bus.CmdStatus:
		fmt.Fprintf(c, "STATUS %s\n", d.statusLine())
	case bus.CmdTranscript:
		data, err := json.Marshal(d.transcript())
		if err != nil {
			fmt.Fprintf(c, "ERR transcript: %v\n", err)
			return
		}
		fmt.Fprintf(c, "TRANSCRIPT %s\n", data)
	case bus.CmdReconnect:
		if err := d.reconnect(); err != nil {
			fmt.Fprintf(c, "ERR reconnect: %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK %s\n", d.statusLine())
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		log.Printf("Unknown command: %c", cmd)
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) current() *session.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

func (d *Daemon) statusLine() string {
	s := d.current()
	if s == nil {
		return "state=none"
	}
	st := s.Status()
	line := fmt.Sprintf("state=%s attempts=%d emotion=%s responding=%t entries=%d sent=%d dropped=%d",
		st.State, st.Attempts, st.Emotion, st.BotResponding, st.Entries,
		st.Stats.TotalMessages, st.Stats.DroppedFrames)
	if err := s.Err(); err != nil && st.State == transport.Closed {
		line += fmt.Sprintf(" error=%q", err.Error())
	}
	return line
}

func (d *Daemon) transcript() any {
	s := d.current()
	if s == nil {
		return []struct{}{}
	}
	return s.Transcript()
}

// reconnect re-initializes the current session, or builds a new one when
// the previous session has already been torn down.
func (d *Daemon) reconnect() error {
	ctx, cancel := context.WithTimeout(d.ctx, reconnectTimeout)
	defer cancel()

	if s := d.current(); s != nil {
		err := s.Reconnect(ctx)
		if !errors.Is(err, transport.ErrDisposed) {
			return err
		}
	}
	log.Printf("Daemon: session closed, starting a new one")
	return d.startSession(d.cfgMgr.GetConfig())
}

func (d *Daemon) startSession(cfg *config.Config) error {
	sc, err := cfg.ToSessionConfig()
	if err != nil {
		return err
	}
	sc.KeepAlive = true

	deps := d.opts.Deps
	deps.Metrics = d.metrics
	if deps.Notifier == nil {
		deps.Notifier = cfg.Notifier()
	}
	s, err := session.New(sc, deps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(d.ctx)
	d.mu.Lock()
	if d.ctx.Err() != nil {
		d.mu.Unlock()
		cancel()
		s.Close()
		return d.ctx.Err()
	}
	prev, prevCancel := d.session, d.sessionCancel
	d.session, d.sessionCancel = s, cancel
	d.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		prev.Close()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := s.Run(ctx); err != nil {
			log.Printf("Session ended: %v", err)
		}
	}()
	return nil
}

// stopSession ends the daemon context first so no handler can start a new
// session behind it.
func (d *Daemon) stopSession() {
	d.cancel()
	d.mu.Lock()
	s, cancel := d.session, d.sessionCancel
	d.session, d.sessionCancel = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s != nil {
		s.Close()
	}
	d.wg.Wait()
}

func (d *Daemon) configReloaded(prev, next *config.Config) {
	if !sessionSettingsChanged(prev, next) {
		return
	}
	log.Printf("Daemon: connection settings changed, restarting session")
	if err := d.startSession(next); err != nil {
		log.Printf("Daemon: failed to restart session: %v", err)
	}
}

func sessionSettingsChanged(prev, next *config.Config) bool {
	return prev.Server != next.Server ||
		prev.Recording != next.Recording ||
		prev.Reconnect != next.Reconnect ||
		prev.Telemetry != next.Telemetry ||
		prev.Notifications != next.Notifications
}
