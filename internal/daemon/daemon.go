// Package daemon supervises the ookd process: it owns the transmit driver,
// the event bus and history, the HTTP listeners, and the config watcher,
// and ties their lifetimes to one graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/msageha/ookd/internal/affinity"
	"github.com/msageha/ookd/internal/config"
	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/driver/gpio"
	"github.com/msageha/ookd/internal/driver/nano"
	"github.com/msageha/ookd/internal/driver/sim"
	"github.com/msageha/ookd/internal/events"
	"github.com/msageha/ookd/internal/lock"
	"github.com/msageha/ookd/internal/observability"
	"github.com/msageha/ookd/internal/picode"
	"github.com/msageha/ookd/internal/server"
	"github.com/msageha/ookd/internal/txctl"
	"github.com/msageha/ookd/internal/yaml"
)

// HistoryFileName is the transmission history, kept under the log directory
// so the /logs endpoint can serve it.
const HistoryFileName = "history.jsonl"

// Daemon is the ookd daemon process.
type Daemon struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
	logWriter  *observability.MonthlyWriter

	fileLock *lock.FileLock
	watcher  *fsnotify.Watcher
	drv      driver.Transmitter
	bus      *events.Bus
	history  *events.History
	stats    *server.Stats
	servers  []*http.Server

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once
	closing  chan struct{}

	forceExit atomic.Bool
}

// New creates a Daemon for the given config. configPath is watched for
// changes while running; pass "" to disable the watch.
func New(configPath string, cfg config.Config) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		configPath: configPath,
		cfg:        cfg,
		log:        zerolog.Nop(),
		fileLock:   lock.NewFileLock(cfg.Daemon.LockFile),
		ctx:        ctx,
		cancel:     cancel,
		closing:    make(chan struct{}),
	}
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	// Step 1: acquire the daemon lock
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}

	// Step 2: open the monthly log and wire zerolog to it
	logWriter, err := observability.NewMonthlyWriter(d.cfg.Logging.Dir)
	if err != nil {
		d.fileLock.Unlock()
		return err
	}
	d.logWriter = logWriter
	root := observability.InitLogger(d.cfg.Logging.Level, logWriter)
	d.log = root.With().Str("component", "daemon").Logger()
	d.log.Info().Int("pid", os.Getpid()).Str("driver", d.cfg.Driver.Kind).Msg("starting")

	d.stats = server.NewStats(d.cfg.Logging.Dir)

	// Step 3: pin to the isolated CPUs so bit-banged pulses keep their shape
	if d.cfg.TX.Isolate {
		mask, err := affinity.Isolate()
		if err != nil {
			d.log.Warn().Err(err).Msg("cpu isolation failed")
		} else {
			d.stats.SetAffinity(mask)
			d.log.Info().Str("cpus", mask).Msg("cpu affinity")
		}
	}

	// Step 4: open the transmit driver
	drv, err := buildDriver(d.cfg)
	if err != nil {
		d.cleanup()
		return fmt.Errorf("open driver: %w", err)
	}
	d.drv = drv
	d.log.Info().Str("driver", drv.Name()).Msg("driver ready")

	// Step 5: start the event bus and the history recorder
	d.bus = events.NewBus(0)
	history, err := events.NewHistory(filepath.Join(d.cfg.Logging.Dir, HistoryFileName), events.DefaultMaxHistorySize)
	if err != nil {
		d.cleanup()
		return err
	}
	d.history = history
	historyCh, _ := d.bus.Subscribe()
	d.wg.Add(1)
	go d.recordEvents(historyCh)

	// Step 6: start the receive listener when the driver can hear anything
	if n, ok := d.drv.(*nano.Driver); ok {
		d.wg.Add(1)
		go d.listenRX(n)
	}

	// Step 7: start the HTTP listeners
	srv := server.New(d.cfg, root.With().Str("component", "http").Logger(),
		txctl.NewScheduler(d.drv), d.drv.Name(), d.bus, d.stats)
	listeners, err := d.listen()
	if err != nil {
		d.cleanup()
		return err
	}
	router := srv.Router()
	g := new(errgroup.Group)
	for _, ln := range listeners {
		ln := ln
		hs := &http.Server{Handler: router}
		d.servers = append(d.servers, hs)
		d.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
		g.Go(func() error {
			if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- g.Wait() }()

	// Step 8: watch the config file for log level changes
	if d.configPath != "" {
		if err := d.watchConfig(); err != nil {
			d.log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	d.log.Info().Msg("ready")

	// Step 9: block until a signal, a listener failure, or Shutdown
	return d.waitSignals(serveErr)
}

// buildDriver opens the transmitter named by the config.
func buildDriver(cfg config.Config) (driver.Transmitter, error) {
	switch cfg.Driver.Kind {
	case config.DriverSim:
		return sim.New(), nil
	case config.DriverGPIO:
		drv, err := gpio.Open()
		if err != nil {
			return nil, err
		}
		return drv, nil
	case config.DriverNano:
		drv, err := nano.Open(cfg.Driver.Device, cfg.Driver.Baud)
		if err != nil {
			return nil, err
		}
		return drv, nil
	default:
		return nil, fmt.Errorf("unknown driver kind %q", cfg.Driver.Kind)
	}
}

// listen opens the configured TCP and unix listeners. A stale socket left
// by a crashed daemon is removed first; the file lock already proved no
// other ookd is running.
func (d *Daemon) listen() ([]net.Listener, error) {
	var listeners []net.Listener
	closeAll := func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}

	if d.cfg.Listen.Addr != "" {
		ln, err := net.Listen("tcp", d.cfg.Listen.Addr)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("listen %s: %w", d.cfg.Listen.Addr, err)
		}
		listeners = append(listeners, ln)
	}
	if d.cfg.Listen.Socket != "" {
		os.Remove(d.cfg.Listen.Socket)
		ln, err := net.Listen("unix", d.cfg.Listen.Socket)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("listen %s: %w", d.cfg.Listen.Socket, err)
		}
		listeners = append(listeners, ln)
	}
	return listeners, nil
}

// recordEvents drains the bus into the on-disk history. It exits when the
// bus closes, so every event published before shutdown gets written.
func (d *Daemon) recordEvents(ch <-chan events.Event) {
	defer d.wg.Done()
	for ev := range ch {
		if err := d.history.Record(ev); err != nil {
			d.log.Error().Err(err).Msg("history write failed")
		}
	}
}

// listenRX publishes every picode the nano hears. The daemon never
// retransmits what it receives; subscribers decide what a code means.
func (d *Daemon) listenRX(n *nano.Driver) {
	defer d.wg.Done()
	err := n.Listen(d.ctx, func(code string) {
		observability.RecordRX()
		ev := events.Event{Type: events.TypeRX, Picode: code}
		if cmd, err := picode.Decode(code); err == nil {
			ev.Repeats = cmd.Repeats
			ev.Seconds = cmd.Seconds
			if train, err := picode.Compile(cmd); err == nil {
				ev.Pulses = len(train)
			}
		}
		d.bus.Publish(ev)
		d.log.Debug().Str("picode", code).Msg("rx")
	})
	if err != nil && d.ctx.Err() == nil && !errors.Is(err, driver.ErrClosed) {
		d.log.Error().Err(err).Msg("receive listener stopped")
	}
}

// watchConfig hot-reloads the log level when the config file changes. The
// parent directory is watched because editors and AtomicWrite replace the
// file by rename.
func (d *Daemon) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(d.configPath)); err != nil {
		watcher.Close()
		return err
	}
	d.watcher = watcher

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(d.configPath) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					d.reloadConfig()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.log.Error().Err(err).Msg("config watcher")
			}
		}
	}()
	return nil
}

// reloadConfig applies what can change without a restart, which is only the
// log level. A file that no longer loads is quarantined and the last good
// copy restored.
func (d *Daemon) reloadConfig() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		d.log.Error().Err(err).Str("path", d.configPath).Msg("config reload failed")
		if _, statErr := os.Stat(d.configPath); statErr == nil {
			if moved, qErr := yaml.Quarantine(d.configPath); qErr == nil {
				d.log.Warn().Str("moved_to", moved).Msg("quarantined config")
			}
		}
		if restoreErr := yaml.RestoreFromBackup(d.configPath); restoreErr == nil {
			d.log.Warn().Msg("restored config from backup")
		}
		return
	}

	if cfg.Logging.Level != d.cfg.Logging.Level {
		if err := observability.SetLevel(cfg.Logging.Level); err != nil {
			d.log.Error().Err(err).Msg("bad log level")
		} else {
			d.log.Info().Str("level", cfg.Logging.Level).Msg("log level changed")
			d.cfg.Logging.Level = cfg.Logging.Level
		}
	}
	if cfg.Listen != d.cfg.Listen || cfg.Driver != d.cfg.Driver || cfg.TX != d.cfg.TX {
		d.log.Warn().Msg("listener, driver and tx changes need a restart")
	}
}

// waitSignals blocks until a shutdown signal arrives, a listener fails, or
// Shutdown is called from elsewhere.
func (d *Daemon) waitSignals(serveErr <-chan error) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		d.log.Info().Str("signal", sig.String()).Msg("shutting down")

		// Second signal → force exit
		go func() {
			<-sigCh
			d.log.Warn().Msg("second signal, forcing exit")
			d.forceExit.Store(true)
			os.Exit(1)
		}()
	case err := <-serveErr:
		if err != nil {
			d.log.Error().Err(err).Msg("listener failed")
			runErr = err
		}
	case <-d.closing:
	}

	d.Shutdown()
	return runErr
}

// Shutdown performs graceful shutdown. Safe to call more than once and from
// any goroutine.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		close(d.closing)
		d.log.Info().Msg("shutdown started")

		timeout := time.Duration(d.cfg.Daemon.ShutdownTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		// 1. Drain HTTP, in-flight transmissions included
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for _, hs := range d.servers {
			if err := hs.Shutdown(ctx); err != nil {
				d.log.Warn().Err(err).Msg("listener shutdown")
			}
		}

		// 2. Stop producers. Closing the driver unblocks a receive listener
		// stuck in a serial read; closing the bus ends its subscribers.
		d.cancel()
		if d.watcher != nil {
			d.watcher.Close()
		}
		if d.drv != nil {
			d.drv.Close()
		}
		if d.bus != nil {
			d.bus.Close()
		}

		// 3. Drain background goroutines
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			d.log.Info().Msg("goroutines drained")
		case <-time.After(timeout):
			d.log.Warn().Dur("timeout", timeout).Msg("shutdown timed out")
		}

		// 4. Release resources
		d.cleanup()
		d.log.Info().Msg("stopped")
	})
}

// cleanup releases resources. Called from Shutdown and from failed startup.
func (d *Daemon) cleanup() {
	if d.history != nil {
		d.history.Close()
	}
	if d.drv != nil {
		d.drv.Close()
	}
	if d.cfg.Listen.Socket != "" {
		os.Remove(d.cfg.Listen.Socket)
	}
	d.fileLock.Unlock()
	if d.logWriter != nil {
		d.logWriter.Close()
	}
}
