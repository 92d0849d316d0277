package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yairfalse/guardsync/reconciler"
	"github.com/yairfalse/guardsync/telemetry"
)

// Sweeper runs one reconciliation pass.
type Sweeper interface {
	Sweep(ctx context.Context) (*reconciler.Result, error)
}

// Recorder persists sweep results. Optional.
type Recorder interface {
	RecordSweep(result *reconciler.Result) error
}

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsAddr string
}

// Daemon runs continuous reconciliation sweeps with a metrics endpoint.
type Daemon struct {
	sweeper    Sweeper
	history    Recorder
	logger     *telemetry.Logger
	interval   time.Duration
	addr       string
	startTime  time.Time
	sweepCount atomic.Int64
	lastFailed atomic.Bool
}

// New creates a daemon. history may be nil.
func New(sweeper Sweeper, history Recorder, cfg Config) *Daemon {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	addr := cfg.MetricsAddr
	if addr == "" {
		addr = ":2112"
	}
	return &Daemon{
		sweeper:   sweeper,
		history:   history,
		logger:    telemetry.NewLogger("daemon"),
		interval:  interval,
		addr:      addr,
		startTime: time.Now(),
	}
}

// Run blocks until SIGINT/SIGTERM or ctx cancellation, coordinating the
// sweep loop and the metrics server as one actor group.
func (d *Daemon) Run(ctx context.Context) error {
	var group run.Group

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	srv := &http.Server{
		Addr:              d.addr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Add(
		func() error {
			d.logger.Info().Str("addr", d.addr).Msg("starting metrics server")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		},
	)

	loopCtx, cancel := context.WithCancel(ctx)
	group.Add(
		func() error { return d.loop(loopCtx) },
		func(error) { cancel() },
	)

	err := group.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		d.logger.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

// loop sweeps immediately, then on every tick.
func (d *Daemon) loop(ctx context.Context) error {
	d.sweepOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.sweepOnce(ctx)
		}
	}
}

func (d *Daemon) sweepOnce(ctx context.Context) {
	d.sweepCount.Add(1)

	result, err := d.sweeper.Sweep(ctx)
	if err != nil {
		d.lastFailed.Store(true)
		d.logger.WithContext(ctx).Error().Err(err).Msg("sweep failed")
		return
	}
	d.lastFailed.Store(result.Failed())

	if d.history != nil {
		if err := d.history.RecordSweep(result); err != nil {
			d.logger.WithContext(ctx).Warn().Err(err).Msg("failed to record sweep history")
		}
	}
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	if telemetry.PrometheusRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/-/healthy", d.handleHealth)
	mux.HandleFunc("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ready")
	})
	return mux
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sweeps        int64  `json:"sweeps"`
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if d.lastFailed.Load() {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthStatus{
		Status:        status,
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
		Sweeps:        d.SweepCount(),
	})
}

// SweepCount returns total sweeps run.
func (d *Daemon) SweepCount() int64 {
	return d.sweepCount.Load()
}
