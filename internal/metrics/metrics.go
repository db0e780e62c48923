// Package metrics exports the row controller counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/grid"
	"github.com/oukeidos/arcat/internal/logger"
)

var _ grid.Observer = (*Recorder)(nil)

// Recorder implements grid.Observer with counters on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	attempts   *prometheus.CounterVec
	commits    *prometheus.CounterVec
	rejections *prometheus.CounterVec
	deletes    *prometheus.CounterVec
	suppressed *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcat",
			Name:      "commit_attempts_total",
			Help:      "Rows sent to the store for insert or update.",
		}, []string{"table"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcat",
			Name:      "commits_total",
			Help:      "Rows accepted by the store.",
		}, []string{"table", "insert"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcat",
			Name:      "rejections_total",
			Help:      "Commits and deletes refused, by error kind.",
		}, []string{"table", "kind"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcat",
			Name:      "deletes_total",
			Help:      "Rows deleted from the store.",
		}, []string{"table"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcat",
			Name:      "leave_suppressed_total",
			Help:      "Row-leave events ignored while a refused row was being restored.",
		}, []string{"table"}),
	}
	r.registry.MustRegister(r.attempts, r.commits, r.rejections, r.deletes, r.suppressed)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) CommitAttempted(table string) {
	r.attempts.WithLabelValues(table).Inc()
}

func (r *Recorder) Committed(table string, insert bool) {
	r.commits.WithLabelValues(table, strconv.FormatBool(insert)).Inc()
}

func (r *Recorder) Rejected(table string, kind apperrors.Kind) {
	r.rejections.WithLabelValues(table, string(kind)).Inc()
}

func (r *Recorder) Deleted(table string) {
	r.deletes.WithLabelValues(table).Inc()
}

func (r *Recorder) LeaveSuppressed(table string) {
	r.suppressed.WithLabelValues(table).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
