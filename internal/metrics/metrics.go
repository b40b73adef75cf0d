// Package metrics exposes connection and conversation counters in the
// Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/socketclient"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = consts.AppName

var allStates = []socketclient.ConnectionState{
	socketclient.StateDisconnected,
	socketclient.StateConnecting,
	socketclient.StateConnected,
	socketclient.StateReconnecting,
}

// Collector records client and session activity on a private registry. It
// implements socketclient.Observer and session.Recorder.
type Collector struct {
	registry *prometheus.Registry

	connectionState *prometheus.GaugeVec
	reconnects      prometheus.Counter
	retryDelay      prometheus.Gauge
	dropped         prometheus.Counter
	events          *prometheus.CounterVec
	folded          *prometheus.CounterVec
	submissions     *prometheus.CounterVec
}

// NewCollector creates a collector with all series registered
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "Current connection state; exactly one state is 1.",
			},
			[]string{"state"},
		),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts scheduled.",
		}),
		retryDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconnect_delay_seconds",
			Help:      "Delay of the most recently scheduled reconnect.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_dropped_total",
			Help:      "Inbound frames discarded because they did not decode.",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Inbound events decoded, by type.",
			},
			[]string{"type"},
		),
		folded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_folded_total",
				Help:      "Events applied to the transcript, by type and whether they changed it.",
			},
			[]string{"type", "applied"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Question submissions, by result.",
			},
			[]string{"result"},
		),
	}

	c.registry.MustRegister(
		c.connectionState,
		c.reconnects,
		c.retryDelay,
		c.dropped,
		c.events,
		c.folded,
		c.submissions,
	)
	c.StateChanged(socketclient.StateDisconnected)

	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// StateChanged sets the one-hot connection state gauge
func (c *Collector) StateChanged(state socketclient.ConnectionState) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.connectionState.WithLabelValues(s.String()).Set(v)
	}
}

// RetryScheduled counts a scheduled reconnect
func (c *Collector) RetryScheduled(attempt int, delay time.Duration) {
	c.reconnects.Inc()
	c.retryDelay.Set(delay.Seconds())
}

// PayloadDropped counts a frame that failed to decode
func (c *Collector) PayloadDropped() {
	c.dropped.Inc()
}

// EventReceived counts a decoded event
func (c *Collector) EventReceived(kind string) {
	c.events.WithLabelValues(kind).Inc()
}

// SubmissionRecorded counts an accepted or rejected submission
func (c *Collector) SubmissionRecorded(accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	c.submissions.WithLabelValues(result).Inc()
}

// EventFolded counts an event applied to the transcript
func (c *Collector) EventFolded(kind string, applied bool) {
	c.folded.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: logger.StdLogger(logger.Global().WithPrefix("metrics"), slog.LevelError),
	})
}

// Serve exposes /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.serve(ctx, ln)
}

func (c *Collector) serve(ctx context.Context, ln net.Listener) error {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", c.Handler())

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: consts.Timeout5Seconds,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening on %s", ln.Addr())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
