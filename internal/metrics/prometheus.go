package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xmhha/fundme-harness/internal/collector"
	"github.com/0xmhha/fundme-harness/internal/harness"
)

// Metrics holds all Prometheus metrics of a harness run
type Metrics struct {
	// Case outcomes by result label (PASS, FAIL, SKIP)
	Cases *prometheus.CounterVec

	// Case duration histogram
	CaseDuration prometheus.Histogram

	// Unexpected reverts surfaced by failed cases
	UnexpectedReverts prometheus.Counter

	// Settled transactions by method and status
	Txs *prometheus.CounterVec

	// Confirmation latency histogram (buckets: 100ms .. 60s)
	TxLatency prometheus.Histogram

	// Gas metrics
	GasUsedTotal prometheus.Counter
	GasCostWei   prometheus.Counter

	// Pipeline stage duration histogram
	StageDuration *prometheus.HistogramVec

	registry *prometheus.Registry

	// HTTP server
	server *http.Server
	addr   string
	mu     sync.Mutex
}

// NewMetrics creates a new Metrics instance with its own registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Total number of suite cases by result",
		}, []string{"result"}),
		CaseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_duration_seconds",
			Help:      "Duration of each case including its hooks",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		UnexpectedReverts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unexpected_reverts_total",
			Help:      "Cases that failed on a contract revert",
		}),
		Txs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_total",
			Help:      "Total number of settled transactions by method and status",
		}, []string{"method", "status"}),
		TxLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tx_latency_seconds",
			Help:      "Transaction confirmation latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		GasUsedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_used_total",
			Help:      "Total gas used by settled transactions",
		}),
		GasCostWei: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_cost_wei_total",
			Help:      "Total gasUsed * effectiveGasPrice paid, in wei",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		registry: reg,
	}
}

// Handler serves the metrics of this instance
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Start starts the HTTP server for Prometheus metrics. Port 0 picks a free port.
func (m *Metrics) Start(_ context.Context, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.server = server
	m.addr = ln.Addr().String()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the listen address of the running server
func (m *Metrics) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Stop stops the HTTP server gracefully
func (m *Metrics) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	m.addr = ""
	return err
}

// IsRunning returns true if the metrics server is running
func (m *Metrics) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server != nil
}

// ObserveCase records the outcome of one case
func (m *Metrics) ObserveCase(res *harness.Result) {
	m.Cases.WithLabelValues(res.Status.String()).Inc()
	if res.Status == harness.StatusSkipped {
		return
	}
	m.CaseDuration.Observe(res.Duration.Seconds())
}

// RecordUnexpectedRevert counts a case that failed on a revert
func (m *Metrics) RecordUnexpectedRevert() {
	m.UnexpectedReverts.Inc()
}

// ObserveTx records a settled transaction; it fits collector.OnSettled
func (m *Metrics) ObserveTx(info *collector.TxInfo) {
	method := info.Method
	if method == "" {
		method = "unknown"
	}
	m.Txs.WithLabelValues(method, info.Status.String()).Inc()

	if info.Receipt == nil {
		return
	}
	m.TxLatency.Observe(info.Latency.Seconds())
	m.RecordGasUsed(info.GasUsed)
	m.RecordGasCost(info.GasCost)
}

// RecordGasUsed adds to the total gas used counter
func (m *Metrics) RecordGasUsed(gasUsed uint64) {
	m.GasUsedTotal.Add(float64(gasUsed))
}

// RecordGasCost adds wei to the gas cost counter
func (m *Metrics) RecordGasCost(wei *big.Int) {
	if wei == nil || wei.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(wei).Float64()
	m.GasCostWei.Add(f)
}

// RecordStageDuration records the duration of a pipeline stage
func (m *Metrics) RecordStageDuration(stage string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
