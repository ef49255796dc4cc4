package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 240},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "component_shutdown_duration_seconds",
		Help:    "Time taken to shutdown individual components",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 180},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// Func shuts down one component
type Func func(context.Context) error

type component struct {
	name string
	fn   Func
}

// Manager coordinates graceful shutdown. Components are stopped one at a time
// in reverse registration order, all sharing a single deadline.
type Manager struct {
	logger     *zap.Logger
	timeout    time.Duration
	mu         sync.Mutex
	components []component
	signals    []os.Signal
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Register adds a component. The last registered component is stopped first.
func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component{name: name, fn: fn})

	m.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(m.components)),
	)
}

// RegisterHTTPServer registers anything with an http.Server style Shutdown
func (m *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	m.Register(name, server.Shutdown)
}

// RegisterNoErr registers a shutdown function that cannot fail
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts everything down
func (m *Manager) WaitForShutdown() map[string]error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, m.signals...)
	defer signal.Stop(quit)

	sig := <-quit
	m.logger.Info("Received shutdown signal - initiating graceful shutdown",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", m.timeout),
	)

	return m.Shutdown()
}

// Shutdown stops every registered component and returns the failures by component name
func (m *Manager) Shutdown() map[string]error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	m.logger.Info("Starting graceful shutdown",
		zap.Int("component_count", len(components)),
		zap.Duration("timeout", m.timeout),
	)

	failures := make(map[string]error)
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		compStart := time.Now()

		if err := comp.fn(ctx); err != nil {
			failures[comp.name] = err
			shutdownErrors.WithLabelValues(comp.name).Inc()
			m.logger.Error("Component shutdown failed",
				zap.String("component", comp.name),
				zap.Duration("elapsed", time.Since(compStart)),
				zap.Error(err),
			)
		} else {
			m.logger.Info("Component shut down",
				zap.String("component", comp.name),
				zap.Duration("elapsed", time.Since(compStart)),
			)
		}
		componentShutdownDuration.WithLabelValues(comp.name).Observe(time.Since(compStart).Seconds())
	}

	elapsed := time.Since(start)
	shutdownDuration.Observe(elapsed.Seconds())

	if len(failures) > 0 {
		m.logger.Error("Graceful shutdown completed with errors",
			zap.Int("error_count", len(failures)),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		m.logger.Info("Graceful shutdown completed successfully",
			zap.Duration("elapsed", elapsed),
		)
	}
	return failures
}
