package statemanager

import "github.com/prometheus/client_golang/prometheus"

// registerOrReuse registers a collector, returning the already-registered
// instance instead of panicking if NewStateManager is called more than
// once against the same registry (tests construct several managers
// against a shared default registry).
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// metrics holds the Prometheus collectors the state manager exposes.
// status.current_count and status.forwarding_add_errors are the two
// counters named explicitly in the external interfaces; flow-mod and
// stats-chunk counts are natural companions the wire protocol doesn't
// name but that observability around it always wants.
type metrics struct {
	currentCount      prometheus.GaugeFunc
	forwardingAddErrs prometheus.CounterFunc
	flowModTotal      *prometheus.CounterVec
	statsChunksTotal  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, table interface {
	CurrentCount() int
	ForwardingAddErrors() uint64
}) *metrics {
	m := &metrics{
		flowModTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ofagent",
			Name:      "flow_mod_total",
			Help:      "Number of flow modification messages handled, by command.",
		}, []string{"command"}),
		statsChunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofagent",
			Name:      "flow_stats_chunks_total",
			Help:      "Number of flow-stats multipart reply chunks sent.",
		}),
	}

	m.currentCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ofagent",
		Subsystem: "status",
		Name:      "current_count",
		Help:      "Number of flow entries currently programmed.",
	}, func() float64 { return float64(table.CurrentCount()) })

	m.forwardingAddErrs = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "ofagent",
		Subsystem: "status",
		Name:      "forwarding_add_errors",
		Help:      "Number of flow adds rejected by the forwarding layer.",
	}, func() float64 { return float64(table.ForwardingAddErrors()) })

	if reg != nil {
		m.currentCount = registerOrReuse(reg, m.currentCount).(prometheus.GaugeFunc)
		m.forwardingAddErrs = registerOrReuse(reg, m.forwardingAddErrs).(prometheus.CounterFunc)
		m.flowModTotal = registerOrReuse(reg, m.flowModTotal).(*prometheus.CounterVec)
		m.statsChunksTotal = registerOrReuse(reg, m.statsChunksTotal).(prometheus.Counter)
	}

	return m
}
