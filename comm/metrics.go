package comm

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts the cross-process traffic of a World. Self-deliveries are
// not counted: a value a process keeps for itself is not communication.
// Words are 8-byte payload elements (one int or one float64).
type Stats struct {
	mu       sync.Mutex
	messages [][]int64 // [src][dst]
	words    [][]int64
}

// Messages returns the number of messages sent from src to dst.
func (s *Stats) Messages(src, dst int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[src][dst]
}

// Words returns the number of payload words sent from src to dst.
func (s *Stats) Words(src, dst int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words[src][dst]
}

// WordsSentBy returns the total number of payload words src sent to other
// processes.
func (s *Stats) WordsSentBy(src int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, w := range s.words[src] {
		total += w
	}
	return total
}

// Snapshot returns a copy of the per-pair word counts.
func (s *Stats) Snapshot() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([][]int64, len(s.words))
	for i, row := range s.words {
		cp[i] = append([]int64(nil), row...)
	}
	return cp
}

// Metrics exposes the traffic counters of a World on a private prometheus
// registry, one counter pair per (src, dst) rank pair.
type Metrics struct {
	registry *prometheus.Registry
	messages *prometheus.CounterVec
	words    *prometheus.CounterVec
	stats    *Stats
}

func newMetrics(p int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spmv_comm_messages_total",
			Help: "Point-to-point messages exchanged between processes.",
		}, []string{"src", "dst"}),
		words: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spmv_comm_words_total",
			Help: "Payload words (8-byte elements) exchanged between processes.",
		}, []string{"src", "dst"}),
		stats: &Stats{
			messages: make([][]int64, p),
			words:    make([][]int64, p),
		},
	}
	for i := 0; i < p; i++ {
		m.stats.messages[i] = make([]int64, p)
		m.stats.words[i] = make([]int64, p)
	}
	m.registry.MustRegister(m.messages, m.words)
	return m
}

func (m *Metrics) count(src, dst, words int) {
	if src == dst {
		return
	}
	s, d := strconv.Itoa(src), strconv.Itoa(dst)
	m.messages.WithLabelValues(s, d).Inc()
	m.words.WithLabelValues(s, d).Add(float64(words))

	m.stats.mu.Lock()
	m.stats.messages[src][dst]++
	m.stats.words[src][dst] += int64(words)
	m.stats.mu.Unlock()
}

// Registry returns the prometheus registry holding the traffic counters,
// for callers that want to hook the world up to a scrape endpoint.
func (w *World) Registry() *prometheus.Registry { return w.metrics.registry }
