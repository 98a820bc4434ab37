package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Op string

const (
	OpAdd         Op = "add"
	OpRemove      Op = "remove"
	OpSetQuantity Op = "set_quantity"
	OpClear       Op = "clear"
)

// Change is delivered to observers after a mutation has been persisted.
// Items is a copy and may be retained.
type Change struct {
	Key    string
	Op     Op
	Totals Totals
	Items  []LineItem
}

type Observer func(Change)

type Metrics struct {
	mutations *prometheus.CounterVec
	items     prometheus.Histogram
	subtotal  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Persisted cart mutations by operation",
		}, []string{"op"}),
		items: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "item_count",
			Help:      "Units in a cart after a mutation",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		subtotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "subtotal_rupees",
			Help:      "Cart subtotal after a mutation",
			Buckets:   prometheus.ExponentialBuckets(50, 2, 10),
		}),
	}
	reg.MustRegister(m.mutations, m.items, m.subtotal)
	return m
}

func (m *Metrics) Observe(c Change) {
	m.mutations.WithLabelValues(string(c.Op)).Inc()
	m.items.Observe(float64(c.Totals.ItemCount))
	m.subtotal.Observe(float64(c.Totals.Subtotal))
}

func LogObserver(log *zap.Logger) Observer {
	return func(c Change) {
		log.Debug("cart changed",
			zap.String("key", c.Key),
			zap.String("op", string(c.Op)),
			zap.Int("lines", len(c.Items)),
			zap.Int("item_count", c.Totals.ItemCount),
			zap.Int64("subtotal", c.Totals.Subtotal),
		)
	}
}
