// Package metrics abstracts the counters and gauges reported by the dispatcher.
package metrics

import "sort"

type Metrics interface {
	WithPrefix(prefix string) Metrics
	Counter(name string, labels Labels) Counter
	Gauge(name string, labels Labels) Gauge
}

type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
}

type Labels map[string]string

// Keys returns label names in sorted order.
func (labels Labels) Keys() []string {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}
