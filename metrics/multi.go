package metrics

// Multi reports every value to all of the backends.
type Multi []Metrics

func (m Multi) WithPrefix(prefix string) Metrics {
	result := make(Multi, len(m))
	for i, backend := range m {
		result[i] = backend.WithPrefix(prefix)
	}

	return result
}

func (m Multi) Counter(name string, labels Labels) Counter {
	counters := make(multiCounter, len(m))
	for i, backend := range m {
		counters[i] = backend.Counter(name, labels)
	}

	return counters
}

func (m Multi) Gauge(name string, labels Labels) Gauge {
	gauges := make(multiGauge, len(m))
	for i, backend := range m {
		gauges[i] = backend.Gauge(name, labels)
	}

	return gauges
}

type multiCounter []Counter

func (c multiCounter) Inc() {
	for _, counter := range c {
		counter.Inc()
	}
}

func (c multiCounter) Add(delta float64) {
	for _, counter := range c {
		counter.Add(delta)
	}
}

type multiGauge []Gauge

func (g multiGauge) Set(value float64) {
	for _, gauge := range g {
		gauge.Set(value)
	}
}

func (g multiGauge) Inc() { g.Add(1) }
func (g multiGauge) Dec() { g.Add(-1) }

func (g multiGauge) Add(delta float64) {
	for _, gauge := range g {
		gauge.Add(delta)
	}
}

func (g multiGauge) Sub(delta float64) { g.Add(-delta) }
