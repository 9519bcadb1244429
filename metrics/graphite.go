package metrics

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"minigram/common/logx"
)

type graphiteMetric interface {
	// flush returns the value to report and whether it should be reported.
	flush() (float64, bool)
	// restore takes back a flushed value which could not be sent.
	restore(value float64)
}

// graphiteCounter reports the increment since the previous flush.
type graphiteCounter struct{ value atomicFloat }

func (c *graphiteCounter) Inc()              { c.value.add(1) }
func (c *graphiteCounter) Add(delta float64) { c.value.add(delta) }

func (c *graphiteCounter) flush() (float64, bool) {
	value := c.value.swap(0)
	return value, value != 0
}

func (c *graphiteCounter) restore(value float64) { c.value.add(value) }

// graphiteGauge reports its current value on every flush.
type graphiteGauge struct{ value atomicFloat }

func (g *graphiteGauge) Set(value float64) { g.value.store(value) }
func (g *graphiteGauge) Inc()              { g.value.add(1) }
func (g *graphiteGauge) Dec()              { g.value.add(-1) }
func (g *graphiteGauge) Add(delta float64) { g.value.add(delta) }
func (g *graphiteGauge) Sub(delta float64) { g.value.add(-delta) }

func (g *graphiteGauge) flush() (float64, bool) {
	return g.value.load(), true
}

func (g *graphiteGauge) restore(float64) {}

type graphiteState struct {
	address string
	entries map[string]graphiteMetric
	log     *logrus.Entry
	mu      sync.RWMutex
}

// Graphite pushes metrics to a carbon server using the plaintext protocol.
// Values produced by WithPrefix share the same state.
type Graphite struct {
	prefix string
	state  *graphiteState
}

func NewGraphite(address string) Graphite {
	return Graphite{
		state: &graphiteState{
			address: address,
			entries: make(map[string]graphiteMetric),
			log:     logx.Get("graphite").WithField("address", address),
		},
	}
}

// Run flushes metrics every interval until ctx is done, then flushes once more.
func (g Graphite) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := g.Flush(time.Now()); err != nil {
				g.state.log.WithError(err).Warn("final flush failed")
			}

			return
		case now := <-ticker.C:
			if err := g.Flush(now); err != nil {
				g.state.log.WithError(err).Warn("flush failed")
			}
		}
	}
}

// Flush sends the current values in a single connection.
// Counter increments are kept for the next flush when sending fails.
func (g Graphite) Flush(now time.Time) (err error) {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	b := new(strings.Builder)
	flushed := make(map[graphiteMetric]float64)

	g.state.mu.RLock()
	for key, metric := range g.state.entries {
		value, ok := metric.flush()
		if !ok {
			continue
		}

		flushed[metric] = value
		b.WriteString(key)
		b.WriteRune(' ')
		b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
		b.WriteRune(' ')
		b.WriteString(timestamp)
		b.WriteRune('\n')
	}
	g.state.mu.RUnlock()

	if b.Len() == 0 {
		return nil
	}

	defer func() {
		if err != nil {
			for metric, value := range flushed {
				metric.restore(value)
			}
		}
	}()

	conn, err := net.DialTimeout("tcp", g.state.address, 5*time.Second)
	if err != nil {
		return errors.Wrap(err, "connect")
	}

	defer conn.Close()
	if _, err := conn.Write([]byte(b.String())); err != nil {
		return errors.Wrap(err, "write")
	}

	return nil
}

func (g Graphite) WithPrefix(prefix string) Metrics {
	if g.prefix != "" {
		g.prefix += "."
	}

	g.prefix += prefix
	return g
}

func (g Graphite) Counter(name string, labels Labels) Counter {
	return g.entry(g.key(name, labels), func() graphiteMetric { return new(graphiteCounter) }).(Counter)
}

func (g Graphite) Gauge(name string, labels Labels) Gauge {
	return g.entry(g.key(name, labels), func() graphiteMetric { return new(graphiteGauge) }).(Gauge)
}

func (g Graphite) entry(key string, create func() graphiteMetric) graphiteMetric {
	g.state.mu.RLock()
	entry, ok := g.state.entries[key]
	g.state.mu.RUnlock()
	if ok {
		return entry
	}

	g.state.mu.Lock()
	defer g.state.mu.Unlock()
	if entry, ok = g.state.entries[key]; !ok {
		entry = create()
		g.state.entries[key] = entry
	}

	return entry
}

// key renders label values before the metric name: prefix.value1.value2.name.
func (g Graphite) key(name string, labels Labels) string {
	parts := make([]string, 0, len(labels)+2)
	if g.prefix != "" {
		parts = append(parts, g.prefix)
	}

	for _, key := range labels.Keys() {
		parts = append(parts, strings.ReplaceAll(labels[key], ".", "_"))
	}

	return strings.Join(append(parts, name), ".")
}
