package prometheus

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is what the exporter reads. *sessionguard.Engine satisfies it.
type Source interface {
	MetricsSnapshot() sessionguard.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source Source
}

// New returns an exporter reading from source.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics. Mount it on /metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = e.WriteTo(w)
	})
}

// Render returns the exposition as a string. It is empty when metrics are
// disabled and nothing was dropped.
func (e *Exporter) Render() string {
	var sb strings.Builder
	_, _ = e.WriteTo(&sb)
	return sb.String()
}

// WriteTo writes the exposition to w.
func (e *Exporter) WriteTo(w io.Writer) (int64, error) {
	if e == nil || e.source == nil {
		return 0, nil
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: bufio.NewWriterSize(w, 8192)}
	for _, def := range internaldefs.Defs {
		if def.Kind == internaldefs.Histogram {
			cw.histogram(def.Name, def.Help, internaldefs.Cumulative(snapshot.Histograms[def.ID]))
			continue
		}
		cw.counter(def.Name, def.Help, snapshot.Counters[def.ID])
	}
	cw.counter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)

	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) write(parts ...string) {
	for _, p := range parts {
		if c.err != nil {
			return
		}
		n, err := c.w.WriteString(p)
		c.n += int64(n)
		c.err = err
	}
}

func (c *countingWriter) header(name, help, kind string) {
	c.write("# HELP ", name, " ", escapeHelp(help), "\n", "# TYPE ", name, " ", kind, "\n")
}

func (c *countingWriter) counter(name, help string, value uint64) {
	c.header(name, help, "counter")
	c.write(name, " ", strconv.FormatUint(value, 10), "\n")
}

func (c *countingWriter) histogram(name, help string, cumulative []uint64) {
	c.header(name, help, "histogram")
	for i, le := range internaldefs.BucketLabels {
		c.write(name, `_bucket{le="`, le, `"} `, strconv.FormatUint(cumulative[i], 10), "\n")
	}
	c.write(name, "_count ", strconv.FormatUint(cumulative[len(cumulative)-1], 10), "\n")
	// Snapshots carry bucket counts only.
	c.write(name, "_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}
