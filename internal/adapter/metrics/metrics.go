package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pscheid92/hellopulse/internal/platform/version"
)

const namespace = "hellopulse"

// NewRegistry returns the registry one binary exposes on /metrics. Besides
// the Go and process collectors it carries hellopulse_build_info, so every
// scrape says which binary and build produced it.
func NewRegistry(binary string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newBuildInfo(binary, version.Get()),
	)
	return reg
}

func newBuildInfo(binary string, info version.Info) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Always 1; labels identify the running binary and build.",
		ConstLabels: prometheus.Labels{
			"binary":     binary,
			"version":    info.Version,
			"commit":     info.Commit,
			"go_version": info.GoVersion,
		},
	})
	g.Set(1)
	return g
}

// Handler serves reg, reporting its own scrape errors into reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
