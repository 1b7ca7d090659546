package prometheus

import (
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sifan077/linkpulse/config"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	scrapeTimeout     = 10 * time.Second
	defaultPort       = 9090
)

// Handler serves the metrics in gatherer. Encoding errors are logged and the
// scrape continues with whatever could be collected.
func Handler(gatherer prom.Gatherer, log *zap.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:          zap.NewStdLog(log.Named("metrics")),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
		Timeout:           scrapeTimeout,
	})
}

// NewServer builds the side HTTP server exposing /metrics, kept off the
// public listener so scrapes never compete with redirects.
func NewServer(cfg config.PrometheusConfig, gatherer prom.Gatherer, log *zap.Logger) *http.Server {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer, log))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      scrapeTimeout + time.Second,
	}
}
