package purger

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/photovault/internal/logging"
)

var (
	requestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photovault_purge_requests_total",
		Help: "Blob-deletion calls issued by the purge pipeline.",
	})
	requestsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photovault_purge_requests_failed_total",
		Help: "Blob-deletion calls that failed outright.",
	})
	recordsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photovault_purge_records_total",
		Help: "Photo metadata records removed after confirmed blob deletion.",
	})
	refsQuarantined = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photovault_purge_quarantined_total",
		Help: "Blob references quarantined after repeated deletion failures.",
	})
)

func init() {
	for _, c := range []prometheus.Collector{requestsTotal, requestsFailed, recordsPurged, refsQuarantined} {
		if err := prometheus.Register(c); err != nil {
			// Already registered is fine (useful for testing).
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

// StartMetricsServer serves /metrics and /health on addr in the background.
func StartMetricsServer(addr string, logger logging.Logger) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		ctx := context.Background()
		logger.Info(ctx, "starting metrics server", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error(ctx, "metrics server failed", "err", err.Error())
		}
	}()
}
