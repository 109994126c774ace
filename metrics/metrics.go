package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all PipMap metrics
const namespace = "pipmap"

// Registry is the Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// Map data metrics
var (
	// OSMFetchAttemptsTotal counts HTTP attempts against the map API by outcome
	OSMFetchAttemptsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "osm_fetch_attempts_total",
			Help:      "Total number of map API request attempts",
		},
		[]string{"result"}, // result: success|transient|permanent
	)

	// OSMFetchDuration records the latency of complete fetches including retries
	OSMFetchDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "osm_fetch_duration_seconds",
			Help:      "Duration of map fetches including retries",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// OSMSkippedElementsTotal counts elements dropped during normalization
	OSMSkippedElementsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "osm_skipped_elements_total",
			Help:      "Total number of malformed or unresolvable elements skipped",
		},
		[]string{"element"}, // element: node|way|bounds
	)

	// MapStagesTotal counts completed load stages
	MapStagesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "map_stages_total",
			Help:      "Total number of map load stages by kind and outcome",
		},
		[]string{"stage", "result"}, // stage: initial|expanding|cache, result: success|error
	)

	// MapRenderDuration records full surface redraws
	MapRenderDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "map_render_duration_seconds",
			Help:      "Duration of full map surface renders",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Geocoding metrics

// GeocodingRequestsTotal tracks reverse lookups by where the answer came from
var GeocodingRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocoding_requests_total",
		Help:      "Total number of reverse geocoding requests",
	},
	[]string{"source"}, // source: cache|nominatim|default
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
