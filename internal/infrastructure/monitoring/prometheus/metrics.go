package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
)

// AppMetrics holds the metrics of the resolver processes. It implements the
// observer interfaces of the resolution, acquisition and reference packages.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Resolution
	ResolutionsTotal      CounterVec
	ResolutionDuration    HistogramVec
	SynonymLookupsTotal   CounterVec
	SynonymLookupDuration HistogramVec
	CacheHitsTotal        CounterVec
	CacheMissesTotal      CounterVec

	// Reference store
	ReferenceReloadsTotal CounterVec
	ReferenceRows         GaugeVec
	ReferenceLoadedAt     GaugeVec

	// Acquisition
	AcquisitionLookupsTotal   CounterVec
	AcquisitionLookupDuration HistogramVec
	MessagesProcessedTotal    CounterVec

	ErrorsTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultLookupDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}
)

// NewAppMetrics registers every metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.ResolutionsTotal = collector.RegisterCounter("resolutions_total", "Resolved queries by best match type", "outcome")
	m.ResolutionDuration = collector.RegisterHistogram("resolution_duration_seconds", "Time spent resolving one query", DefaultHTTPDurationBuckets, "outcome")
	m.SynonymLookupsTotal = collector.RegisterCounter("synonym_lookups_total", "Synonym group lookups", "found")
	m.SynonymLookupDuration = collector.RegisterHistogram("synonym_lookup_duration_seconds", "Time spent grouping synonyms", DefaultHTTPDurationBuckets)
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Result cache hits", "operation")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Result cache misses", "operation")

	m.ReferenceReloadsTotal = collector.RegisterCounter("reference_reloads_total", "Reference store reload attempts", "source", "status")
	m.ReferenceRows = collector.RegisterGauge("reference_rows", "Rows in the current reference store", "table")
	m.ReferenceLoadedAt = collector.RegisterGauge("reference_loaded_timestamp_seconds", "Unix time the current reference store was installed", "source")

	m.AcquisitionLookupsTotal = collector.RegisterCounter("acquisition_lookups_total", "Compound lookups by outcome", "outcome")
	m.AcquisitionLookupDuration = collector.RegisterHistogram("acquisition_lookup_duration_seconds", "Compound lookup duration", DefaultLookupDurationBuckets, "outcome")
	m.MessagesProcessedTotal = collector.RegisterCounter("messages_processed_total", "Consumed messages", "topic", "status")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// RecordHTTPRequest records one served request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *AppMetrics) ObserveResolution(outcome string, elapsed time.Duration) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *AppMetrics) ObserveSynonymLookup(found bool, elapsed time.Duration) {
	m.SynonymLookupsTotal.WithLabelValues(strconv.FormatBool(found)).Inc()
	m.SynonymLookupDuration.WithLabelValues().Observe(elapsed.Seconds())
}

func (m *AppMetrics) ObserveCache(operation string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(operation).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(operation).Inc()
}

func (m *AppMetrics) ObserveAcquisition(outcome string, elapsed time.Duration) {
	m.AcquisitionLookupsTotal.WithLabelValues(outcome).Inc()
	m.AcquisitionLookupDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveReload records a reload attempt. store is nil when the reload
// failed and the previous store stayed in place.
func (m *AppMetrics) ObserveReload(source string, store *substance.Store, err error) {
	if err != nil || store == nil {
		m.ReferenceReloadsTotal.WithLabelValues(source, "failure").Inc()
		return
	}
	m.ReferenceReloadsTotal.WithLabelValues(source, "success").Inc()

	st := store.Stats()
	m.ReferenceRows.WithLabelValues("references").Set(float64(st.References))
	m.ReferenceRows.WithLabelValues("synonyms").Set(float64(st.Synonyms))
	m.ReferenceRows.WithLabelValues("unjoined_synonyms").Set(float64(st.UnjoinedSynonyms))
	m.ReferenceRows.WithLabelValues("weighting_tags").Set(float64(st.WeightingTags))
	m.ReferenceRows.WithLabelValues("substance_types").Set(float64(st.SubstanceTypes))
	m.ReferenceRows.WithLabelValues("shared_codes").Set(float64(len(st.SharedCodes)))
	m.ReferenceLoadedAt.WithLabelValues(source).Set(float64(time.Now().Unix()))
}

// ObserveMessage records one consumed message.
func (m *AppMetrics) ObserveMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.MessagesProcessedTotal.WithLabelValues(topic, status).Inc()
}

// RecordError counts an error by component and error code.
func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
