package telemetry

// Histogram bucket definitions
var (
	// CodecBuckets for in-process encode/decode latency
	CodecBuckets = []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01}

	// SizeBuckets for stored and raw document sizes in bytes
	SizeBuckets = []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304}
)

// Materialization metrics
var (
	// MaterializeTotal counts materializations by representation (inline, compressed, external)
	MaterializeTotal CounterVec = noopCounterVec{}

	// MaterializeFailuresTotal counts failed host fetches by representation
	MaterializeFailuresTotal CounterVec = noopCounterVec{}

	// FreshBuffersOutstanding tracks materialized buffers not yet released
	FreshBuffersOutstanding Gauge = NoopStat{}

	// FreshBufferReleasesTotal counts buffers handed back to the host
	FreshBufferReleasesTotal Counter = NoopStat{}
)

// Codec metrics
var (
	// DecodeTotal counts decode calls by result (ok, error)
	DecodeTotal CounterVec = noopCounterVec{}

	// DecodeErrorsTotal counts decode failures by kind (length_mismatch, truncated, invalid_tag, malformed)
	DecodeErrorsTotal CounterVec = noopCounterVec{}

	// DecodeDurationSeconds measures decode latency
	DecodeDurationSeconds Histogram = NoopStat{}

	// EncodeDurationSeconds measures encode latency
	EncodeDurationSeconds Histogram = NoopStat{}
)

// Storage layout metrics
var (
	// ToastTotal counts written values by chosen representation
	ToastTotal CounterVec = noopCounterVec{}

	// RawBytes measures encoded document size before storage layout
	RawBytes Histogram = NoopStat{}

	// StoredBytes measures the datum size written to the host, by representation
	StoredBytes HistogramVec = noopHistogramVec{}

	// ExternalStoreBytes tracks disk usage of the out-of-line store
	ExternalStoreBytes Gauge = NoopStat{}
)

// InitMetrics initializes all metrics. Called from InitializeTelemetry once
// the registry exists.
func InitMetrics() {
	MaterializeTotal = NewCounterVec(
		"materialize_total",
		"Materializations by stored representation",
		[]string{"repr"},
	)
	MaterializeFailuresTotal = NewCounterVec(
		"materialize_failures_total",
		"Failed host fetches by stored representation",
		[]string{"repr"},
	)
	FreshBuffersOutstanding = NewGauge(
		"fresh_buffers_outstanding",
		"Materialized buffers allocated by the host and not yet released",
	)
	FreshBufferReleasesTotal = NewCounter(
		"fresh_buffer_releases_total",
		"Materialized buffers released back to the host",
	)

	DecodeTotal = NewCounterVec(
		"decode_total",
		"Document decodes by result",
		[]string{"result"},
	)
	DecodeErrorsTotal = NewCounterVec(
		"decode_errors_total",
		"Document decode failures by structural check",
		[]string{"kind"},
	)
	DecodeDurationSeconds = NewHistogramWithBuckets(
		"decode_duration_seconds",
		"Document decode duration in seconds",
		CodecBuckets,
	)
	EncodeDurationSeconds = NewHistogramWithBuckets(
		"encode_duration_seconds",
		"Document encode duration in seconds",
		CodecBuckets,
	)

	ToastTotal = NewCounterVec(
		"toast_total",
		"Written values by chosen storage representation",
		[]string{"repr"},
	)
	RawBytes = NewHistogramWithBuckets(
		"raw_bytes",
		"Encoded document size in bytes",
		SizeBuckets,
	)
	StoredBytes = NewHistogramVec(
		"stored_bytes",
		"Stored datum size in bytes by representation",
		[]string{"repr"},
		SizeBuckets,
	)
	ExternalStoreBytes = NewGauge(
		"external_store_bytes",
		"Disk usage of the out-of-line value store",
	)
}
