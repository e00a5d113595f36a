package config

// TracingConfig controls span sampling.  Spans are not exported; they give
// request logs and outbound gateway calls a shared trace id.
type TracingConfig struct {
	ServiceName string
	SampleRatio float64 // 0..1, applied to requests without a sampled parent
}

// LoadTracingConfig reads OTEL_SERVICE_NAME and TRACE_SAMPLE_RATIO.
func LoadTracingConfig() TracingConfig {
	ratio := envFloat("TRACE_SAMPLE_RATIO", 1)
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	return TracingConfig{
		ServiceName: getenv("OTEL_SERVICE_NAME", "hotel-reservation"),
		SampleRatio: ratio,
	}
}
