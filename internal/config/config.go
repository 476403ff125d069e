package config

import (
	"fmt"
	"strings"
	"time"
)

// Config describes one load test. It is treated as immutable once Validate
// has accepted it.
type Config struct {
	// Target resolution: either TargetURL, or BaseURL+Endpoint.
	TargetURL string            `mapstructure:"url"`
	BaseURL   string            `mapstructure:"base_url"`
	Endpoint  string            `mapstructure:"endpoint"`
	Method    string            `mapstructure:"method"`
	Headers   map[string]string `mapstructure:"headers"`

	// Body is the inline request body. With DynamicData set it is parsed as
	// a JSON template and expanded per request.
	Body        string `mapstructure:"body"`
	BodyFile    string `mapstructure:"body_file"`
	DynamicData bool   `mapstructure:"dynamic_data"`

	// Load shape.
	Rate     int           `mapstructure:"rps"`
	Total    int           `mapstructure:"requests"`
	Duration time.Duration `mapstructure:"duration"`
	RampUp   []int         `mapstructure:"ramp_up"`
	MaxRate  int           `mapstructure:"max_rps"`

	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`

	// Presentation.
	Silent     bool     `mapstructure:"silent"`
	JSONOutput bool     `mapstructure:"json_output"`
	Dashboard  bool     `mapstructure:"dashboard"`
	LogErrors  bool     `mapstructure:"log_errors"`
	HTMLOutput string   `mapstructure:"html_output"`
	Thresholds []string `mapstructure:"thresholds"`

	Tracing TracingConfig `mapstructure:"tracing"`

	ConfigFile string `mapstructure:"-"`
}

// TracingConfig enables optional OTLP span export for issued requests.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Protocol    string `mapstructure:"protocol"` // "http" or "grpc"
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
	Propagate   bool   `mapstructure:"propagate"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// RampMode reports whether the ramp-up schedule is active.
func (c Config) RampMode() bool {
	return len(c.RampUp) > 0
}

// ResolvedURL returns the effective target: TargetURL when set, otherwise
// BaseURL+Endpoint.
func (c Config) ResolvedURL() string {
	if url := strings.TrimSpace(c.TargetURL); url != "" {
		return url
	}
	return strings.TrimSpace(c.BaseURL) + strings.TrimSpace(c.Endpoint)
}

// ValidationError aggregates every configuration violation found in one
// Validate pass, one line per violation.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "invalid configuration"
	}
	return "invalid configuration:\n" + strings.Join(e.issues, "\n")
}

// Issues returns a copy of the individual violation lines.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration and reports every violation together.
// Checks never short-circuit: a config missing three things produces three
// lines in one error.
func (c Config) Validate() error {
	var issues []string

	hasURL := strings.TrimSpace(c.TargetURL) != ""
	hasBasePair := strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.Endpoint) != ""
	if !hasURL && !hasBasePair {
		issues = append(issues, "either url or both baseUrl and endpoint are required")
	}

	if c.Rate <= 0 {
		issues = append(issues, "requestsPerSecond must be a positive number")
	}

	if c.Total <= 0 && c.Duration <= 0 {
		issues = append(issues, "either totalRequests or duration is required")
	}

	for i, rps := range c.RampUp {
		if rps <= 0 {
			issues = append(issues, fmt.Sprintf("rampUp[%d] must be a positive number", i))
		}
	}
	if c.RampMode() && c.Duration <= 0 {
		issues = append(issues, "rampUp requires a duration to divide across stages")
	}

	if c.MaxRate < 0 {
		issues = append(issues, "maxRequestsPerSecond must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}
	if c.DynamicData && strings.TrimSpace(c.Body) == "" && strings.TrimSpace(c.BodyFile) == "" {
		issues = append(issues, "dynamicData requires a body template")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
