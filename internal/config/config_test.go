package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		TargetURL: "http://localhost:8080/api",
		Method:    "GET",
		Rate:      10,
		Total:     100,
		Timeout:   30 * time.Second,
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsBaseURLPlusEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.TargetURL = ""
	cfg.BaseURL = "http://localhost:8080"
	cfg.Endpoint = "/api"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsAllViolationsTogether(t *testing.T) {
	// Only rps set, and set wrong: expect three distinct violation lines for
	// the missing target, the non-positive rate, and the missing work size.
	cfg := Config{Rate: 0}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Issues()) != 3 {
		t.Fatalf("expected 3 issues, got %d: %v", len(verr.Issues()), verr.Issues())
	}

	msg := err.Error()
	for _, fragment := range []string{
		"either url or both baseUrl and endpoint are required",
		"requestsPerSecond must be a positive number",
		"either totalRequests or duration is required",
	} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("message missing %q:\n%s", fragment, msg)
		}
	}
	if lines := strings.Split(msg, "\n"); len(lines) < 4 {
		t.Fatalf("expected one line per violation, got: %q", msg)
	}
}

func TestValidateRampUpValues(t *testing.T) {
	cfg := validConfig()
	cfg.RampUp = []int{10, 0, -5}
	cfg.Duration = 30 * time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Issues()) != 2 {
		t.Fatalf("expected 2 issues, got %v", verr.Issues())
	}
}

func TestValidateRampUpRequiresDuration(t *testing.T) {
	// Stage length is duration / stages; without a duration every stage
	// would be zero-length and the run would issue nothing.
	cfg := validConfig()
	cfg.RampUp = []int{10, 50}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for rampUp without duration")
	}
	if !strings.Contains(err.Error(), "rampUp requires a duration") {
		t.Fatalf("unexpected message: %v", err)
	}

	cfg.Duration = 10 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with duration set: %v", err)
	}
}

func TestValidateDurationSatisfiesWorkSize(t *testing.T) {
	cfg := validConfig()
	cfg.Total = 0
	cfg.Duration = 10 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateBodyMutualExclusion(t *testing.T) {
	cfg := validConfig()
	cfg.Body = `{"a":1}`
	cfg.BodyFile = "body.json"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for body+bodyFile")
	}
}

func TestValidateDynamicDataRequiresBody(t *testing.T) {
	cfg := validConfig()
	cfg.DynamicData = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for dynamicData without body")
	}
}

func TestResolvedURL(t *testing.T) {
	cfg := Config{TargetURL: "http://a/x"}
	if got := cfg.ResolvedURL(); got != "http://a/x" {
		t.Fatalf("unexpected url: %s", got)
	}
	cfg = Config{BaseURL: "http://a", Endpoint: "/x"}
	if got := cfg.ResolvedURL(); got != "http://a/x" {
		t.Fatalf("unexpected joined url: %s", got)
	}
}

func TestRampMode(t *testing.T) {
	if (Config{}).RampMode() {
		t.Fatal("empty rampUp must not select ramp mode")
	}
	if !(Config{RampUp: []int{10}}).RampMode() {
		t.Fatal("rampUp presence must select ramp mode")
	}
}
