package httpclient

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/template"
)

// Generator produces a request body from a request id. Supplying one takes
// precedence over any configured body text.
type Generator func(requestID int64) ([]byte, error)

// BodySource yields the payload for one request. Static sources return the
// same bytes every call; templated sources expand placeholders per request.
type BodySource interface {
	Bytes(requestID int64) ([]byte, error)
	Static() bool
}

// NewBodySource builds the body source described by the config: an inline or
// file body, optionally treated as a template when DynamicData is set.
func NewBodySource(cfg *config.Config, engine *template.Engine) (BodySource, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Body != "" && strings.TrimSpace(cfg.BodyFile) != "" {
		return nil, errors.New("body and body file cannot both be provided")
	}

	data := []byte(cfg.Body)
	if bodyFile := strings.TrimSpace(cfg.BodyFile); bodyFile != "" {
		info, err := os.Stat(bodyFile)
		if err != nil {
			return nil, fmt.Errorf("body file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("body file %q is a directory", bodyFile)
		}
		data, err = os.ReadFile(bodyFile)
		if err != nil {
			return nil, fmt.Errorf("body file: %w", err)
		}
	}

	if len(data) == 0 {
		return emptyBodySource{}, nil
	}

	if cfg.DynamicData {
		tree, err := template.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("body template: %w", err)
		}
		if engine == nil {
			engine = template.NewEngine()
		}
		return &templateBodySource{tree: tree, engine: engine}, nil
	}

	return &staticBodySource{data: data}, nil
}

// GeneratorSource wraps a user-supplied body generator function.
func GeneratorSource(gen Generator) BodySource {
	return &generatorBodySource{gen: gen}
}

type staticBodySource struct {
	data []byte
}

func (s *staticBodySource) Bytes(int64) ([]byte, error) { return s.data, nil }
func (s *staticBodySource) Static() bool                { return true }

type templateBodySource struct {
	tree   template.Node
	engine *template.Engine
}

func (s *templateBodySource) Bytes(requestID int64) ([]byte, error) {
	return s.engine.Expand(s.tree, requestID).JSON()
}

func (s *templateBodySource) Static() bool { return false }

type generatorBodySource struct {
	gen Generator
}

func (s *generatorBodySource) Bytes(requestID int64) ([]byte, error) {
	return s.gen(requestID)
}

func (s *generatorBodySource) Static() bool { return false }

type emptyBodySource struct{}

func (emptyBodySource) Bytes(int64) ([]byte, error) { return nil, nil }
func (emptyBodySource) Static() bool                { return true }

// HasBody reports whether the source ever produces payload bytes.
func HasBody(src BodySource) bool {
	_, empty := src.(emptyBodySource)
	return !empty
}
