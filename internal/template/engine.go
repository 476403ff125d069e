// Package template expands placeholder strings inside JSON-like payload
// trees, producing a fresh payload per request.
package template

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Supported placeholders. Each occurrence is substituted independently, so a
// string holding two {randomNumber:100} draws two values.
//
//	{id}              request sequence number
//	{timestamp}       current epoch milliseconds
//	{randomNumber:N}  random integer in [0, N)
//	{randomString:N}  random alphanumeric string of length N
var placeholderPattern = regexp.MustCompile(`\{(id|timestamp|randomNumber:\d+|randomString:\d+)\}`)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Engine performs placeholder expansion. Safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// Option customizes an Engine, used by tests for determinism.
type Option func(*Engine)

// WithRandSource supplies a seeded random source.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rnd = rand.New(src) }
}

// WithClock overrides the wall clock used for {timestamp}.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand walks the tree and substitutes placeholders in every string leaf,
// including strings nested inside arrays. The input is never mutated; the
// returned tree shares no slices with it.
func (e *Engine) Expand(n Node, requestID int64) Node {
	switch n.Kind {
	case KindString:
		n.Str = e.ExpandString(n.Str, requestID)
		return n
	case KindObject:
		fields := make([]Field, len(n.Fields))
		for i, field := range n.Fields {
			fields[i] = Field{Name: field.Name, Value: e.Expand(field.Value, requestID)}
		}
		n.Fields = fields
		return n
	case KindArray:
		items := make([]Node, len(n.Items))
		for i, item := range n.Items {
			items[i] = e.Expand(item, requestID)
		}
		n.Items = items
		return n
	default:
		return n
	}
}

// ExpandString substitutes all placeholder occurrences within one string.
func (e *Engine) ExpandString(s string, requestID int64) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		switch {
		case name == "id":
			return strconv.FormatInt(requestID, 10)
		case name == "timestamp":
			return strconv.FormatInt(e.now().UnixMilli(), 10)
		case strings.HasPrefix(name, "randomNumber:"):
			bound, err := strconv.Atoi(name[len("randomNumber:"):])
			if err != nil || bound <= 0 {
				return "0"
			}
			return strconv.Itoa(e.intn(bound))
		case strings.HasPrefix(name, "randomString:"):
			length, err := strconv.Atoi(name[len("randomString:"):])
			if err != nil || length <= 0 {
				return ""
			}
			return e.randomString(length)
		}
		return match
	})
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}

func (e *Engine) randomString(length int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(alphanumeric[e.rnd.Intn(len(alphanumeric))])
	}
	return b.String()
}
