package runner

import (
	"time"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/metrics"
)

// Result captures one settled request.
type Result struct {
	ID         int64
	Success    bool
	StatusCode int
	Latency    time.Duration
	Timestamp  time.Time
	Err        error
}

// Progress describes the state after one completed constant-rate batch.
type Progress struct {
	Batch        int
	TotalBatches int
	Total        int64
	Successes    int64
	Failures     int64
	AchievedRPS  float64
	AvgLatency   time.Duration
}

// Stage describes one completed ramp-up stage.
type Stage struct {
	Index     int // 1-based
	TargetRPS int
}

// Observer receives lifecycle events. Dispatch happens synchronously on the
// scheduler's coordinating goroutine, so events arrive in emission order and
// implementations must not block for long.
type Observer interface {
	OnTestStart(cfg *config.Config)
	OnProgress(p Progress)
	OnRequestComplete(r Result)
	OnStageComplete(s Stage)
	OnTestComplete(stats metrics.Stats)
	OnError(err error)
}

// NopObserver implements Observer with no-ops. Embed it to handle a subset
// of events.
type NopObserver struct{}

func (NopObserver) OnTestStart(*config.Config)   {}
func (NopObserver) OnProgress(Progress)          {}
func (NopObserver) OnRequestComplete(Result)     {}
func (NopObserver) OnStageComplete(Stage)        {}
func (NopObserver) OnTestComplete(metrics.Stats) {}
func (NopObserver) OnError(error)                {}

func (r *Runner) emitTestStart() {
	for _, obs := range r.observers {
		obs.OnTestStart(r.opt.Config)
	}
}

func (r *Runner) emitProgress(p Progress) {
	for _, obs := range r.observers {
		obs.OnProgress(p)
	}
}

func (r *Runner) emitRequestComplete(res Result) {
	for _, obs := range r.observers {
		obs.OnRequestComplete(res)
	}
}

func (r *Runner) emitStageComplete(s Stage) {
	for _, obs := range r.observers {
		obs.OnStageComplete(s)
	}
}

func (r *Runner) emitTestComplete(stats metrics.Stats) {
	for _, obs := range r.observers {
		obs.OnTestComplete(stats)
	}
}

func (r *Runner) emitError(err error) {
	for _, obs := range r.observers {
		obs.OnError(err)
	}
}
