package fit

import (
	"go.uber.org/zap"
)

// Progress is emitted every TestFreq iterations.
type Progress struct {
	Iter        int
	Loss        float64
	Scaled      float64
	Average     float64
	Fit         float64
	Consistency float64
}

type Reporter interface {
	Report(p Progress)
}

type ReporterFunc func(Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

// LogReporter writes progress as structured log entries.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(p Progress) {
	r.log.Info("progress",
		zap.Int("iter", p.Iter),
		zap.Float64("loss", p.Loss),
		zap.Float64("scaled", p.Scaled),
		zap.Float64("avg", p.Average),
	)
}

// ChannelReporter forwards progress to a channel without blocking; updates
// are dropped while the receiver is busy.
type ChannelReporter chan<- Progress

func (c ChannelReporter) Report(p Progress) {
	select {
	case c <- p:
	default:
	}
}

type multiReporter []Reporter

func (m multiReporter) Report(p Progress) {
	for _, r := range m {
		r.Report(p)
	}
}
