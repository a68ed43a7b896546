package metrics

// RunningAverage tracks an exponential moving average of a scalar.
type RunningAverage struct {
	momentum float64
	val      float64
	avg      float64
	n        int
}

func NewRunningAverage(momentum float64) *RunningAverage {
	return &RunningAverage{momentum: momentum}
}

func (r *RunningAverage) Update(v float64) {
	if r.n == 0 {
		r.avg = v
	} else {
		r.avg = r.momentum*r.avg + (1-r.momentum)*v
	}
	r.val = v
	r.n++
}

func (r *RunningAverage) Avg() float64 { return r.avg }

// Val is the most recent value passed to Update.
func (r *RunningAverage) Val() float64 { return r.val }

func (r *RunningAverage) Count() int { return r.n }

func (r *RunningAverage) Reset() {
	r.val, r.avg, r.n = 0, 0, 0
}
