package sim

import (
	"strconv"

	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/models"
)

// Simulator integrates x[i] = x[i-1] + f(x[i-1], u[i-1]) with a residual model.
type Simulator struct {
	model models.Residual
}

func New(model models.Residual) *Simulator {
	return &Simulator{model: model}
}

func (s *Simulator) Model() models.Residual { return s.model }

func (s *Simulator) check(x0 []float32, inputs [][]float32) error {
	if len(x0) != s.model.StateDim() {
		return dynamo.Mismatch("x0 length", s.model.StateDim(), len(x0))
	}
	if len(inputs) == 0 {
		return dynamo.Mismatch("input sequence length", 1, 0)
	}
	for i, u := range inputs {
		if len(u) != s.model.InputDim() {
			return dynamo.Mismatch("input row "+strconv.Itoa(i), s.model.InputDim(), len(u))
		}
	}
	return nil
}

// Simulate returns a trajectory of len(inputs) states starting at x0.
// The last input row does not affect the result.
func (s *Simulator) Simulate(x0 []float32, inputs [][]float32) ([][]float32, error) {
	if err := s.check(x0, inputs); err != nil {
		return nil, err
	}
	return s.rollout(x0, inputs), nil
}

func (s *Simulator) rollout(x0 []float32, inputs [][]float32) [][]float32 {
	traj := make([][]float32, len(inputs))
	traj[0] = append([]float32(nil), x0...)
	for i := 1; i < len(inputs); i++ {
		prev := traj[i-1]
		dx := s.model.Eval(prev, inputs[i-1])
		next := make([]float32, len(prev))
		for j := range prev {
			next[j] = prev[j] + dx[j]
		}
		traj[i] = next
	}
	return traj
}

// SimulateBatch rolls out B independent trajectories. Step i of every row is
// evaluated with one EvalBatch call.
func (s *Simulator) SimulateBatch(x0s [][]float32, inputs [][][]float32) ([][][]float32, error) {
	if len(x0s) != len(inputs) {
		return nil, dynamo.Mismatch("batch size", len(x0s), len(inputs))
	}
	if len(x0s) == 0 {
		return nil, nil
	}
	T := len(inputs[0])
	for b := range x0s {
		if len(inputs[b]) != T {
			return nil, dynamo.Mismatch("sequence length of row "+strconv.Itoa(b), T, len(inputs[b]))
		}
		if err := s.check(x0s[b], inputs[b]); err != nil {
			return nil, err
		}
	}

	B := len(x0s)
	out := make([][][]float32, B)
	for b := range out {
		out[b] = make([][]float32, T)
		out[b][0] = append([]float32(nil), x0s[b]...)
	}

	xs := make([][]float32, B)
	us := make([][]float32, B)
	for i := 1; i < T; i++ {
		for b := 0; b < B; b++ {
			xs[b] = out[b][i-1]
			us[b] = inputs[b][i-1]
		}
		dxs := s.model.EvalBatch(xs, us)
		for b := 0; b < B; b++ {
			prev := xs[b]
			next := make([]float32, len(prev))
			for j := range prev {
				next[j] = prev[j] + dxs[b][j]
			}
			out[b][i] = next
		}
	}
	return out, nil
}

// Backward propagates gTraj, the loss gradient with respect to every state
// of traj, through the rollout that produced traj. Parameter gradients are
// accumulated into the model; the gradient with respect to x0 is returned.
func (s *Simulator) Backward(inputs, traj [][]float32, gTraj [][]float64) ([]float64, error) {
	if len(traj) != len(inputs) {
		return nil, dynamo.Mismatch("trajectory length", len(inputs), len(traj))
	}
	if len(gTraj) != len(traj) {
		return nil, dynamo.Mismatch("gradient length", len(traj), len(gTraj))
	}
	nx := s.model.StateDim()
	for i := range gTraj {
		if len(gTraj[i]) != nx {
			return nil, dynamo.Mismatch("gradient row "+strconv.Itoa(i), nx, len(gTraj[i]))
		}
	}

	T := len(traj)
	lambda := append([]float64(nil), gTraj[T-1]...)
	for i := T - 1; i >= 1; i-- {
		gx := s.model.Backward(traj[i-1], inputs[i-1], lambda)
		for j := range lambda {
			lambda[j] += gTraj[i-1][j] + gx[j]
		}
	}
	return lambda, nil
}

// BackwardBatch applies Backward to every row and returns the x0 gradients.
func (s *Simulator) BackwardBatch(inputs, trajs [][][]float32, gTrajs [][][]float64) ([][]float64, error) {
	if len(trajs) != len(inputs) || len(gTrajs) != len(inputs) {
		return nil, dynamo.Mismatch("batch size", len(inputs), len(trajs))
	}
	out := make([][]float64, len(inputs))
	for b := range inputs {
		g, err := s.Backward(inputs[b], trajs[b], gTrajs[b])
		if err != nil {
			return nil, err
		}
		out[b] = g
	}
	return out, nil
}
