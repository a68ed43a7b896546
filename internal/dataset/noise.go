package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynid/internal/dynamo"
)

// AddNoise returns a copy of rows with zero-mean Gaussian noise added to each
// channel. std holds one deviation per channel or a single shared one; a zero
// deviation leaves its channel untouched.
func AddNoise(rows [][]float32, std []float64, src rand.Source) ([][]float32, error) {
	w := width(rows)
	if len(std) != 1 && len(std) != w {
		return nil, dynamo.Mismatch("noise std channels", w, len(std))
	}

	dists := make([]*distuv.Normal, w)
	for j := range dists {
		sd := std[0]
		if len(std) > 1 {
			sd = std[j]
		}
		if sd < 0 {
			return nil, fmt.Errorf("noise std must be non-negative, got %f", sd)
		}
		if sd > 0 {
			dists[j] = &distuv.Normal{Mu: 0, Sigma: sd, Src: src}
		}
	}

	out := make([][]float32, len(rows))
	for i, r := range rows {
		if len(r) != w {
			return nil, dynamo.Mismatch(fmt.Sprintf("row %d width", i), w, len(r))
		}
		nr := append([]float32(nil), r...)
		for j, d := range dists {
			if d != nil {
				nr[j] += float32(d.Rand())
			}
		}
		out[i] = nr
	}
	return out, nil
}
