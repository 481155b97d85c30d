package main

import (
	"math/rand"

	"github.com/swarmguard/bcdsolver/internal/matrix"
	"github.com/swarmguard/bcdsolver/internal/sim"
)

// syntheticDatasets builds numWorkers row-partitioned binary design
// matrices over the same cols-wide global key space, with a planted
// sparse ground-truth weight vector driving the labels. Loading a real
// dataset format is out of scope (spec §1); this gives the CLI a
// runnable demo path.
func syntheticDatasets(numWorkers, rows, cols int, seed int64) []sim.Dataset {
	rng := rand.New(rand.NewSource(seed))

	trueW := make([]float64, cols)
	for k := 0; k < cols/20+1; k++ {
		trueW[rng.Intn(cols)] = rng.NormFloat64()
	}

	out := make([]sim.Dataset, numWorkers)
	for w := 0; w < numWorkers; w++ {
		offsets := make([]int, cols+1)
		var indices []int
		nnzPerCol := make([][]int, cols)
		for k := 0; k < cols; k++ {
			density := 0.02
			for i := 0; i < rows; i++ {
				if rng.Float64() < density {
					nnzPerCol[k] = append(nnzPerCol[k], i)
				}
			}
		}
		for k := 0; k < cols; k++ {
			offsets[k] = len(indices)
			indices = append(indices, nnzPerCol[k]...)
		}
		offsets[cols] = len(indices)

		mat, err := matrix.New(rows, cols, offsets, indices, nil, true)
		if err != nil {
			panic(err)
		}

		scores := make([]float64, rows)
		for k := 0; k < cols; k++ {
			for _, row := range nnzPerCol[k] {
				scores[row] += trueW[k]
			}
		}
		y := make([]float64, rows)
		for i, score := range scores {
			if score+rng.NormFloat64()*0.1 >= 0 {
				y[i] = 1
			} else {
				y[i] = -1
			}
		}

		out[w] = sim.Dataset{Mat: mat, Y: y}
	}
	return out
}
