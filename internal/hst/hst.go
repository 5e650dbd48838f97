// Package hst implements streaming half-space trees for online outlier
// scoring. An ensemble of random depth-limited binary partitions of the unit
// feature hypercube maintains per-node mass counters over two tumbling
// windows (reference and latest); points falling in regions with little
// reference mass score as anomalous.
package hst

import (
	"math"
	"math/rand"
)

// Config configures a half-space-trees forest.
type Config struct {
	// Trees is the ensemble size.
	Trees int

	// Depth is the depth of each tree.
	Depth int

	// WindowSize is the number of observations per tumbling window. When the
	// latest window fills, it becomes the reference window.
	WindowSize int

	// Dimensions is the feature vector length.
	Dimensions int

	// Seed fixes tree construction so a reset-and-replay reproduces the
	// same model state.
	Seed int64
}

// DefaultConfig returns the forest configuration used by the behaviour
// monitor: small enough to update per event, deep enough to isolate
// off-pattern points.
func DefaultConfig(dimensions int) Config {
	return Config{
		Trees:      25,
		Depth:      6,
		WindowSize: 50,
		Dimensions: dimensions,
		Seed:       42,
	}
}

// node is one cell of a tree's partition.
type node struct {
	dim   int
	split float64
	left  *node
	right *node

	refMass    int
	latestMass int
}

type tree struct {
	root *node
}

// Forest is a streaming half-space-trees ensemble. It is not safe for
// concurrent use; callers serialize access.
type Forest struct {
	config   Config
	trees    []*tree
	observed int
}

// New creates a forest with deterministically constructed trees.
func New(config Config) *Forest {
	if config.Trees <= 0 {
		config.Trees = 25
	}
	if config.Depth <= 0 {
		config.Depth = 6
	}
	if config.WindowSize <= 0 {
		config.WindowSize = 50
	}

	rng := rand.New(rand.NewSource(config.Seed))
	trees := make([]*tree, config.Trees)
	for i := range trees {
		lo := make([]float64, config.Dimensions)
		hi := make([]float64, config.Dimensions)
		for d := range hi {
			hi[d] = 1
		}
		trees[i] = &tree{root: buildNode(rng, lo, hi, 0, config.Depth, config.Dimensions)}
	}
	return &Forest{config: config, trees: trees}
}

func buildNode(rng *rand.Rand, lo, hi []float64, depth, maxDepth, dims int) *node {
	if depth >= maxDepth {
		return &node{dim: -1}
	}

	dim := rng.Intn(dims)
	split := lo[dim] + rng.Float64()*(hi[dim]-lo[dim])

	n := &node{dim: dim, split: split}

	leftHi := append([]float64(nil), hi...)
	leftHi[dim] = split
	n.left = buildNode(rng, lo, leftHi, depth+1, maxDepth, dims)

	rightLo := append([]float64(nil), lo...)
	rightLo[dim] = split
	n.right = buildNode(rng, rightLo, hi, depth+1, maxDepth, dims)

	return n
}

// Observed returns the number of points folded into the forest since the
// last reset.
func (f *Forest) Observed() int {
	return f.observed
}

// Update folds one feature vector into every tree's latest window and
// tumbles the windows when the latest one fills.
func (f *Forest) Update(x []float64) {
	for _, t := range f.trees {
		n := t.root
		for n != nil {
			n.latestMass++
			if n.dim < 0 {
				break
			}
			if x[n.dim] < n.split {
				n = n.left
			} else {
				n = n.right
			}
		}
	}

	f.observed++
	if f.observed%f.config.WindowSize == 0 {
		for _, t := range f.trees {
			tumble(t.root)
		}
	}
}

func tumble(n *node) {
	if n == nil {
		return
	}
	n.refMass = n.latestMass
	n.latestMass = 0
	tumble(n.left)
	tumble(n.right)
}

// sizeLimit is the reference mass below which a node counts as isolating.
const sizeLimitFraction = 0.1

// Score returns an anomaly score in [0, 1]; higher means more anomalous.
// Each tree contributes refMass * 2^depth at the node where the traversal
// terminates (leaf reached or mass below the size limit); the sum is
// normalized against the window mass so that points in well-populated
// regions score near 0 and points in empty regions score 1.
func (f *Forest) Score(x []float64) float64 {
	limit := int(math.Max(1, sizeLimitFraction*float64(f.config.WindowSize)))

	var total float64
	for _, t := range f.trees {
		n := t.root
		depth := 0
		for {
			if n.dim < 0 || n.refMass < limit {
				total += float64(n.refMass) * math.Pow(2, float64(depth))
				break
			}
			if x[n.dim] < n.split {
				n = n.left
			} else {
				n = n.right
			}
			depth++
		}
	}

	normal := total / (float64(len(f.trees)) * float64(f.config.WindowSize))
	return 1 - math.Min(1, normal)
}

// Reset rebuilds the forest from its seed, discarding all learned mass.
func (f *Forest) Reset() {
	*f = *New(f.config)
}
