package model_selection

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Splitter defines interface for cross-validation splitters
type Splitter interface {
	Split(y *mat.VecDense) ([]Fold, error)
	NSplits() int
}

// Fold represents a single fold in cross-validation
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	K       int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(k int, shuffle bool, seed uint64) *KFold {
	return &KFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns the number of splits
func (kf *KFold) NSplits() int {
	return kf.K
}

// Split generates train/test indices for each fold. Test folds are
// contiguous runs of the (optionally shuffled) row order; the first
// n % K folds get one extra row.
func (kf *KFold) Split(y *mat.VecDense) ([]Fold, error) {
	n := y.Len()
	if err := checkSplits("KFold", kf.K, n); err != nil {
		return nil, err
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assignment := make([]int, n)
	foldSize, remainder := n/kf.K, n%kf.K
	current := 0
	for f := 0; f < kf.K; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assignment[idx] = f
		}
		current += size
	}
	return buildFolds(assignment, kf.K), nil
}

// StratifiedKFold implements stratified k-fold cross-validation: each fold
// preserves the class proportions of y.
type StratifiedKFold struct {
	K       int
	Shuffle bool
	Seed    uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(k int, shuffle bool, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns the number of splits
func (skf *StratifiedKFold) NSplits() int {
	return skf.K
}

// Split generates stratified train/test indices for each fold. Rows of each
// class are dealt round-robin over the folds, continuing where the previous
// class stopped, so fold sizes differ by at most one.
func (skf *StratifiedKFold) Split(y *mat.VecDense) ([]Fold, error) {
	n := y.Len()
	if err := checkSplits("StratifiedKFold", skf.K, n); err != nil {
		return nil, err
	}

	// Group indices by class
	classIndices := make(map[float64][]int)
	for i := 0; i < n; i++ {
		label := y.AtVec(i)
		classIndices[label] = append(classIndices[label], i)
	}
	classes := make([]float64, 0, len(classIndices))
	for c := range classIndices {
		classes = append(classes, c)
	}
	sort.Float64s(classes)

	r := rand.New(rand.NewPCG(skf.Seed, skf.Seed))
	assignment := make([]int, n)
	next := 0
	for _, c := range classes {
		indices := classIndices[c]
		if skf.Shuffle {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			assignment[idx] = next
			next = (next + 1) % skf.K
		}
	}
	return buildFolds(assignment, skf.K), nil
}

func checkSplits(op string, k, n int) error {
	if k < 2 {
		return errors.NewValidationError("cv", "must be >= 2", k)
	}
	if k > n {
		return errors.NewValueError(op+".Split",
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples: n_samples=%d", k, n))
	}
	return nil
}

// buildFolds turns a row → test fold assignment into folds with sorted indices.
func buildFolds(assignment []int, k int) []Fold {
	folds := make([]Fold, k)
	for idx, f := range assignment {
		for g := range folds {
			if g == f {
				folds[g].TestIndices = append(folds[g].TestIndices, idx)
			} else {
				folds[g].TrainIndices = append(folds[g].TrainIndices, idx)
			}
		}
	}
	return folds
}
