// Package model implements the classifier artifact: a random forest stored
// as flat node arrays, evaluated in pure Go. The artifact is opaque to the
// rest of the system, which only sees a probability-vector predictor bound
// to a fixed input-feature schema and a fixed output-class schema.
package model

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/cie10-predict-server/internal/domain"
)

// Tree is one decision tree in flat-array form. Node i splits on
// Feature[i] at Threshold[i] (left when value <= threshold); Feature[i] < 0
// marks a leaf whose class distribution is Value[i].
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	Value     [][]float64
}

// leaf walks the tree for one feature vector and returns its leaf
// distribution.
func (t *Tree) leaf(x []float64) []float64 {
	node := 0
	for t.Feature[node] >= 0 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

// Forest is a trained multi-class probability estimator.
type Forest struct {
	NumFeatures int
	NumClasses  int
	Trees       []Tree
}

// PredictProba returns the probability distribution over all output classes
// for a single feature vector. Values are in [0,1] and sum to 1 within
// floating tolerance.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NumFeatures {
		return nil, fmt.Errorf("feature vector has %d values, artifact expects %d", len(x), f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("artifact has no trees")
	}

	probs := make([]float64, f.NumClasses)
	for i := range f.Trees {
		dist := f.Trees[i].leaf(x)
		for c, p := range dist {
			probs[c] += p
		}
	}
	inv := 1.0 / float64(len(f.Trees))
	for c := range probs {
		probs[c] *= inv
	}
	return probs, nil
}

// validate checks structural invariants after load so a malformed artifact
// fails at the boundary instead of during a request.
func (f *Forest) validate() error {
	if f.NumFeatures <= 0 || f.NumClasses <= 0 {
		return fmt.Errorf("invalid schema: %d features, %d classes", f.NumFeatures, f.NumClasses)
	}
	for ti := range f.Trees {
		t := &f.Trees[ti]
		n := len(t.Feature)
		if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
			return fmt.Errorf("tree %d: inconsistent node arrays", ti)
		}
		for node := 0; node < n; node++ {
			if t.Feature[node] >= f.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of schema", ti, node, t.Feature[node])
			}
			if t.Feature[node] >= 0 {
				if t.Left[node] < 0 || t.Left[node] >= n || t.Right[node] < 0 || t.Right[node] >= n {
					return fmt.Errorf("tree %d node %d: child index out of range", ti, node)
				}
			} else if len(t.Value[node]) != f.NumClasses {
				return fmt.Errorf("tree %d node %d: leaf has %d classes, artifact expects %d",
					ti, node, len(t.Value[node]), f.NumClasses)
			}
		}
	}
	return nil
}

// persistedForest is the on-disk artifact layout.
type persistedForest struct {
	Version int
	Forest  Forest
}

const fileVersion = 1

// Save writes the forest to path.
func (f *Forest) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating artifact file: %w", err)
	}
	defer out.Close()

	p := persistedForest{Version: fileVersion, Forest: *f}
	if err := gob.NewEncoder(out).Encode(&p); err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	return nil
}

// Load reads a persisted forest from path, reporting any failure as an
// ArtifactLoadError.
func Load(path string) (*Forest, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, domain.NewArtifactLoadError(path, err)
	}
	defer in.Close()

	var p persistedForest
	if err := gob.NewDecoder(in).Decode(&p); err != nil {
		return nil, domain.NewArtifactLoadError(path, err)
	}
	if p.Version != fileVersion {
		return nil, domain.NewArtifactLoadError(path, fmt.Errorf("unsupported artifact version %d", p.Version))
	}
	if err := p.Forest.validate(); err != nil {
		return nil, domain.NewArtifactLoadError(path, err)
	}
	return &p.Forest, nil
}
