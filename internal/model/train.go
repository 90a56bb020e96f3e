package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TrainConfig holds the forest hyperparameters. Every bundle ships with
// the same settings: 50 trees, depth 15, leaves of at least 10 samples.
type TrainConfig struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

// DefaultTrainConfig returns the hyperparameters shared by the top-level
// and per-category training jobs.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Trees:          50,
		MaxDepth:       15,
		MinSamplesLeaf: 10,
		Seed:           42,
	}
}

// Fit trains a random forest on encoded feature rows. Labels must already
// be dense codes in [0, numClasses). Deterministic for a fixed seed.
func Fit(features [][]float64, labels []int, numClasses int, cfg TrainConfig) (*Forest, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("feature/label length mismatch: %d vs %d", len(features), len(labels))
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	numFeatures := len(features[0])
	for i, row := range features {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), numFeatures)
		}
	}
	for i, y := range labels {
		if y < 0 || y >= numClasses {
			return nil, fmt.Errorf("label %d of row %d outside [0, %d)", y, i, numClasses)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	mtry := int(math.Round(math.Sqrt(float64(numFeatures))))
	if mtry < 1 {
		mtry = 1
	}

	forest := &Forest{
		NumFeatures: numFeatures,
		NumClasses:  numClasses,
		Trees:       make([]Tree, 0, cfg.Trees),
	}

	b := builder{
		features:       features,
		labels:         labels,
		numClasses:     numClasses,
		numFeatures:    numFeatures,
		mtry:           mtry,
		maxDepth:       cfg.MaxDepth,
		minSamplesLeaf: cfg.MinSamplesLeaf,
		rng:            rng,
	}

	for i := 0; i < cfg.Trees; i++ {
		// Bootstrap sample with replacement
		sample := make([]int, len(features))
		for j := range sample {
			sample[j] = rng.Intn(len(features))
		}
		forest.Trees = append(forest.Trees, b.buildTree(sample))
	}
	return forest, nil
}

type builder struct {
	features       [][]float64
	labels         []int
	numClasses     int
	numFeatures    int
	mtry           int
	maxDepth       int
	minSamplesLeaf int
	rng            *rand.Rand
}

func (b *builder) buildTree(sample []int) Tree {
	t := Tree{}
	b.grow(&t, sample, 0)
	return t
}

// grow appends the subtree for sample to t and returns its root node index.
func (b *builder) grow(t *Tree, sample []int, depth int) int {
	counts := make([]float64, b.numClasses)
	for _, i := range sample {
		counts[b.labels[i]]++
	}

	node := len(t.Feature)
	t.Feature = append(t.Feature, -1)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, -1)
	t.Right = append(t.Right, -1)
	t.Value = append(t.Value, nil)

	pure := false
	for _, c := range counts {
		if c == float64(len(sample)) {
			pure = true
			break
		}
	}

	if depth >= b.maxDepth || len(sample) < 2*b.minSamplesLeaf || pure {
		t.Value[node] = normalize(counts, len(sample))
		return node
	}

	feat, thr, ok := b.bestSplit(sample, counts)
	if !ok {
		t.Value[node] = normalize(counts, len(sample))
		return node
	}

	var left, right []int
	for _, i := range sample {
		if b.features[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minSamplesLeaf || len(right) < b.minSamplesLeaf {
		t.Value[node] = normalize(counts, len(sample))
		return node
	}

	t.Feature[node] = feat
	t.Threshold[node] = thr
	t.Left[node] = b.grow(t, left, depth+1)
	t.Right[node] = b.grow(t, right, depth+1)
	return node
}

// bestSplit searches a random feature subset for the gini-optimal
// threshold over the node's sample.
func (b *builder) bestSplit(sample []int, counts []float64) (int, float64, bool) {
	bestGini := math.Inf(1)
	bestFeat, bestThr := -1, 0.0

	for _, feat := range b.featureSubset() {
		vals := make([]float64, len(sample))
		for i, s := range sample {
			vals[i] = b.features[s][feat]
		}
		order := make([]int, len(sample))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool { return vals[order[i]] < vals[order[j]] })

		leftCounts := make([]float64, b.numClasses)
		rightCounts := make([]float64, b.numClasses)
		copy(rightCounts, counts)

		for i := 0; i < len(order)-1; i++ {
			s := sample[order[i]]
			leftCounts[b.labels[s]]++
			rightCounts[b.labels[s]]--

			v, next := vals[order[i]], vals[order[i+1]]
			if v == next {
				continue
			}
			nLeft, nRight := i+1, len(order)-i-1
			g := weightedGini(leftCounts, nLeft, rightCounts, nRight)
			if g < bestGini {
				bestGini = g
				bestFeat = feat
				bestThr = (v + next) / 2
			}
		}
	}

	if bestFeat < 0 {
		return 0, 0, false
	}
	return bestFeat, bestThr, true
}

// featureSubset draws mtry distinct feature indices.
func (b *builder) featureSubset() []int {
	perm := b.rng.Perm(b.numFeatures)
	subset := perm[:b.mtry]
	sort.Ints(subset)
	return subset
}

func weightedGini(left []float64, nLeft int, right []float64, nRight int) float64 {
	total := float64(nLeft + nRight)
	return float64(nLeft)/total*gini(left, nLeft) + float64(nRight)/total*gini(right, nRight)
}

func gini(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	sumSq := 0.0
	for _, c := range counts {
		p := c / float64(n)
		sumSq += p * p
	}
	return 1 - sumSq
}

func normalize(counts []float64, n int) []float64 {
	dist := make([]float64, len(counts))
	if n == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = c / float64(n)
	}
	return dist
}
