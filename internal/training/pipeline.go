// Package training rebuilds the model bundles from hospital records. It
// runs offline, writes artifacts in the layout the store reads, and never
// touches the serving path.
package training

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
	"github.com/cie10-predict-server/internal/encoder"
	"github.com/cie10-predict-server/internal/model"
	"github.com/cie10-predict-server/internal/store"
)

// Record is one labeled training row. Target holds the diagnostic group
// for the top-level job and the cause code for category jobs.
type Record struct {
	Age                   int
	Gender                string
	PopulationGroup       string
	ReferralSource        string
	ResidenceDepartment   string
	ResidenceMunicipality string
	Target                string
}

// Source provides the training rows. Backed by PostgreSQL in production
// and by fixtures in tests.
type Source interface {
	// TopLevelRecords returns rows labeled with their diagnostic group,
	// already stripped of external-cause and excluded codes.
	TopLevelRecords(ctx context.Context) ([]Record, error)

	// CategoryGroups lists the groups eligible for a per-category model.
	CategoryGroups(ctx context.Context) ([]string, error)

	// CategoryRecords returns rows of one group labeled with their cause code.
	CategoryRecords(ctx context.Context, group string) ([]Record, error)
}

// Thresholds below which a model is not worth fitting. Sparse classes
// produce rankings dominated by noise.
const (
	minGroupRows    = 100
	minCauseRows    = 30
	minCategoryRows = 300
	minCauseClasses = 2

	holdoutFraction = 0.2
)

// Trainer fits bundles from a record source and writes them under OutDir.
type Trainer struct {
	source Source
	outDir string
	cfg    model.TrainConfig
	log    *logrus.Logger
}

// NewTrainer creates a trainer writing bundles under outDir.
func NewTrainer(source Source, outDir string, cfg model.TrainConfig, logger *logrus.Logger) *Trainer {
	return &Trainer{
		source: source,
		outDir: outDir,
		cfg:    cfg,
		log:    logger,
	}
}

// TrainTopLevel fits the diagnostic-group model and writes it to the
// "categoria" directory.
func (t *Trainer) TrainTopLevel(ctx context.Context) error {
	records, err := t.source.TopLevelRecords(ctx)
	if err != nil {
		return fmt.Errorf("loading top-level records: %w", err)
	}

	records = FilterSparseTargets(records, minGroupRows)
	if len(records) == 0 {
		return fmt.Errorf("no groups with at least %d rows", minGroupRows)
	}

	t.log.WithField("rows", len(records)).Info("Fitting diagnostic-group model")

	bundle, accuracy, err := BuildBundle(records, domain.TopLevelBundle, t.cfg)
	if err != nil {
		return fmt.Errorf("fitting top-level model: %w", err)
	}

	dir := filepath.Join(t.outDir, store.TopLevelDirName)
	if err := store.SaveBundle(dir, bundle); err != nil {
		return fmt.Errorf("writing top-level bundle: %w", err)
	}

	t.log.WithFields(logrus.Fields{
		"dir":      dir,
		"classes":  bundle.Forest.NumClasses,
		"accuracy": fmt.Sprintf("%.3f", accuracy),
	}).Info("Diagnostic-group model written")
	return nil
}

// TrainCategories fits one cause-code model per eligible diagnostic group.
// Groups with too little data are skipped, not failed.
func (t *Trainer) TrainCategories(ctx context.Context) error {
	groups, err := t.source.CategoryGroups(ctx)
	if err != nil {
		return fmt.Errorf("listing diagnostic groups: %w", err)
	}

	trained := 0
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := t.trainCategory(ctx, group)
		if err != nil {
			t.log.WithError(err).WithField("group", group).Error("Category training failed")
			continue
		}
		if ok {
			trained++
		}
	}

	t.log.WithFields(logrus.Fields{
		"groups":  len(groups),
		"trained": trained,
	}).Info("Category training finished")
	return nil
}

func (t *Trainer) trainCategory(ctx context.Context, group string) (bool, error) {
	records, err := t.source.CategoryRecords(ctx, group)
	if err != nil {
		return false, fmt.Errorf("loading records: %w", err)
	}

	records = FilterSparseTargets(records, minCauseRows)
	if !EnoughForCategory(records) {
		t.log.WithFields(logrus.Fields{
			"group": group,
			"rows":  len(records),
		}).Warn("Not enough data for category, skipping")
		return false, nil
	}

	bundle, accuracy, err := BuildBundle(records, domain.CategoryBundle, t.cfg)
	if err != nil {
		return false, fmt.Errorf("fitting model: %w", err)
	}

	dir := filepath.Join(t.outDir, store.CategoryDirPrefix+store.Slug(group), store.CategorySubdir)
	if err := store.SaveBundle(dir, bundle); err != nil {
		return false, fmt.Errorf("writing bundle: %w", err)
	}

	t.log.WithFields(logrus.Fields{
		"group":    group,
		"dir":      dir,
		"classes":  bundle.Forest.NumClasses,
		"accuracy": fmt.Sprintf("%.3f", accuracy),
	}).Info("Category model written")
	return true, nil
}

// FilterSparseTargets drops rows whose target occurs fewer than min times.
func FilterSparseTargets(records []Record, min int) []Record {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Target]++
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if counts[r.Target] >= min {
			kept = append(kept, r)
		}
	}
	return kept
}

// EnoughForCategory reports whether a filtered category dataset supports a
// model: at least two distinct causes and a minimum row count.
func EnoughForCategory(records []Record) bool {
	if len(records) < minCategoryRows {
		return false
	}
	distinct := make(map[string]struct{})
	for _, r := range records {
		distinct[r.Target] = struct{}{}
	}
	return len(distinct) >= minCauseClasses
}

// BuildBundle fits the six encoders and the forest from labeled records
// and reports holdout accuracy. The holdout rows are excluded from the
// fitted forest but not from the encoders, so serving never sees a label
// the encoders cannot map.
func BuildBundle(records []Record, kind domain.BundleKind, cfg model.TrainConfig) (*store.Bundle, float64, error) {
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("no records to fit")
	}

	gender := encoder.Fit("genero", collect(records, func(r Record) string { return r.Gender }))
	population := encoder.Fit("ppertenencia", collect(records, func(r Record) string { return r.PopulationGroup }))
	source := encoder.Fit("fuente", collect(records, func(r Record) string { return r.ReferralSource }))
	department := encoder.Fit("deptoresiden", collect(records, func(r Record) string { return r.ResidenceDepartment }))
	municipality := encoder.Fit("muniresiden", collect(records, func(r Record) string { return r.ResidenceMunicipality }))

	outputFeature := "caufin"
	if kind == domain.TopLevelBundle {
		outputFeature = "grupo_cie10"
	}
	output := encoder.Fit(outputFeature, collect(records, func(r Record) string { return r.Target }))

	features := make([][]float64, len(records))
	labels := make([]int, len(records))
	for i, r := range records {
		row := make([]float64, 0, store.NumFeatures)
		row = append(row, float64(r.Age))
		for _, pair := range []struct {
			enc   *encoder.Encoder
			value string
		}{
			{gender, r.Gender},
			{population, r.PopulationGroup},
			{source, r.ReferralSource},
			{department, r.ResidenceDepartment},
			{municipality, r.ResidenceMunicipality},
		} {
			code, err := pair.enc.Encode(pair.value)
			if err != nil {
				return nil, 0, err
			}
			row = append(row, float64(code))
		}
		features[i] = row

		code, err := output.Encode(r.Target)
		if err != nil {
			return nil, 0, err
		}
		labels[i] = code
	}

	trainIdx, testIdx := split(len(records), holdoutFraction, cfg.Seed)

	forest, err := model.Fit(gather(features, trainIdx), gatherInts(labels, trainIdx), output.Len(), cfg)
	if err != nil {
		return nil, 0, err
	}

	bundle := &store.Bundle{
		Kind:            kind,
		Forest:          forest,
		Gender:          gender,
		PopulationGroup: population,
		Source:          source,
		Department:      department,
		Municipality:    municipality,
		Output:          output,
	}

	accuracy, err := evaluate(forest, gather(features, testIdx), gatherInts(labels, testIdx))
	if err != nil {
		return nil, 0, err
	}
	return bundle, accuracy, nil
}

// split partitions row indices into train and holdout sets with a seeded
// shuffle so repeated runs produce the same model.
func split(n int, fraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	cut := int(float64(n) * fraction)
	if cut == 0 && n > 1 {
		cut = 1
	}
	return perm[cut:], perm[:cut]
}

func evaluate(forest *model.Forest, features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, nil
	}

	correct := 0
	for i, row := range features {
		probs, err := forest.PredictProba(row)
		if err != nil {
			return 0, err
		}
		best := 0
		for c := 1; c < len(probs); c++ {
			if probs[c] > probs[best] {
				best = c
			}
		}
		if best == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features)), nil
}

func collect(records []Record, field func(Record) string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = field(r)
	}
	return out
}

func gather(rows [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func gatherInts(values []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
