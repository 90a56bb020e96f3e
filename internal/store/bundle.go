// Package store resolves diagnostic-category identifiers to trained model
// bundles. The top-level bundle is loaded once at startup and shared
// read-only; category bundles are loaded lazily and held behind an LRU.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cie10-predict-server/internal/domain"
	"github.com/cie10-predict-server/internal/encoder"
	"github.com/cie10-predict-server/internal/model"
)

// Artifact layout shared with the trainer. The file names are a hard
// contract: the serving directory tree must match what training jobs wrote.
const (
	TopLevelDirName   = "categoria"
	CategoryDirPrefix = "model_"
	CategorySubdir    = "rf_model"

	TopLevelModelFile = "rf_model_categorias.pkl"
	CategoryModelFile = "rf_model.pkl"

	EncoderGenderFile       = "encoder_genero.pkl"
	EncoderPopulationFile   = "encoder_ppertenencia.pkl"
	EncoderSourceFile       = "encoder_fuente.pkl"
	EncoderDepartmentFile   = "encoder_deptoresiden.pkl"
	EncoderMunicipalityFile = "encoder_muniresiden.pkl"
	EncoderGroupFile        = "encoder_grupo_cie10.pkl"
	EncoderCauseFile        = "encoder_caufin.pkl"
)

// NumFeatures is the fixed input schema width: age plus five encoded
// categoricals.
const NumFeatures = 6

// Bundle associates one classifier artifact with its six encoders. A
// bundle is immutable after load and safe for concurrent use.
type Bundle struct {
	Kind   domain.BundleKind
	Forest *model.Forest

	Gender          *encoder.Encoder
	PopulationGroup *encoder.Encoder
	Source          *encoder.Encoder
	Department      *encoder.Encoder
	Municipality    *encoder.Encoder
	// Output decodes classifier class indices: diagnostic groups for
	// top-level bundles, cause codes for category bundles.
	Output *encoder.Encoder
}

// LoadBundle reads a complete bundle from dir. The model file name and
// output encoder depend on the bundle kind.
func LoadBundle(dir string, kind domain.BundleKind) (*Bundle, error) {
	modelFile := CategoryModelFile
	outputFile := EncoderCauseFile
	if kind == domain.TopLevelBundle {
		modelFile = TopLevelModelFile
		outputFile = EncoderGroupFile
	}

	forest, err := model.Load(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, err
	}

	b := &Bundle{Kind: kind, Forest: forest}
	for _, enc := range []struct {
		file string
		dst  **encoder.Encoder
	}{
		{EncoderGenderFile, &b.Gender},
		{EncoderPopulationFile, &b.PopulationGroup},
		{EncoderSourceFile, &b.Source},
		{EncoderDepartmentFile, &b.Department},
		{EncoderMunicipalityFile, &b.Municipality},
		{outputFile, &b.Output},
	} {
		e, err := encoder.Load(filepath.Join(dir, enc.file))
		if err != nil {
			return nil, err
		}
		*enc.dst = e
	}

	if err := b.validate(dir); err != nil {
		return nil, err
	}
	return b, nil
}

// validate cross-checks the artifact schemas so a mismatched bundle fails
// at load rather than mid-request.
func (b *Bundle) validate(dir string) error {
	if b.Forest.NumFeatures != NumFeatures {
		return domain.NewArtifactLoadError(dir,
			fmt.Errorf("model expects %d features, schema requires %d", b.Forest.NumFeatures, NumFeatures))
	}
	if b.Output.Len() != b.Forest.NumClasses {
		return domain.NewArtifactLoadError(dir,
			fmt.Errorf("output encoder has %d classes, model has %d", b.Output.Len(), b.Forest.NumClasses))
	}
	return nil
}

// SaveBundle writes a bundle into dir using the layout LoadBundle expects.
// Used by the trainer and test fixtures.
func SaveBundle(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}

	modelFile := CategoryModelFile
	outputFile := EncoderCauseFile
	if b.Kind == domain.TopLevelBundle {
		modelFile = TopLevelModelFile
		outputFile = EncoderGroupFile
	}

	if err := b.Forest.Save(filepath.Join(dir, modelFile)); err != nil {
		return err
	}
	for _, enc := range []struct {
		file string
		e    *encoder.Encoder
	}{
		{EncoderGenderFile, b.Gender},
		{EncoderPopulationFile, b.PopulationGroup},
		{EncoderSourceFile, b.Source},
		{EncoderDepartmentFile, b.Department},
		{EncoderMunicipalityFile, b.Municipality},
		{outputFile, b.Output},
	} {
		if err := enc.e.Save(filepath.Join(dir, enc.file)); err != nil {
			return err
		}
	}
	return nil
}
