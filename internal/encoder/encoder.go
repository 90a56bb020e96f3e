// Package encoder implements the per-feature categorical encoders shared by
// the trainer and the serving path. An encoder is a bijection between the
// label strings observed while fitting and dense integer codes in [0, N).
// Once persisted it is loaded read-only; serving never mutates it.
package encoder

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/cie10-predict-server/internal/domain"
)

// Encoder maps categorical labels to dense integer codes and back.
type Encoder struct {
	feature string
	classes []string
	index   map[string]int
}

// Fit builds an encoder from an ordered sequence of observed values,
// assigning codes by first-seen order.
func Fit(feature string, values []string) *Encoder {
	e := &Encoder{
		feature: feature,
		index:   make(map[string]int),
	}
	for _, v := range values {
		if _, seen := e.index[v]; seen {
			continue
		}
		e.index[v] = len(e.classes)
		e.classes = append(e.classes, v)
	}
	return e
}

// NewFromClasses reconstructs an encoder from a persisted class list.
// The list order is the code assignment: classes[i] has code i.
func NewFromClasses(feature string, classes []string) (*Encoder, error) {
	e := &Encoder{
		feature: feature,
		classes: classes,
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("duplicate class %q in encoder %q", c, feature)
		}
		e.index[c] = i
	}
	return e, nil
}

// Feature returns the name of the feature this encoder was fitted for.
func (e *Encoder) Feature() string {
	return e.feature
}

// Len returns the number of known classes.
func (e *Encoder) Len() int {
	return len(e.classes)
}

// Classes returns a copy of the known class list in code order.
func (e *Encoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Encode maps a label to its integer code. A label absent from the fitted
// set is a handled error, never a silent default.
func (e *Encoder) Encode(label string) (int, error) {
	code, ok := e.index[label]
	if !ok {
		return 0, domain.NewUnknownLabelError(e.feature, label)
	}
	return code, nil
}

// Decode maps an integer code back to its label.
func (e *Encoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", domain.NewInvalidCodeError(e.feature, code, len(e.classes))
	}
	return e.classes[code], nil
}

// persisted is the on-disk encoder state. Only the class list matters; the
// index is rebuilt on load.
type persisted struct {
	Version int
	Feature string
	Classes []string
}

const fileVersion = 1

// Save writes the encoder state to path.
func (e *Encoder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating encoder file: %w", err)
	}
	defer f.Close()

	p := persisted{Version: fileVersion, Feature: e.feature, Classes: e.classes}
	if err := gob.NewEncoder(f).Encode(&p); err != nil {
		return fmt.Errorf("encoding encoder state: %w", err)
	}
	return nil
}

// Load reads a persisted encoder from path. Failures are reported as
// ArtifactLoadError so callers can distinguish corrupt artifacts from
// user-input problems.
func Load(path string) (*Encoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewArtifactLoadError(path, err)
	}
	defer f.Close()

	var p persisted
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, domain.NewArtifactLoadError(path, err)
	}
	if p.Version != fileVersion {
		return nil, domain.NewArtifactLoadError(path, fmt.Errorf("unsupported encoder version %d", p.Version))
	}

	e, err := NewFromClasses(p.Feature, p.Classes)
	if err != nil {
		return nil, domain.NewArtifactLoadError(path, err)
	}
	return e, nil
}
