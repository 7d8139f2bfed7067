package lmnn_test

import (
	"bytes"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/patrikhermansson/lmnn/lmnn"
)

func TestTransformationSaveLoad(t *testing.T) {
	transformation := mat.NewDense(2, 2, []float64{1.5, -0.25, 0.75, 2})

	var buf bytes.Buffer
	if err := lmnn.SaveTransformation(&buf, transformation); err != nil {
		t.Fatalf("SaveTransformation failed: %v", err)
	}

	loaded, err := lmnn.LoadTransformation(&buf)
	if err != nil {
		t.Fatalf("LoadTransformation failed: %v", err)
	}

	if !matricesAlmostEqual(transformation, loaded, 0) {
		t.Errorf("loaded transformation differs from saved one:\n%v\nvs\n%v",
			mat.Formatted(loaded), mat.Formatted(transformation))
	}
}

func TestSaveTransformationNil(t *testing.T) {
	var buf bytes.Buffer
	if err := lmnn.SaveTransformation(&buf, nil); err == nil {
		t.Errorf("expected error for nil transformation, but got none")
	}
}

func TestLoadTransformationCorrupt(t *testing.T) {
	buf := bytes.NewBufferString("not a gob stream")
	if _, err := lmnn.LoadTransformation(buf); err == nil {
		t.Errorf("expected error for corrupt input, but got none")
	}
}
