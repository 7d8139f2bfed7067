package lmnn

import (
	"encoding/gob"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// transformationState is the serializable form of a learned
// transformation matrix.
type transformationState struct {
	Rows, Cols int
	Data       []float64
}

// SaveTransformation writes a learned transformation to the given
// writer using gob encoding.
func SaveTransformation(w io.Writer, transformation *mat.Dense) error {
	if transformation == nil {
		return fmt.Errorf("transformation must not be nil")
	}
	rows, cols := transformation.Dims()
	state := transformationState{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, 0, rows*cols),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			state.Data = append(state.Data, transformation.At(r, c))
		}
	}
	enc := gob.NewEncoder(w)
	return enc.Encode(state)
}

// LoadTransformation reads a transformation previously written with
// SaveTransformation from the given reader.
func LoadTransformation(r io.Reader) (*mat.Dense, error) {
	var state transformationState
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&state); err != nil {
		return nil, err
	}
	if state.Rows <= 0 || state.Cols <= 0 || len(state.Data) != state.Rows*state.Cols {
		return nil, fmt.Errorf("corrupt transformation state: %dx%d with %d values",
			state.Rows, state.Cols, len(state.Data))
	}
	return mat.NewDense(state.Rows, state.Cols, state.Data), nil
}
