package core

import "fmt"

// IntMatrix is a dense matrix of integer indices. It is used for the
// neighbor tables (k rows by n columns, one column per data point),
// which hold point indices rather than floating-point values.
type IntMatrix struct {
	rows, cols int
	data       []int
}

// NewIntMatrix creates a rows x cols integer matrix with all entries zero.
func NewIntMatrix(rows, cols int) *IntMatrix {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("invalid integer matrix size %dx%d", rows, cols))
	}
	return &IntMatrix{
		rows: rows,
		cols: cols,
		data: make([]int, rows*cols),
	}
}

// Dims returns the number of rows and columns.
func (m *IntMatrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// At returns the entry at row i, column j.
func (m *IntMatrix) At(i, j int) int {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("index (%d,%d) out of bounds for %dx%d matrix", i, j, m.rows, m.cols))
	}
	return m.data[i*m.cols+j]
}

// Set stores v at row i, column j.
func (m *IntMatrix) Set(i, j, v int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("index (%d,%d) out of bounds for %dx%d matrix", i, j, m.rows, m.cols))
	}
	m.data[i*m.cols+j] = v
}
