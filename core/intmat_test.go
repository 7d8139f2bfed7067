package core

import "testing"

func TestIntMatrixBasicOperations(t *testing.T) {
	m := NewIntMatrix(2, 3)

	rows, cols := m.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("Dims() = (%d, %d); want (2, 3)", rows, cols)
	}

	// All entries start at zero.
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) != 0 {
				t.Errorf("At(%d, %d) = %d; want 0", i, j, m.At(i, j))
			}
		}
	}

	m.Set(1, 2, 42)
	if m.At(1, 2) != 42 {
		t.Errorf("At(1, 2) = %d; want 42", m.At(1, 2))
	}
	if m.At(1, 1) != 0 {
		t.Errorf("At(1, 1) = %d; want 0", m.At(1, 1))
	}
}

func TestIntMatrixOutOfBoundsPanics(t *testing.T) {
	m := NewIntMatrix(2, 2)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic on out-of-bounds access, but got none")
		}
	}()
	m.At(2, 0)
}

func TestNewIntMatrixInvalidSizePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic on zero-sized matrix, but got none")
		}
	}()
	NewIntMatrix(0, 4)
}
