package tensor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned by every operation that combines two
// operands of incompatible sizes.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Generator produces one real number per call. Fill invokes it once per
// element, in element order.
type Generator func() float64

// Vector is a dense sequence of reals. Its length is fixed once constructed.
type Vector []float64

// NewVector allocates a zero Vector of length n.
func NewVector(n int) Vector {
	return make(Vector, n)
}

// Len returns the number of elements.
func (v Vector) Len() int { return len(v) }

// Clone returns a copy that shares no storage with v.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Apply replaces every element x with f(x).
func (v Vector) Apply(f func(float64) float64) {
	for i, x := range v {
		v[i] = f(x)
	}
}

// Fill sets every element from gen, in element order.
func (v Vector) Fill(gen Generator) {
	for i := range v {
		v[i] = gen()
	}
}

// Add returns v+o.
func (v Vector) Add(o Vector) (Vector, error) {
	if len(v) != len(o) {
		return nil, fmt.Errorf("add %d + %d: %w", len(v), len(o), ErrDimensionMismatch)
	}
	out := NewVector(len(v))
	floats.AddTo(out, v, o)
	return out, nil
}

// AddInPlace adds o into v.
func (v Vector) AddInPlace(o Vector) error {
	if len(v) != len(o) {
		return fmt.Errorf("add %d += %d: %w", len(v), len(o), ErrDimensionMismatch)
	}
	floats.Add(v, o)
	return nil
}

// Scale returns s*v.
func (v Vector) Scale(s float64) Vector {
	out := NewVector(len(v))
	floats.ScaleTo(out, s, v)
	return out
}

// Dot returns the inner product of v and o.
func (v Vector) Dot(o Vector) (float64, error) {
	if len(v) != len(o) {
		return 0, fmt.Errorf("dot %d . %d: %w", len(v), len(o), ErrDimensionMismatch)
	}
	return floats.Dot(v, o), nil
}

// Hadamard returns the elementwise product of v and o.
func (v Vector) Hadamard(o Vector) (Vector, error) {
	if len(v) != len(o) {
		return nil, fmt.Errorf("hadamard %d * %d: %w", len(v), len(o), ErrDimensionMismatch)
	}
	out := NewVector(len(v))
	floats.MulTo(out, v, o)
	return out, nil
}

// Sum returns the sum of all elements.
func (v Vector) Sum() float64 {
	return floats.Sum(v)
}

// Slice returns a copy of the n elements starting at start.
func (v Vector) Slice(start, n int) (Vector, error) {
	if start < 0 || n < 0 || start+n > len(v) {
		return nil, fmt.Errorf("slice [%d:%d] of %d: %w", start, start+n, len(v), ErrDimensionMismatch)
	}
	return v[start : start+n].Clone(), nil
}

// ArgMax returns the index of the largest element, or -1 for an empty Vector.
func (v Vector) ArgMax() int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}

// Matrix is a row-major 2-D array of reals backed by a gonum Dense.
type Matrix struct {
	Rows, Cols int
	dense      *mat.Dense
}

// NewMatrix allocates a rows×cols Matrix. When data is non-nil it must hold
// rows*cols values in row-major order and is used as backing storage.
func NewMatrix(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("matrix %dx%d: %w", rows, cols, ErrDimensionMismatch)
	}
	if data != nil && len(data) != rows*cols {
		return nil, fmt.Errorf("matrix %dx%d from %d values: %w", rows, cols, len(data), ErrDimensionMismatch)
	}
	return &Matrix{Rows: rows, Cols: cols, dense: mat.NewDense(rows, cols, data)}, nil
}

// Size returns Rows*Cols.
func (m *Matrix) Size() int { return m.Rows * m.Cols }

// At returns the element at (row, col). It panics when out of range.
func (m *Matrix) At(row, col int) float64 { return m.dense.At(row, col) }

// Set sets the element at (row, col). It panics when out of range.
func (m *Matrix) Set(row, col int, value float64) { m.dense.Set(row, col, value) }

// Data returns the row-major backing storage. Writes through it modify m.
func (m *Matrix) Data() Vector {
	return m.dense.RawMatrix().Data
}

// Fill sets every element from gen in row-major order.
func (m *Matrix) Fill(gen Generator) {
	m.Data().Fill(gen)
}

// AddVec adds a row-major flattened Vector of the same size into m.
func (m *Matrix) AddVec(delta Vector) error {
	if len(delta) != m.Size() {
		return fmt.Errorf("matrix %dx%d += vector %d: %w", m.Rows, m.Cols, len(delta), ErrDimensionMismatch)
	}
	floats.Add(m.Data(), delta)
	return nil
}

// MulVec returns m·v.
func (m *Matrix) MulVec(v Vector) (Vector, error) {
	if len(v) != m.Cols {
		return nil, fmt.Errorf("matrix %dx%d * vector %d: %w", m.Rows, m.Cols, len(v), ErrDimensionMismatch)
	}
	out := NewVector(m.Rows)
	mat.NewVecDense(m.Rows, out).MulVec(m.dense, mat.NewVecDense(len(v), v))
	return out, nil
}

// TransMulVec returns mᵀ·v without materializing the transpose.
func (m *Matrix) TransMulVec(v Vector) (Vector, error) {
	if len(v) != m.Rows {
		return nil, fmt.Errorf("transposed matrix %dx%d * vector %d: %w", m.Cols, m.Rows, len(v), ErrDimensionMismatch)
	}
	out := NewVector(m.Cols)
	mat.NewVecDense(m.Cols, out).MulVec(m.dense.T(), mat.NewVecDense(len(v), v))
	return out, nil
}
