package trd

import (
	"sort"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// DataArray stores one value per (row, col, time) of a detector. In the
// expanded form the values are kept in a dense slice; the compressed form
// keeps only the non-zero cells, sorted by their linear index. Random
// access writes need the expanded form, serialisation and long term storage
// use the compressed one.
type DataArray[T Number] struct {
	nRow       int
	nCol       int
	nTime      int
	dense      []T
	index      []int32
	values     []T
	compressed bool
}

func NewDataArray[T Number](nRow, nCol, nTime int) *DataArray[T] {
	return &DataArray[T]{
		nRow:  nRow,
		nCol:  nCol,
		nTime: nTime,
		dense: make([]T, nRow*nCol*nTime),
	}
}

func (a *DataArray[T]) Dims() (int, int, int) {
	return a.nRow, a.nCol, a.nTime
}

func (a *DataArray[T]) InBounds(row, col, time int) bool {
	return row >= 0 && row < a.nRow && col >= 0 && col < a.nCol && time >= 0 && time < a.nTime
}

func (a *DataArray[T]) linear(row, col, time int) int {
	return (row*a.nCol+col)*a.nTime + time
}

func (a *DataArray[T]) address(i int) (int, int, int) {
	time := i % a.nTime
	col := (i / a.nTime) % a.nCol
	row := i / (a.nTime * a.nCol)
	return row, col, time
}

func (a *DataArray[T]) IsCompressed() bool {
	return a.compressed
}

// Get returns the value of a cell, zero outside the array.
func (a *DataArray[T]) Get(row, col, time int) T {
	if !a.InBounds(row, col, time) {
		return 0
	}
	i := a.linear(row, col, time)
	if !a.compressed {
		return a.dense[i]
	}
	k := sort.Search(len(a.index), func(j int) bool { return int(a.index[j]) >= i })
	if k < len(a.index) && int(a.index[k]) == i {
		return a.values[k]
	}
	return 0
}

// Set writes a cell, expanding a compressed array first. Writes outside the
// array are ignored and reported with false.
func (a *DataArray[T]) Set(row, col, time int, value T) bool {
	if !a.InBounds(row, col, time) {
		return false
	}
	if a.compressed {
		a.Expand()
	}
	a.dense[a.linear(row, col, time)] = value
	return true
}

// Add accumulates into a cell, expanding a compressed array first.
func (a *DataArray[T]) Add(row, col, time int, value T) bool {
	if !a.InBounds(row, col, time) {
		return false
	}
	if a.compressed {
		a.Expand()
	}
	a.dense[a.linear(row, col, time)] += value
	return true
}

// Compress switches to the sparse form keeping the non-zero cells.
func (a *DataArray[T]) Compress() {
	a.CompressWithThreshold(0)
}

// CompressWithThreshold switches to the sparse form; cells whose absolute
// value is below threshold are dropped.
func (a *DataArray[T]) CompressWithThreshold(threshold T) {
	if a.compressed {
		if threshold == 0 {
			return
		}
		a.Expand()
	}
	n := 0
	for _, v := range a.dense {
		if keep(v, threshold) {
			n++
		}
	}
	a.index = make([]int32, 0, n)
	a.values = make([]T, 0, n)
	for i, v := range a.dense {
		if keep(v, threshold) {
			a.index = append(a.index, int32(i))
			a.values = append(a.values, v)
		}
	}
	a.dense = nil
	a.compressed = true
}

func keep[T Number](v, threshold T) bool {
	if v == 0 {
		return false
	}
	if v < 0 {
		return -v >= threshold
	}
	return v >= threshold
}

// Expand switches to the dense form.
func (a *DataArray[T]) Expand() {
	if !a.compressed {
		return
	}
	a.dense = make([]T, a.nRow*a.nCol*a.nTime)
	for k, i := range a.index {
		a.dense[i] = a.values[k]
	}
	a.index = nil
	a.values = nil
	a.compressed = false
}

// NonZero counts the non-zero cells.
func (a *DataArray[T]) NonZero() int {
	if a.compressed {
		return len(a.index)
	}
	n := 0
	for _, v := range a.dense {
		if v != 0 {
			n++
		}
	}
	return n
}

// Each calls fn for every non-zero cell in (row, col, time) order.
func (a *DataArray[T]) Each(fn func(row, col, time int, value T)) {
	if a.compressed {
		for k, i := range a.index {
			row, col, time := a.address(int(i))
			fn(row, col, time, a.values[k])
		}
		return
	}
	for i, v := range a.dense {
		if v == 0 {
			continue
		}
		row, col, time := a.address(i)
		fn(row, col, time, v)
	}
}

// Reset zeroes the array and leaves it expanded.
func (a *DataArray[T]) Reset() {
	a.dense = make([]T, a.nRow*a.nCol*a.nTime)
	a.index = nil
	a.values = nil
	a.compressed = false
}
