package eyeriss

import "fmt"

// Mode is the reduction topology of the PE array. It equals the number of
// independent groups the six rows are split into.
type Mode int

type modeInfo struct {
	groups       int
	rowsPerGroup int
}

var modeTable = map[Mode]modeInfo{
	1: {groups: 1, rowsPerGroup: 6},
	2: {groups: 2, rowsPerGroup: 3},
	3: {groups: 3, rowsPerGroup: 2},
	6: {groups: 6, rowsPerGroup: 1},
}

// Modes lists the supported modes in search order.
func Modes() []Mode {
	return []Mode{1, 2, 3, 6}
}

// ParseMode converts an integer to a Mode, rejecting unsupported values.
func ParseMode(v int) (Mode, error) {
	m := Mode(v)
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, v)
	}

	return m, nil
}

// Valid reports whether the mode is supported.
func (m Mode) Valid() bool {
	_, ok := modeTable[m]
	return ok
}

// Groups is the number of reduction groups, each working on its own batch
// row.
func (m Mode) Groups() int {
	return modeTable[m].groups
}

// RowsPerGroup is the number of PE rows chained in one reduction. It is the
// tk tile size of the mode.
func (m Mode) RowsPerGroup() int {
	return modeTable[m].rowsPerGroup
}

// GroupOfRow returns the reduction group a PE row belongs to.
func (m Mode) GroupOfRow(row int) int {
	return row / m.RowsPerGroup()
}

// Tag returns the reduction tag of the PE at (row, col). PEs in the same
// column and group share a tag.
func (m Mode) Tag(row, col int) int {
	return m.GroupOfRow(row)*ArrayCols + col
}

// LeaderRow returns the row holding the reduced result of a group.
func (m Mode) LeaderRow(group int) int {
	return (group+1)*m.RowsPerGroup() - 1
}

// BaseRow returns the first row of a group. Reloaded partial sums enter
// there.
func (m Mode) BaseRow(group int) int {
	return group * m.RowsPerGroup()
}

func (m Mode) String() string {
	return fmt.Sprintf("mode%d", int(m))
}
