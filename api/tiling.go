package api

import (
	"github.com/sarchlab/eyemap/eyeriss"
)

// TileCoord locates one step of the loop nest. OutF and InF are the origins
// of the output and input tiles, Batch the origin of the batch tile. M, N
// and K are offsets inside those tiles.
type TileCoord struct {
	OutF  int
	InF   int
	Batch int
	M     int
	N     int
	K     int
}

// Tiling maps tile coordinates and PE positions to matrix coordinates.
type Tiling struct {
	Shape   eyeriss.LinearShape
	Mapping eyeriss.Mapping
}

// BatchRow returns the batch row processed by a reduction group. The row is
// invalid when it falls outside the batch tile or the batch.
func (t Tiling) BatchRow(c TileCoord, group int) (int, bool) {
	local := c.M + group
	row := c.Batch + local

	return row, local < t.Mapping.M && row < t.Shape.Batch
}

// InWord returns the reduction word held in a scratchpad slot by the PE at
// a row of its group.
func (t Tiling) InWord(c TileCoord, rowInGroup, slot int) (int, bool) {
	local := c.K + rowInGroup*eyeriss.IfmapWordsPerPE + slot
	word := c.InF + local

	return word, local < t.Mapping.TileWords() && word < t.Shape.InWords()
}

// OutChannel returns the output channel accumulated in a psum lane of a PE
// column.
func (t Tiling) OutChannel(c TileCoord, col, lane int) (int, bool) {
	local := c.N + col*eyeriss.PsumsPerPE + lane
	channel := c.OutF + local

	return channel, col < t.Mapping.TN &&
		local < t.Mapping.TileChannels() &&
		channel < t.Shape.OutFeatures
}

// PEIndex returns the flat index of the PE at a row of a group.
func PEIndex(mode eyeriss.Mode, group, rowInGroup, col int) int {
	return (mode.BaseRow(group)+rowInGroup)*eyeriss.ArrayCols + col
}

// Layout describes the row-major word layout of the three matrices.
type Layout struct {
	Batch   int
	InWords int
	Out     int
}

// NewLayout creates the layout of a linear layer.
func NewLayout(shape eyeriss.LinearShape) Layout {
	return Layout{
		Batch:   shape.Batch,
		InWords: shape.InWords(),
		Out:     shape.OutFeatures,
	}
}

// IfmapOffset is the word offset of A[row][word].
func (l Layout) IfmapOffset(row, word int) (int, bool) {
	ok := row >= 0 && row < l.Batch && word >= 0 && word < l.InWords
	return row*l.InWords + word, ok
}

// WeightOffset is the word offset of B[word][channel].
func (l Layout) WeightOffset(word, channel int) (int, bool) {
	ok := word >= 0 && word < l.InWords && channel >= 0 && channel < l.Out
	return word*l.Out + channel, ok
}

// OutputOffset is the word offset of C[row][channel].
func (l Layout) OutputOffset(row, channel int) (int, bool) {
	ok := row >= 0 && row < l.Batch && channel >= 0 && channel < l.Out
	return row*l.Out + channel, ok
}
