package api

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/eyemap/eyeriss"
)

// IndexError reports an access outside a buffer. Coordinates are filled in
// by the scheduler when the access came from the loop nest.
type IndexError struct {
	Buffer  string
	Index   int
	Len     int
	Row     int
	Channel int
	Coord   *TileCoord
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("%s: index %d out of range [0, %d)", e.Buffer, e.Index, e.Len)
	if e.Coord != nil {
		msg += fmt.Sprintf(" at row %d channel %d, tile %+v", e.Row, e.Channel, *e.Coord)
	}

	return msg
}

// Buffer is a word-addressed int32 buffer resident in the global buffer.
type Buffer struct {
	name    string
	storage *mem.Storage
	words   int
}

// NewBuffer creates a zeroed buffer of the given number of words.
func NewBuffer(name string, words int) *Buffer {
	return &Buffer{
		name:    name,
		storage: mem.NewStorage(uint64(words * eyeriss.WordBytes)),
		words:   words,
	}
}

// Name returns the name of the buffer.
func (b *Buffer) Name() string {
	return b.name
}

// Len returns the capacity in words.
func (b *Buffer) Len() int {
	return b.words
}

func (b *Buffer) check(i int) error {
	if i < 0 || i >= b.words {
		return &IndexError{Buffer: b.name, Index: i, Len: b.words}
	}

	return nil
}

// Load reads one word.
func (b *Buffer) Load(i int) (int32, error) {
	if err := b.check(i); err != nil {
		return 0, err
	}

	data, err := b.storage.Read(uint64(i*eyeriss.WordBytes), eyeriss.WordBytes)
	if err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(data)), nil
}

// Store writes one word.
func (b *Buffer) Store(i int, v int32) error {
	if err := b.check(i); err != nil {
		return err
	}

	data := make([]byte, eyeriss.WordBytes)
	binary.LittleEndian.PutUint32(data, uint32(v))

	return b.storage.Write(uint64(i*eyeriss.WordBytes), data)
}

// Words returns a copy of the whole buffer.
func (b *Buffer) Words() ([]int32, error) {
	out := make([]int32, b.words)
	if b.words == 0 {
		return out, nil
	}

	data, err := b.storage.Read(0, uint64(b.words*eyeriss.WordBytes))
	if err != nil {
		return nil, err
	}

	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*eyeriss.WordBytes:]))
	}

	return out, nil
}

// Fill overwrites the buffer from the start.
func (b *Buffer) Fill(values []int32) error {
	if len(values) > b.words {
		return &IndexError{Buffer: b.name, Index: len(values) - 1, Len: b.words}
	}

	data := make([]byte, len(values)*eyeriss.WordBytes)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*eyeriss.WordBytes:], uint32(v))
	}

	return b.storage.Write(0, data)
}
