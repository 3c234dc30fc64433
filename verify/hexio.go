package verify

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ReadHex reads one 32-bit hexadecimal value per line. Blank lines are
// skipped. Lines that do not parse are skipped with a warning and counted.
func ReadHex(r io.Reader, source string) (words []uint32, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		w, perr := parseHexWord(line)
		if perr != nil {
			slog.Warn("invalid hex line",
				"File", source, "Line", lineNo, "Text", line)
			skipped++
			continue
		}

		words = append(words, w)
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%s: %w", source, err)
	}

	return words, skipped, nil
}

func parseHexWord(s string) (uint32, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}

	if neg {
		if v > 1<<31 {
			return 0, strconv.ErrRange
		}
		return uint32(-int64(v)), nil
	}

	return uint32(v), nil
}

// LoadHex reads a hex file.
func LoadHex(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	words, _, err := ReadHex(f, path)

	return words, err
}

// WriteHex writes one zero-padded upper-case hex word per line.
func WriteHex(w io.Writer, words []uint32) error {
	bw := bufio.NewWriter(w)
	for _, v := range words {
		if _, err := fmt.Fprintf(bw, "%08X\n", v); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// SaveHex writes a hex file.
func SaveHex(path string, words []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteHex(f, words); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// ToWords reinterprets signed values as words.
func ToWords(values []int32) []uint32 {
	out := make([]uint32, len(values))
	for i, v := range values {
		out[i] = uint32(v)
	}

	return out
}

// ToInt32 reinterprets words as signed values.
func ToInt32(words []uint32) []int32 {
	out := make([]int32, len(words))
	for i, v := range words {
		out[i] = int32(v)
	}

	return out
}
