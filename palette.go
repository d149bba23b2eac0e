package tapopywal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Palette is the ordered color list pywal writes to its cache. Index 0 is
// the wallpaper background; index 1 is the accent color by pywal
// convention.
type Palette []Color

// LoadPalette reads a pywal cache file. A missing file is not an error: it
// returns an empty palette so callers can tell the user to run wal first.
// Lines that do not parse as hex colors are skipped.
func LoadPalette(path string) (Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var colors Palette
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "#") {
			continue
		}
		color, err := ParseHex(line)
		if err != nil {
			continue
		}
		colors = append(colors, color)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return colors, nil
}

// Select picks the palette entry for a user-supplied index and reports the
// index actually used. Indexes past the end fall back to the accent color
// at index 1; negative indexes count from the end of the palette.
func (p Palette) Select(index int) (Color, int, error) {
	requested := index
	if index >= len(p) {
		index = 1
	}
	if index < 0 {
		index += len(p)
	}
	if index < 0 || index >= len(p) {
		return Color{}, 0, fmt.Errorf("palette index %d out of range", requested)
	}
	return p[index], index, nil
}
