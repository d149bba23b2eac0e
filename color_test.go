package tapopywal

import (
	"math"
	"testing"
)

func TestToHueSaturationKnownColors(t *testing.T) {
	cases := []struct {
		color   Color
		wantHue int
		wantSat int
	}{
		{Color{255, 0, 0}, 0, 100},
		{Color{0, 255, 0}, 120, 100},
		{Color{0, 0, 255}, 240, 100},
		{Color{255, 255, 0}, 60, 100},
		{Color{0, 255, 255}, 180, 100},
		{Color{255, 0, 255}, 300, 100},
		{Color{255, 255, 255}, 0, 0},
		{Color{0, 0, 0}, 0, 0},
		{Color{128, 64, 64}, 0, 50},
	}
	for _, c := range cases {
		hue, sat := c.color.ToHueSaturation()
		if hue != c.wantHue || sat != c.wantSat {
			t.Fatalf("%s: got (%d, %d), want (%d, %d)", c.color, hue, sat, c.wantHue, c.wantSat)
		}
	}
}

func TestToHueSaturationGreysAreAchromatic(t *testing.T) {
	for v := 0; v <= 255; v++ {
		hue, sat := Color{v, v, v}.ToHueSaturation()
		if hue != 0 || sat != 0 {
			t.Fatalf("grey %d: got (%d, %d), want (0, 0)", v, hue, sat)
		}
	}
}

// referenceHueSaturation is a direct transcription of the piecewise
// formula: hue 60*(((G-B)/diff) mod 6) when R is max, +2 and +4 offsets for
// G and B, saturation (diff/max)*100, both truncated.
func referenceHueSaturation(c Color) (int, int) {
	r := float64(c.R) / 255.0
	g := float64(c.G) / 255.0
	b := float64(c.B) / 255.0
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	diff := max - min

	h := 0.0
	if diff != 0 {
		switch max {
		case r:
			h = math.Mod((g-b)/diff, 6.0)
		case g:
			h = (b-r)/diff + 2.0
		case b:
			h = (r-g)/diff + 4.0
		}
		h *= 60.0
		if h < 0 {
			h += 360.0
		}
	}
	s := 0.0
	if max != 0 {
		s = diff / max * 100.0
	}
	return int(h), int(s)
}

func TestToHueSaturationMatchesReferenceAndRanges(t *testing.T) {
	for r := 0; r <= 255; r += 15 {
		for g := 0; g <= 255; g += 15 {
			for b := 0; b <= 255; b += 15 {
				c := Color{r, g, b}
				hue, sat := c.ToHueSaturation()
				wantHue, wantSat := referenceHueSaturation(c)
				if hue != wantHue || sat != wantSat {
					t.Fatalf("%s: got (%d, %d), want (%d, %d)", c, hue, sat, wantHue, wantSat)
				}
				if hue < 0 || hue >= 360 {
					t.Fatalf("%s: hue %d out of [0,360)", c, hue)
				}
				if sat < 0 || sat > 100 {
					t.Fatalf("%s: saturation %d out of [0,100]", c, sat)
				}
			}
		}
	}
}

func TestParseHex(t *testing.T) {
	cases := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"ff0000", Color{255, 0, 0}, false},
		{"#ff0000", Color{255, 0, 0}, false},
		{"#FF8000", Color{255, 128, 0}, false},
		{"  #00ff00\t", Color{0, 255, 0}, false},
		{"#0000ff trailing text", Color{0, 0, 255}, false},
		{"#abc", Color{}, true},
		{"", Color{}, true},
		{"#gg0000", Color{}, true},
		{"#ff00zz", Color{}, true},
	}
	for _, c := range cases {
		got, err := ParseHex(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseHex(%q): expected error, got %s", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseHex(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseHex(%q): got %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseSpec(t *testing.T) {
	cases := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#FF8000", Color{255, 128, 0}, false},
		{"255,128,0", Color{255, 128, 0}, false},
		{"FF8000", Color{255, 128, 0}, false},
		{"255, 128, 0", Color{255, 128, 0}, false},
		{"300,0,-20", Color{300, 0, -20}, false}, // out of range passes through
		{"255,128", Color{}, true},
		{"255,notanumber,0", Color{}, true},
		{"red", Color{}, true},
		{"", Color{}, true},
	}
	for _, c := range cases {
		got, err := ParseSpec(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseSpec(%q): expected error, got %s", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseSpec(%q): got %s, want %s", c.in, got, c.want)
		}
	}
}
