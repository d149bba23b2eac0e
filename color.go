package tapopywal

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB triple as parsed from user input or the pywal cache.
// Components are plain ints: decimal input is passed through without
// clamping and rejected by the device instead.
type Color struct {
	R, G, B int
}

func (c Color) String() string {
	return fmt.Sprintf("RGB(%d,%d,%d)", c.R, c.G, c.B)
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// ToHueSaturation converts to the hue/saturation pair set_device_info
// wants: hue in [0,360), saturation in [0,100], both truncated rather than
// rounded. Greys, including black and white, come out as (0, 0).
func (c Color) ToHueSaturation() (hue, saturation int) {
	h, s, _ := c.colorful().Hsv()
	return int(h), int(s * 100)
}

// ParseHex parses an rrggbb color, tolerating leading '#'s and ignoring
// anything after the six digits.
func ParseHex(s string) (Color, error) {
	s = strings.TrimLeft(strings.TrimSpace(s), "#")
	if len(s) < 6 {
		return Color{}, fmt.Errorf("%q is too short for a hex color", s)
	}
	var channels [3]int
	for i := range channels {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("%q is not a hex color", s)
		}
		channels[i] = int(v)
	}
	return Color{R: channels[0], G: channels[1], B: channels[2]}, nil
}

// ParseSpec parses a user-supplied color argument: "RRGGBB" hex with an
// optional leading '#', or a comma-separated "R,G,B" decimal triple.
func ParseSpec(spec string) (Color, error) {
	s := strings.TrimSpace(spec)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) < 3 {
			return Color{}, fmt.Errorf("unknown color format: %s", spec)
		}
		var channels [3]int
		for i := range channels {
			v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil {
				return Color{}, fmt.Errorf("unknown color format: %s", spec)
			}
			channels[i] = v
		}
		return Color{R: channels[0], G: channels[1], B: channels[2]}, nil
	}
	color, err := ParseHex(s)
	if err != nil {
		return Color{}, fmt.Errorf("unknown color format: %s", spec)
	}
	return color, nil
}
