package tapopywal

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/d0ksan8/tapo-pywal/client"
)

// ApplyColor converts a color and pushes it to the bulb, hue and
// saturation first, brightness second. The two calls are not atomic; a
// failure in between leaves the device half updated, same as the device
// API itself.
func ApplyColor(ctx context.Context, bulb client.Bulb, color Color, brightness int) error {
	hue, saturation := color.ToHueSaturation()
	fmt.Printf("Setting color: %s -> HSV(%d, %d)\n", color, hue, saturation)
	log.WithFields(log.Fields{
		"hex":        color.Hex(),
		"hue":        hue,
		"saturation": saturation,
		"brightness": brightness,
	}).Debug("Applying color")
	if err := bulb.SetHueSaturation(ctx, hue, saturation); err != nil {
		return err
	}
	return bulb.SetBrightness(ctx, brightness)
}

// ApplyPaletteIndex loads the pywal cache and applies the selected entry.
// The boolean reports whether a color was actually applied: an unavailable
// palette prints guidance and returns false with no error.
func ApplyPaletteIndex(ctx context.Context, bulb client.Bulb, path string, index, brightness int) (bool, error) {
	palette, err := LoadPalette(path)
	if err != nil {
		return false, err
	}
	if len(palette) == 0 {
		fmt.Println("Could not load pywal colors.")
		fmt.Println("Make sure pywal is installed and run 'wal' first.")
		return false, nil
	}
	color, used, err := palette.Select(index)
	if err != nil {
		return false, err
	}
	fmt.Printf("Using pywal color %d: %s\n", used, color)
	if err := ApplyColor(ctx, bulb, color, brightness); err != nil {
		return false, err
	}
	return true, nil
}
