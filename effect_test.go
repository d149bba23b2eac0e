package tapopywal

import (
	"context"
	"sync"
	"testing"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/d0ksan8/tapo-pywal/client"
)

// syncBulb is safe to inspect while the effect loop is still running.
type syncBulb struct {
	mu   sync.Mutex
	hues []int
	sats []int
}

func (b *syncBulb) On(ctx context.Context) error  { return nil }
func (b *syncBulb) Off(ctx context.Context) error { return nil }

func (b *syncBulb) SetHueSaturation(ctx context.Context, hue, saturation int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hues = append(b.hues, hue)
	b.sats = append(b.sats, saturation)
	return nil
}

func (b *syncBulb) SetBrightness(ctx context.Context, brightness int) error { return nil }

func (b *syncBulb) GetDeviceInfo(ctx context.Context) (*client.DeviceInfo, error) {
	return &client.DeviceInfo{}, nil
}

func (b *syncBulb) Close() error { return nil }

func (b *syncBulb) snapshot() ([]int, []int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.hues...), append([]int(nil), b.sats...)
}

func TestNewBreatheEffectPrecomputesCycle(t *testing.T) {
	from := Color{255, 0, 0}
	to := Color{0, 0, 255}
	effect := NewBreatheEffect(&syncBulb{}, from, to, 5).(*breatheEffect)

	if got, want := len(effect.colors), 11; got != want {
		t.Fatalf("got %d steps, want %d", got, want)
	}

	first := rgb255(effect.colors[0])
	last := rgb255(effect.colors[len(effect.colors)-1])
	if first != from || last != from {
		t.Fatalf("cycle ends are %v and %v, want %v", first, last, from)
	}

	// Positions 2 through 8 sit on the flat middle of the gradient.
	for i := 2; i <= 8; i++ {
		if got := rgb255(effect.colors[i]); got != to {
			t.Fatalf("step %d is %v, want %v", i, got, to)
		}
	}
}

func TestBreatheEffectAppliesCycleStart(t *testing.T) {
	bulb := &syncBulb{}
	from := Color{255, 0, 0}
	to := Color{0, 255, 0}
	effect := NewBreatheEffect(bulb, from, to, 1)
	if err := effect.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		hues, sats := bulb.snapshot()
		if len(hues) > 0 {
			if hues[0] != 0 || sats[0] != 100 {
				t.Fatalf("got first step HSV(%d, %d), want HSV(0, 100)", hues[0], sats[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("effect never pushed a step")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := effect.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	hues, _ := bulb.snapshot()
	n := len(hues)
	time.Sleep(3 * breatheTick / 2)
	hues, _ = bulb.snapshot()
	if len(hues) != n {
		t.Fatalf("effect kept ticking after Stop: %d -> %d steps", n, len(hues))
	}
}

func rgb255(c colorful.Color) Color {
	r, g, b := c.RGB255()
	return Color{R: int(r), G: int(g), B: int(b)}
}
