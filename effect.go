package tapopywal

import (
	"context"
	"sync"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	tomb "gopkg.in/tomb.v2"

	"github.com/d0ksan8/tapo-pywal/client"
)

// Each step is a full HTTP round trip to the bulb, so the effect ticks far
// coarser than a local animation would.
const breatheTick = 500 * time.Millisecond

type Effect interface {
	Start() error
	Stop() error
}

type breatheEffect struct {
	colors   []colorful.Color
	position int

	bulb client.Bulb

	t  tomb.Tomb
	mu sync.Mutex
}

type gradientTable []struct {
	Col colorful.Color
	Pos float64
}

// NewBreatheEffect precomputes one period of a from-to-from cycle and
// returns an effect that walks it against the bulb until stopped.
func NewBreatheEffect(bulb client.Bulb, from, to Color, seconds int) Effect {
	log.Info("New breathe effect")
	steps := seconds * 2
	keypoints := gradientTable{
		{from.colorful(), 0.0},
		{to.colorful(), 0.2},
		{to.colorful(), 0.8},
		{from.colorful(), 1.0},
	}
	colors := []colorful.Color{}
	for y := steps; y >= 0; y-- {
		c := keypoints.getInterpolatedColorFor(float64(y) / float64(steps))
		colors = append(colors, c)
	}
	return &breatheEffect{
		colors:   colors,
		position: 0,
		bulb:     bulb,
	}
}

func (e *breatheEffect) loop() error {
	ticker := time.NewTicker(breatheTick)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			if e.position >= len(e.colors) {
				e.position = 0
			}
			color := e.colors[e.position]
			log.WithFields(log.Fields{
				"t":        t,
				"position": e.position,
				"color":    color.Hex(),
			}).Debug("Tick")
			r, g, b := color.Clamped().RGB255()
			step := Color{R: int(r), G: int(g), B: int(b)}
			hue, saturation := step.ToHueSaturation()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := e.bulb.SetHueSaturation(ctx, hue, saturation)
			cancel()
			if err != nil && e.t.Alive() {
				log.WithError(err).Warn("Breathe step failed.")
			}
			e.position = e.position + 1
		case <-e.t.Dying():
			return nil
		}
	}
}

func (e *breatheEffect) Start() error {
	e.t.Go(e.loop)
	return nil
}

func (e *breatheEffect) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	log.WithField("effect", "breathe").Info("Stopping")
	e.t.Kill(nil)
	return e.t.Wait()
}

func (gt gradientTable) getInterpolatedColorFor(t float64) colorful.Color {
	for i := 0; i < len(gt)-1; i++ {
		c1 := gt[i]
		c2 := gt[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			// We are in between c1 and c2. Go blend them!
			t := (t - c1.Pos) / (c2.Pos - c1.Pos)
			return c1.Col.BlendHcl(c2.Col, t).Clamped()
		}
	}
	return gt[len(gt)-1].Col
}
