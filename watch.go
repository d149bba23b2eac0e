package tapopywal

import (
	"context"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/d0ksan8/tapo-pywal/client"
)

type paletteWatcher struct {
	paletteDestination chan Palette

	path    string
	ticker  *time.Ticker
	stop    chan struct{}
	lastMod time.Time
}

// NewPaletteWatcher polls the pywal cache file and ferries a reload over
// paletteDestination whenever its mtime advances. It blocks until stop is
// closed.
func NewPaletteWatcher(stop chan struct{}, wg *sync.WaitGroup, paletteDestination chan Palette, path string, interval time.Duration) error {
	watcher := &paletteWatcher{
		paletteDestination: paletteDestination,
		path:               path,
		ticker:             time.NewTicker(interval),
		stop:               make(chan struct{}),
	}

	go func() {
		<-stop
		log.Info("Gracefully stopping palette watcher.")
		watcher.Shutdown()
	}()

	defer wg.Done()
	return watcher.Run()
}

func (w *paletteWatcher) Shutdown() {
	close(w.stop)
}

func (w *paletteWatcher) Run() error {
	log.WithField("path", w.path).Info("Palette watcher starting.")
	defer w.ticker.Stop()
	for {
		select {
		case <-w.stop:
			return nil
		case <-w.ticker.C:
			w.check()
		}
	}
}

func (w *paletteWatcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		log.WithError(err).Debug("Could not stat pywal cache.")
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	palette, err := LoadPalette(w.path)
	if err != nil {
		log.WithError(err).Error("Could not reload pywal cache.")
		return
	}
	if len(palette) == 0 {
		log.Warn("Pywal cache has no usable colors.")
		return
	}
	select {
	case w.paletteDestination <- palette:
	case <-w.stop:
	}
}

type paletteApplier struct {
	paletteSource chan Palette
	bulb          client.Bulb
	index         int
	brightness    int

	stop        chan struct{}
	lastApplied *Color
}

// NewPaletteApplier consumes palette reloads and pushes the selected entry
// to the bulb, skipping reloads whose selected color is unchanged. It
// blocks until stop is closed.
func NewPaletteApplier(stop chan struct{}, wg *sync.WaitGroup, paletteSource chan Palette, bulb client.Bulb, index, brightness int) error {
	applier := &paletteApplier{
		paletteSource: paletteSource,
		bulb:          bulb,
		index:         index,
		brightness:    brightness,
		stop:          make(chan struct{}),
	}

	go func() {
		<-stop
		log.Info("Gracefully stopping palette applier.")
		applier.Shutdown()
	}()

	defer wg.Done()
	return applier.Run()
}

func (a *paletteApplier) Shutdown() {
	close(a.stop)
}

func (a *paletteApplier) Run() error {
	log.Info("Palette applier starting.")
	for {
		select {
		case <-a.stop:
			return nil
		case palette := <-a.paletteSource:
			a.apply(palette)
		}
	}
}

func (a *paletteApplier) apply(palette Palette) {
	color, _, err := palette.Select(a.index)
	if err != nil {
		log.WithError(err).Error("Could not select palette color.")
		return
	}
	if a.lastApplied != nil && *a.lastApplied == color {
		log.WithField("hex", color.Hex()).Debug("Palette color unchanged.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ApplyColor(ctx, a.bulb, color, a.brightness); err != nil {
		log.WithError(err).Error("Could not apply palette color.")
		return
	}
	applied := color
	a.lastApplied = &applied
}
