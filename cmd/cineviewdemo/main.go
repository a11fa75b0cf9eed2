// Command cineviewdemo runs the cineview engine headless: it lays four
// synthetic cine series out in a 2x2 grid, plays them with proportional
// synchronization for a simulated duration, and writes the shared
// surface to a PNG contact sheet.
package main

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/gogpu/cineview"
	"github.com/gogpu/cineview/framesync"
	"github.com/gogpu/cineview/render"
	"github.com/gogpu/cineview/schedule"
	"github.com/gogpu/cineview/viewport"
)

func main() {
	var (
		size    = flag.Int("size", 800, "surface size in pixels")
		seconds = flag.Float64("seconds", 2, "simulated playback duration")
		output  = flag.String("output", "cineview.png", "output file")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		cineview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	backend, err := render.NewSoftwareBackend(*size, *size)
	if err != nil {
		log.Fatalf("create backend: %v", err)
	}

	layout := &gridLayout{cols: 2, rows: 2, size: *size}
	clock := schedule.NewManualClock(time.Unix(0, 0))

	eng, err := cineview.New(backend, layout,
		cineview.WithClock(clock),
		cineview.WithMemoryBudget(256<<20),
	)
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}
	defer eng.Close()

	ids := eng.CreateSlots(4)
	layout.ids = ids
	eng.SyncAllSlots()

	// Four synthetic cine loops with different lengths and rates.
	series := []struct {
		frames int
		fps    float64
	}{
		{frames: 60, fps: 30},
		{frames: 30, fps: 30},
		{frames: 90, fps: 15},
		{frames: 45, fps: 60},
	}
	for i, id := range ids {
		s := series[i]
		info := viewport.SeriesInfo{
			SeriesID:    "demo-" + string(rune('a'+i)),
			ImageWidth:  256,
			ImageHeight: 256,
			FrameCount:  s.frames,
			BitDepth:    8,
		}
		if err := eng.AttachSeries(id, info, sweepFrames(256, 256, s.frames)); err != nil {
			log.Fatalf("attach series %d: %v", i, err)
		}
		eng.SetFPS(id, s.fps)
		eng.SetPlaying(id, true)
	}

	// Slot 0 drives the other three proportionally.
	eng.CreateSyncGroup(framesync.Group{
		MasterID: ids[0],
		SlaveIDs: ids[1:],
		Mode:     framesync.ModeFrameRatio,
	})

	eng.Start()
	ticks := int(*seconds * 60)
	clock.Advance(time.Second/60, ticks)
	eng.Stop()

	stats := eng.GetStats()
	log.Printf("simulated %.1fs: %.1f ticks/s, %.2fms/frame, %.1f MB resident",
		*seconds, stats.FPS, stats.FrameTimeMs, stats.VRAMUsageMB)
	for _, slot := range eng.Viewports() {
		log.Printf("slot %s: frame %d/%d", slot.ID[:8],
			slot.Playback.CurrentFrame, slot.FrameCount())
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, backend.Surface()); err != nil {
		log.Fatalf("encode png: %v", err)
	}
	log.Printf("contact sheet saved to %s (%dx%d)", *output, *size, *size)
}

// gridLayout places slots in a fixed grid over the surface.
type gridLayout struct {
	cols, rows, size int
	ids              []string
}

func (g *gridLayout) SlotRect(id string) (viewport.Rect, bool) {
	for i, candidate := range g.ids {
		if candidate == id {
			cw := float64(g.size) / float64(g.cols)
			ch := float64(g.size) / float64(g.rows)
			return viewport.Rect{
				Left:   float64(i%g.cols) * cw,
				Top:    float64(i/g.cols) * ch,
				Width:  cw,
				Height: ch,
			}, true
		}
	}
	return viewport.Rect{}, false
}

func (g *gridLayout) DevicePixelRatio() float64 { return 1 }
func (g *gridLayout) SurfaceSize() (int, int)   { return g.size, g.size }

// sweepFrames synthesizes a cine loop: a bright sector sweeping around
// the frame center, loosely imitating an ultrasound cine.
func sweepFrames(w, h, frameCount int) []*image.RGBA {
	frames := make([]*image.RGBA, frameCount)
	cx := float64(w) / 2
	cy := float64(h) / 2
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		angle := float64(i) / float64(frameCount) * 2 * math.Pi
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dx := float64(x) - cx
				dy := float64(y) - cy
				diff := math.Abs(math.Atan2(dy, dx) - angle)
				if diff > math.Pi {
					diff = 2*math.Pi - diff
				}
				v := uint8(30)
				if diff < 0.4 && math.Hypot(dx, dy) < cx {
					v = uint8(240 - diff*300)
				}
				img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}
		frames[i] = img
	}
	return frames
}
