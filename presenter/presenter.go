// Package presenter implements the windowed front-end, an ebiten.Game
// that does nothing but draw whatever the console's framebuffer currently
// holds. The emulation itself runs on its own goroutine via
// console.Machine.Run; this package contributes no scheduling or
// execution logic of its own.
package presenter

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/Ubuntufanboy/Helios/devices"
)

const windowScale = 2

// Game adapts a devices.Framebuffer to the ebiten.Game interface.
type Game struct {
	fb *devices.Framebuffer
}

// New returns a Game that reads frames from fb and sizes the window to
// the console's fixed resolution.
func New(fb *devices.Framebuffer) *Game {
	ebiten.SetWindowSize(devices.ScreenWidth*windowScale, devices.ScreenHeight*windowScale)
	ebiten.SetWindowTitle("Helios 8-bit Console")
	return &Game{fb: fb}
}

// Layout returns the console's fixed resolution, so ebiten handles the
// window-to-framebuffer scaling itself.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return devices.ScreenWidth, devices.ScreenHeight
}

// Draw paints the current framebuffer snapshot onto screen.
func (g *Game) Draw(screen *ebiten.Image) {
	frame := g.fb.Snapshot()
	screen.WritePixels(frame.Pix)
}

// Update does nothing; the CPU runs on its own goroutine independent of
// ebiten's frame clock. It exists only to satisfy ebiten.Game.
func (g *Game) Update() error {
	return nil
}
