// Package devices implements the read-only observers that turn raw memory
// regions into something a presenter or audio sink can consume: a decoded
// framebuffer and a polling watcher over the audio register bank.
package devices

import (
	"image"
	"image/color"

	"github.com/Ubuntufanboy/Helios/memory"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 256
)

// Palette is the console's fixed 8-color indexed palette.
var Palette = [8]color.RGBA{
	{0, 0, 0, 255},       // black
	{255, 0, 0, 255},     // red
	{255, 255, 0, 255},   // yellow
	{0, 255, 0, 255},     // green
	{0, 0, 255, 255},     // blue
	{0, 255, 255, 255},   // cyan
	{192, 192, 192, 255}, // grey
	{255, 255, 255, 255}, // white
}

// Framebuffer decodes the display memory region into a 256x256 indexed
// image. Only the first DisplaySize pixels of the 65536-pixel grid are
// backed by memory; the remainder stays at palette index 0, matching the
// console's display region being smaller than its nominal resolution.
type Framebuffer struct {
	mem *memory.Memory
}

// NewFramebuffer returns a Framebuffer reading from mem.
func NewFramebuffer(mem *memory.Memory) *Framebuffer {
	return &Framebuffer{mem: mem}
}

// Snapshot decodes the current display memory into an RGBA image sized
// ScreenWidth x ScreenHeight.
func (f *Framebuffer) Snapshot() *image.RGBA {
	bytes := f.mem.DisplayBytes()
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))

	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			idx := y*ScreenWidth + x
			var c color.RGBA
			if idx < len(bytes) {
				c = Palette[bytes[idx]&0x07]
			} else {
				c = Palette[0]
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
