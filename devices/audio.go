package devices

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/Ubuntufanboy/Helios/memory"
)

// ChannelKind names which waveform a voice channel should render. The
// watcher only decodes register changes; audiosink owns actually
// synthesizing these.
type ChannelKind int

const (
	ChannelSine ChannelKind = iota
	ChannelSquare
	ChannelTriangle
	ChannelNoise
)

const numVoiceChannels = 4

// VoiceEvent is emitted whenever a byte in the audio register bank
// changes and decodes to a channel in range.
type VoiceEvent struct {
	Channel ChannelKind
	Note    byte
	Freq    float64
}

// noteFrequency converts a console MIDI note (0-63) to Hz. The console
// adds 21 to the raw note before applying the standard A440 equal
// temperament formula.
func noteFrequency(note byte) float64 {
	realNote := float64(note) + 21
	return 440.0 * math.Pow(2, (realNote-69)/12)
}

// AudioWatcher polls the audio register bank at a fixed interval and
// reports every byte that changed since the previous poll, decoded as a
// CCNNNNNN channel/note payload. It is a read-only observer: it never
// writes to memory.
type AudioWatcher struct {
	mem      *memory.Memory
	interval time.Duration
	events   chan VoiceEvent
	stopped  atomic.Bool
	done     chan struct{}
}

// NewAudioWatcher returns a watcher that polls mem every interval, with a
// reasonably buffered event channel so a slow consumer can't stall the
// poll loop.
func NewAudioWatcher(mem *memory.Memory, interval time.Duration) *AudioWatcher {
	return &AudioWatcher{
		mem:      mem,
		interval: interval,
		events:   make(chan VoiceEvent, 64),
		done:     make(chan struct{}),
	}
}

// Events returns the channel VoiceEvents are delivered on.
func (w *AudioWatcher) Events() <-chan VoiceEvent { return w.events }

// Run polls until ctx-equivalent Stop is called or the done channel is
// closed externally. It owns its own goroutine lifecycle rather than
// taking a context, matching the base hardware-watcher shape the rest of
// this package follows: start, poll on a ticker, stop via an atomic flag.
func (w *AudioWatcher) Run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last [memory.AudioSize]byte

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.stopped.Load() {
				return
			}
			current := w.mem.AudioBytes()
			for i := 0; i < memory.AudioSize; i++ {
				if current[i] == last[i] {
					continue
				}
				last[i] = current[i]

				channel := (current[i] >> 6) & 0x03
				note := current[i] & 0x3F
				if int(channel) >= numVoiceChannels {
					continue
				}

				ev := VoiceEvent{
					Channel: ChannelKind(channel),
					Note:    note,
					Freq:    noteFrequency(note),
				}
				select {
				case w.events <- ev:
				default:
					// Consumer fell behind; drop rather than block the poll loop.
				}
			}
		}
	}
}

// Stop halts the poll loop. Safe to call once.
func (w *AudioWatcher) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.done)
	}
}
