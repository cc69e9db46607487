// Package audiosink renders the console's four voice channels to the
// speakers. It mirrors the original console's mixed-oscillator design
// (one state machine per channel: waveform kind, frequency, phase,
// enabled, volume) but speaks Go's pull-based io.Reader model instead of
// a fixed-length sample buffer, since oto.Player wants a continuous
// stream rather than one append per change.
package audiosink

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/Ubuntufanboy/Helios/devices"
)

const (
	sampleRate   = 44100
	numChannels  = 4
	masterVolume = 0.5
)

type voice struct {
	kind    devices.ChannelKind
	freq    float64
	phase   float64
	enabled bool
	volume  float64
}

// Sink mixes all four voice channels into one continuous PCM stream and
// plays it through an oto player.
type Sink struct {
	mu     sync.Mutex
	voices [numChannels]voice

	player oto.Player
}

// New starts a player on the caller's oto context reading from the mixer,
// and returns a Sink ready to receive VoiceEvents. ctx must remain alive for
// the lifetime of the returned Sink.
func New(ctx *oto.Context) *Sink {
	s := &Sink{}
	for i := range s.voices {
		s.voices[i] = voice{kind: devices.ChannelKind(i), freq: 440, volume: 0.2}
	}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s
}

// Apply updates the channel named in ev, turning it on at the given note
// frequency. This is the only way a voice becomes enabled; the console
// has no explicit "note off" register, matching the original hardware.
func (s *Sink) Apply(ev devices.VoiceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices[ev.Channel].freq = ev.Freq
	s.voices[ev.Channel].enabled = true
}

// Watch drains events off ch and applies them until ch is closed. Run it
// in its own goroutine.
func (s *Sink) Watch(ch <-chan devices.VoiceEvent) {
	for ev := range ch {
		s.Apply(ev)
	}
}

// Close stops playback.
func (s *Sink) Close() error {
	return s.player.Close()
}

// Read implements io.Reader, producing 32-bit float little-endian PCM
// samples mixed from every enabled voice. oto pulls from this
// continuously while the player is playing.
func (s *Sink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const bytesPerSample = 4
	n := len(p) / bytesPerSample

	for i := 0; i < n; i++ {
		mixed := 0.0
		for c := range s.voices {
			v := &s.voices[c]
			if !v.enabled {
				continue
			}
			phaseInc := v.freq / sampleRate
			v.phase += phaseInc
			if v.phase >= 1 {
				v.phase -= math.Trunc(v.phase)
			}
			mixed += sampleFor(v)
		}
		if mixed > 1 {
			mixed = 1
		} else if mixed < -1 {
			mixed = -1
		}
		putFloat32LE(p[i*bytesPerSample:], float32(mixed*masterVolume))
	}

	return n * bytesPerSample, nil
}

func sampleFor(v *voice) float64 {
	angle := v.phase * 2 * math.Pi
	switch v.kind {
	case devices.ChannelSine:
		return math.Sin(angle) * v.volume
	case devices.ChannelSquare:
		if math.Sin(angle) >= 0 {
			return v.volume
		}
		return -v.volume
	case devices.ChannelTriangle:
		return 2*math.Abs(v.phase-math.Floor(v.phase+0.5))*v.volume - v.volume/2
	case devices.ChannelNoise:
		return rand.Float64()*2*v.volume - v.volume
	default:
		return 0
	}
}

func putFloat32LE(b []byte, f float32) {
	bits := math.Float32bits(f)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
