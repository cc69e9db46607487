package memory

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	m := New()
	m.Write(0x1234, 0x42)
	assert(t, m.Read(0x1234) == 0x42, "expected 0x42, got %#x", m.Read(0x1234))
	assert(t, m.Read(0x1235) == 0, "unwritten byte should be zero")
}

func TestLoadProgramTruncatesSilently(t *testing.T) {
	m := New()
	big := make([]byte, ROMSize+100)
	for i := range big {
		big[i] = 0xAA
	}
	m.LoadProgram(big)
	assert(t, m.Read(0) == 0xAA, "first ROM byte should be loaded")
	assert(t, m.Read(ROMSize-1) == 0xAA, "last ROM byte should be loaded")
	// Anything past ROM is untouched RAM, still zero.
	assert(t, m.Read(RAMStart) == 0, "RAM should not be touched by an oversized load")
}

func TestDisplayBytesSnapshot(t *testing.T) {
	m := New()
	m.Write(DisplayStart, 3)
	m.Write(DisplayStart+1, 7)
	snap := m.DisplayBytes()
	assert(t, snap[0] == 3 && snap[1] == 7, "display snapshot should reflect writes")

	// Mutating the snapshot must not affect memory.
	snap[0] = 0
	assert(t, m.Read(DisplayStart) == 3, "snapshot should be a copy, not a live view")
}

func TestAudioBytesSnapshot(t *testing.T) {
	m := New()
	m.Write(AudioStart+5, 0x99)
	snap := m.AudioBytes()
	assert(t, snap[5] == 0x99, "audio snapshot should reflect writes")
}

func TestSwapDisplayBufferIsIdempotentWithDirectWrites(t *testing.T) {
	m := New()
	m.Write(DisplayStart+10, 4)
	m.SwapDisplayBuffer()
	assert(t, m.Read(DisplayStart+10) == 4, "swap should preserve already-visible writes")
}
