package audio

import (
	"github.com/arlojames/dmgcore/dmg/timing"
)

// APU is the Audio Processing Unit of a DMG Game Boy. It drives four
// channels (CH1 square+sweep, CH2 square, CH3 wave, CH4 noise), a 512Hz
// frame sequencer that gates length/envelope/sweep, and a resampler that
// condenses the 4.19MHz channel output down to host-rate stereo frames.
//
// The register file (NRxx + wave RAM) lives here since it's what the bus
// reads and writes; channel.go owns the per-channel generator state that
// those registers feed, and mixer.go owns the accumulate-and-resample path.
type APU struct {
	enabled  bool
	channels [4]channel

	vinLeft, vinRight bool  // NR50 VIN panning
	volLeft, volRight uint8 // NR50 master volume, 0-7 per side
	vinSample         int16 // external VIN input (Pan Docs: Audio mixing - VIN)

	mixLeftAcc         int64
	mixRightAcc        int64
	mixAccumCycles     int
	pcmBuffer          []float32
	pcmCursor          int
	pcmCycleAcc        float64
	pcmCyclesPerSample float64
	hostSampleRate     int

	frameCounter int // frame sequencer step, 0-7
	frameCycles  int // T-cycles accumulated since the last sequencer tick

	// ch3CurrentByteIndex mirrors channels[2]'s wave-nibble position as a
	// byte offset (0-15). It's the register-facing view of "which wave RAM
	// byte is CH3 reading right now", used by the CPU-visibility redirect
	// in WriteRegister/ReadRegister independent of the generator's own
	// nibble-stepping state.
	ch3CurrentByteIndex uint8

	NR10, NR11, NR12, NR13, NR14 uint8 // Channel 1
	NR21, NR22, NR23, NR24       uint8 // Channel 2
	NR30, NR31, NR32, NR33, NR34 uint8 // Channel 3
	NR41, NR42, NR43, NR44       uint8 // Channel 4
	NR50, NR51, NR52             uint8 // Global controls
	waveRAM                      [waveRAMSize]uint8
}

func New() *APU {
	apu := &APU{hostSampleRate: 44100, enabled: true, NR52: 0x80}
	apu.pcmCyclesPerSample = float64(timing.CPUFrequency) / float64(apu.hostSampleRate)
	return apu
}

// Tick advances the APU by the given number of CPU T-cycles: it runs each
// channel's generator, folds the result into the mixer's accumulators, and
// clocks the frame sequencer every 8192 cycles (512Hz).
func (a *APU) Tick(cycles int) {
	if !a.enabled {
		return
	}

	a.stepChannels(cycles)

	a.frameCycles += cycles
	for a.frameCycles >= cyclesPerStep {
		a.frameCycles -= cyclesPerStep
		a.tickFrameSequencer()
	}
}

// tickFrameSequencer advances one 512Hz step and clocks whichever of
// length/sweep/envelope fire on that step:
//
//	Step | Length (256Hz) | Sweep (128Hz) | Envelope (64Hz)
//	------------------------------------------------------
//	0    | yes            | -             | -
//	1    | -              | -             | -
//	2    | yes            | yes           | -
//	3    | -              | -             | -
//	4    | yes            | -             | -
//	5    | -              | -             | -
//	6    | yes            | yes           | -
//	7    | -              | -             | yes
func (a *APU) tickFrameSequencer() {
	switch a.frameCounter {
	case 0, 4:
		a.tickLength()
	case 2, 6:
		a.tickLength()
		a.tickSweep()
	case 7:
		a.tickEnvelope()
	}

	a.frameCounter = (a.frameCounter + 1) % 8
}

func (a *APU) tickLength() {
	for i := range a.channels {
		ch := &a.channels[i]
		if !ch.lengthEnable || ch.lengthCounter == 0 {
			continue
		}
		ch.lengthCounter--
		if ch.lengthCounter == 0 {
			ch.enabled = false
		}
	}
}

func (a *APU) tickSweep() {
	ch := &a.channels[0]
	if !ch.sweepEnabled {
		return
	}

	ch.sweepTimer--
	if ch.sweepTimer > 0 {
		return
	}

	ch.sweepTimer = ch.sweepPeriod
	if ch.sweepTimer == 0 {
		ch.sweepTimer = 8
	}

	// Per dmg_sound tests: a zero period skips the recalculation entirely.
	if ch.sweepPeriod == 0 {
		return
	}

	newFreq, overflow := ch.checkSweepOverflow()
	if overflow {
		ch.enabled = false
		return
	}
	if ch.sweepDown {
		ch.sweepNegUsed = true
	}
	if ch.sweepStep == 0 {
		return
	}

	ch.shadowFreq = newFreq
	ch.freq = newFreq
	a.NR14 = (a.NR14 & 0b1111_1000) | uint8((newFreq>>8)&0b111)
	a.NR13 = uint8(newFreq)

	// Done again purely for the overflow check (documented Pan Docs oddity).
	if _, overflow := ch.checkSweepOverflow(); overflow {
		ch.enabled = false
	}
}

func (a *APU) tickEnvelope() {
	for _, idx := range [3]int{0, 1, 3} {
		ch := &a.channels[idx]
		// The envelope timer free-runs even while the channel is silent, so
		// the only gate here is the DAC, not ch.enabled.
		if !ch.dacEnabled || ch.envelopeLatched {
			continue
		}

		pace := ch.envelopePace
		if pace == 0 {
			pace = 8
		}
		if ch.envelopeCounter == 0 {
			ch.envelopeCounter = pace
		}
		ch.envelopeCounter--
		if ch.envelopeCounter > 0 {
			continue
		}

		if ch.envelopeUp {
			if ch.volume < 15 {
				ch.volume++
				ch.envelopeCounter = pace
			} else {
				ch.envelopeLatched = true
			}
		} else {
			if ch.volume > 0 {
				ch.volume--
				ch.envelopeCounter = pace
			} else {
				ch.envelopeLatched = true
			}
		}
	}
}

// GetSamples returns up to count interleaved stereo frames as float32 in
// [-1, 1], zero-padding if the resampler hasn't produced enough yet. With
// the master enable off no new frames accumulate, so every returned pair is
// exactly (0.0, 0.0).
func (a *APU) GetSamples(count int) []float32 {
	if count <= 0 {
		return nil
	}

	needed := count * 2
	available := len(a.pcmBuffer) - a.pcmCursor
	if available <= 0 {
		return make([]float32, needed)
	}

	out := make([]float32, needed)
	toCopy := min(available, needed)
	copy(out, a.pcmBuffer[a.pcmCursor:a.pcmCursor+toCopy])
	a.pcmCursor += toCopy

	if a.pcmCursor >= len(a.pcmBuffer) {
		a.pcmBuffer = a.pcmBuffer[:0]
		a.pcmCursor = 0
	}

	return out
}

// Debug/UI helpers implementing Provider below.

func (a *APU) ToggleChannel(idx int) {
	if idx < 0 || idx >= len(a.channels) {
		return
	}
	a.channels[idx].muted = !a.channels[idx].muted
}

// SoloChannel isolates one channel; calling it again on the same channel
// un-solos everything.
func (a *APU) SoloChannel(idx int) {
	if idx < 0 || idx >= len(a.channels) {
		return
	}

	if !a.channels[idx].muted {
		for i := range a.channels {
			a.channels[i].muted = false
		}
	}

	for i := range a.channels {
		a.channels[i].muted = i != idx
	}
}

func (a *APU) GetChannelStatus() (bool, bool, bool, bool) {
	return a.channels[0].enabled, a.channels[1].enabled, a.channels[2].enabled, a.channels[3].enabled
}

// GetChannelVolumes reports each channel's current envelope volume.
func (a *APU) GetChannelVolumes() (ch1, ch2, ch3, ch4 uint8) {
	return a.channels[0].volume, a.channels[1].volume, a.channels[2].volume, a.channels[3].volume
}
