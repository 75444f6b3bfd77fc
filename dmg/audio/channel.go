package audio

import "github.com/arlojames/dmgcore/dmg/bit"

// channel holds the generator state for one of the four APU voices. Not
// every field applies to every channel; see the per-field comments for
// which voice(s) use it.
//
//   - duty: for square waves (ch1-2), which of the 4 waveform shapes to use
//   - sweep: periodic frequency shift, CH1 only
//   - envelope: periodic volume ramp, CH1/CH2/CH4
//   - freq: 11-bit period value, actual frequency = 2048-freq (CH1-3)
//   - dacEnabled: if false the channel is silent regardless of volume
//   - lfsr: linear feedback shift register driving CH4's noise
type channel struct {
	enabled bool

	// left/right panning (NR51). A channel with neither set is effectively
	// muted and skipped during mixing.
	left, right bool

	duty          uint8  // square duty index, 0-3
	lengthLoad    uint8  // initial length value as loaded from NRx1/NR31
	lengthCounter uint16 // live length counter (256 max for CH3, 64 for others)
	volume        uint8  // current envelope volume, 0-15

	// CH1 frequency sweep
	sweepPeriod  uint8
	sweepDown    bool
	sweepStep    uint8
	sweepEnabled bool
	sweepTimer   uint8
	shadowFreq   uint16
	sweepNegUsed bool // subtract-mode sweep negate bug tracking

	envelopePace    uint8
	envelopeUp      bool
	envelopeCounter uint8
	envelopeLatched bool

	freq         uint16 // 11-bit period (NRx3/NRx4)
	trigger      bool   // write-only trigger flag
	lengthEnable bool
	freqTimer    int
	dutyStep     uint8
	waveNibble   uint8 // CH3 nibble position, 0-31
	waveSample   uint8 // CH3 last-read byte, latched for CPU visibility
	noiseTimer   int

	// CH4 noise
	lfsr        uint16
	use7bitLFSR bool
	shift       uint8
	divider     uint8

	dacEnabled bool

	muted bool // debug-only mute, independent of enabled/dacEnabled
}

// calculateSweepFrequency is the sweep target calculation used on trigger,
// where a zero shift means "don't touch the frequency" rather than "shift
// by zero".
func (ch *channel) calculateSweepFrequency() (newFreq uint16, overflow bool) {
	if ch.sweepStep == 0 {
		return ch.shadowFreq, false
	}
	return ch.checkSweepOverflow()
}

// checkSweepOverflow computes the sweep target unconditionally, used by the
// periodic frame-sequencer recheck that runs even when shift==0. It never
// mutates channel state.
func (ch *channel) checkSweepOverflow() (newFreq uint16, overflow bool) {
	delta := ch.shadowFreq >> ch.sweepStep
	if ch.sweepDown {
		if delta > ch.shadowFreq {
			newFreq = 0
		} else {
			newFreq = ch.shadowFreq - delta
		}
	} else {
		newFreq = ch.shadowFreq + delta
	}
	return newFreq, newFreq > 2047
}

func (a *APU) squarePeriodCycles(ch *channel) int {
	period := 2048 - int(ch.freq&0x7FF)
	if period <= 0 {
		return 0
	}
	return period * 4
}

func (a *APU) wavePeriodCycles(ch *channel) int {
	period := 2048 - int(ch.freq&0x7FF)
	if period <= 0 {
		return 0
	}
	return period * 2
}

var noiseDividers = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

func (a *APU) noisePeriodCycles(ch *channel) int {
	div := noiseDividers[ch.divider&0x7]
	period := div << ch.shift
	if period <= 0 {
		return 0
	}
	return period
}

var dutyPatterns = [4][8]int64{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

func (a *APU) stepSquare(ch *channel, cycles int) int64 {
	period := a.squarePeriodCycles(ch)
	if period == 0 {
		return 0
	}
	if ch.freqTimer <= 0 {
		ch.freqTimer = period
	}

	ch.freqTimer -= cycles
	for ch.freqTimer <= 0 {
		ch.freqTimer += period
		ch.dutyStep = (ch.dutyStep + 1) & 0x7
	}

	if ch.volume == 0 {
		return 0
	}
	level := int64(ch.volume)
	if dutyPatterns[ch.duty&0x3][ch.dutyStep] == 0 {
		// Mirror the low part of the duty cycle so the waveform stays
		// DC-free instead of clamping to zero.
		return -level
	}
	return level
}

func (a *APU) readWaveSample(nibble uint8) uint8 {
	byteIdx := nibble >> 1
	value := a.waveRAM[byteIdx]
	a.channels[2].waveSample = value
	if nibble&1 == 0 {
		return value >> 4
	}
	return value & 0x0F
}

// waveRAMLocked reports whether CH3 is actively driving the DAC, in which
// case wave RAM access from the CPU is redirected to the live sample byte
// instead of the backing array (Pan Docs: wave RAM corruption bug).
func (a *APU) waveRAMLocked() bool {
	return a.enabled && a.channels[2].enabled && a.channels[2].dacEnabled
}

func (a *APU) stepWave(ch *channel, cycles int) int64 {
	period := a.wavePeriodCycles(ch)
	if period == 0 {
		return 0
	}
	if ch.freqTimer <= 0 {
		ch.freqTimer = period
	}

	ch.freqTimer -= cycles
	for ch.freqTimer <= 0 {
		ch.freqTimer += period
		ch.waveNibble = (ch.waveNibble + 1) & 0x1F
		a.ch3CurrentByteIndex = ch.waveNibble >> 1
	}

	sample := int64(a.readWaveSample(ch.waveNibble)) - 8
	switch ch.volume & 0b11 {
	case 0:
		return 0
	case 1:
		return sample
	case 2:
		return sample / 2
	case 3:
		return sample / 4
	default:
		return sample
	}
}

func (a *APU) stepNoise(ch *channel, cycles int) int64 {
	period := a.noisePeriodCycles(ch)
	if period == 0 {
		return 0
	}
	if ch.lfsr == 0 {
		ch.lfsr = 0x7FFF
	}
	if ch.noiseTimer <= 0 {
		ch.noiseTimer = period
	}

	ch.noiseTimer -= cycles
	for ch.noiseTimer <= 0 {
		ch.noiseTimer += period
		feedback := (ch.lfsr & 1) ^ ((ch.lfsr >> 1) & 1)
		ch.lfsr = (ch.lfsr >> 1) | (feedback << 14)
		if ch.use7bitLFSR {
			ch.lfsr = (ch.lfsr &^ (1 << 6)) | (feedback << 6)
		}
	}

	if ch.volume == 0 {
		return 0
	}
	level := int64(ch.volume)
	if bit.IsSet(0, uint8(ch.lfsr)) {
		// The LFSR's low bit is inverted before it reaches the DAC.
		return -level
	}
	return level
}
