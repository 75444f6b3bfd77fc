package serial

import (
	"log/slog"

	"github.com/arlojames/dmgcore/dmg/addr"
	"github.com/arlojames/dmgcore/dmg/bit"
)

// transferCycles is how long a DMG takes to shift one byte out over the
// internal clock: 8 bits at ~8192 Hz gives roughly 4096 CPU cycles.
const transferCycles = 4096

// LogSink is a serial peer that never actually talks to anything: it answers
// every transfer with defaultRX and logs whatever byte the CPU sent, which is
// how most test ROMs report pass/fail text over the link port.
type LogSink struct {
	irqHandler func()
	logger     *slog.Logger
	lineBuf    lineBuffer
	tap        func(byte)

	sb, sc    byte
	pending   bool
	countdown int

	immediate bool
	defaultRX byte
}

// LogSinkOption configures a LogSink at construction time.
type LogSinkOption func(*LogSink)

// WithFixedTiming makes the sink honor real transfer timing (~4096 cycles
// per byte) instead of completing transfers the instant they start.
func WithFixedTiming() LogSinkOption {
	return func(s *LogSink) { s.immediate = false }
}

// WithTap invokes fn with every byte the guest sends, in addition to the
// line-buffered logging. Test harnesses use it to collect the pass/fail
// text a ROM prints over the link port.
func WithTap(fn func(byte)) LogSinkOption {
	return func(s *LogSink) { s.tap = fn }
}

// NewLogSink builds a LogSink. irq is invoked on every completed transfer and
// should request the Serial interrupt on the owning bus.
func NewLogSink(irq func(), opts ...LogSinkOption) *LogSink {
	s := &LogSink{
		irqHandler: irq,
		immediate:  true,
		defaultRX:  0xFF,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

func (s *LogSink) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		s.tryStartTransfer()
	default:
		panic("serial.LogSink: invalid write address")
	}
}

func (s *LogSink) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		return s.sc
	default:
		panic("serial.LogSink: invalid read address")
	}
}

// Tick advances a pending fixed-timing transfer; a no-op under immediate mode
// or when nothing is in flight.
func (s *LogSink) Tick(cycles int) {
	if s.immediate || !s.pending {
		return
	}
	s.countdown -= cycles
	if s.countdown <= 0 {
		s.finishTransfer()
	}
}

func (s *LogSink) Reset() {
	s.sb = 0x00
	s.sc = 0x00
	s.pending = false
	s.countdown = 0
	s.lineBuf.reset()
}

// transferRequested reports whether SC asks for a transfer on the internal
// clock: bit 7 (start) and bit 0 (clock source) both set.
func (s *LogSink) transferRequested() bool {
	return bit.IsSet(7, s.sc) && bit.IsSet(0, s.sc)
}

func (s *LogSink) tryStartTransfer() {
	if s.pending || !s.transferRequested() {
		return
	}

	s.lineBuf.feed(s.sb, s.logger)
	if s.tap != nil {
		s.tap(s.sb)
	}

	if s.immediate {
		s.finishTransfer()
		return
	}
	s.pending = true
	s.countdown = transferCycles
}

func (s *LogSink) finishTransfer() {
	s.sb = s.defaultRX
	s.sc = bit.Clear(7, s.sc) // hardware clears the start bit on completion
	s.pending = false
	if s.irqHandler != nil {
		s.irqHandler()
	}
}
