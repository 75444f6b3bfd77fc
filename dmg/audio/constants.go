package audio

// Reference: https://gbdev.io/pandocs/Audio_details.html
const (
	// cyclesPerStep is how many T-cycles separate two frame-sequencer
	// ticks: the sequencer runs at 512Hz, so 4194304/512 = 8192.
	cyclesPerStep = 8192

	// waveRAMSize is CH3's wave pattern RAM, in bytes (16 bytes = 32 nibbles).
	waveRAMSize = 16
)
