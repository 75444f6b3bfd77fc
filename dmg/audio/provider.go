package audio

// Provider is what a host frontend needs to pull audio out of the core and
// drive its debug/mixer panel. Samples are interleaved stereo float32 pairs
// in [-1, 1] at 44.1kHz.
type Provider interface {
	GetSamples(count int) []float32

	// debug controls: muting individual channels or soloing one of them
	ToggleChannel(channel int)
	SoloChannel(channel int)
	GetChannelStatus() (ch1, ch2, ch3, ch4 bool)
	GetChannelVolumes() (ch1, ch2, ch3, ch4 uint8)
}

var _ Provider = (*APU)(nil)
