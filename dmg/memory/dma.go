package memory

// dmaState drives an OAM DMA transfer: writing addr.DMA latches a source page
// and, after a one M-cycle startup delay, copies 160 bytes into OAM at a rate
// of one byte per 4 T-cycles. While active, the CPU can only see HRAM; every
// other address reads as 0xFF since the DMA unit owns the bus.
type dmaState struct {
	active    bool
	startWait int
	source    uint16
	nextIndex int
	elapsed   int
}

// start begins a transfer from source page (value << 8). Restarting mid-transfer
// (writing DMA again before the previous one finished) simply replaces it, which
// matches how the latch register behaves on real hardware.
func (d *dmaState) start(page byte) {
	d.active = true
	d.startWait = 4
	d.source = uint16(page) << 8
	d.nextIndex = 0
	d.elapsed = 0
}

func (d *dmaState) tick(m *MMU, cycles int) {
	if !d.active {
		return
	}

	for i := 0; i < cycles; i++ {
		if d.startWait > 0 {
			d.startWait--
			continue
		}

		d.elapsed++
		if d.elapsed%4 != 0 {
			continue
		}

		value := m.ReadRaw(d.source + uint16(d.nextIndex))
		m.memory[0xFE00+d.nextIndex] = value
		d.nextIndex++

		if d.nextIndex >= 160 {
			d.active = false
			return
		}
	}
}

// blocksCPUAccess reports whether the CPU's view of address should be forced
// to 0xFF because an OAM DMA transfer is in progress and address isn't HRAM.
func (d *dmaState) blocksCPUAccess(address uint16) bool {
	if !d.active || d.startWait > 0 {
		return false
	}
	return address < 0xFF80 || address > 0xFFFE
}
