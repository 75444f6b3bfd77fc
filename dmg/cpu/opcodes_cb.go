package cpu

// cbOps is the 256-entry CB-prefixed table. Every entry operates on one of
// the 8 general operands (the same closed set as the main table); (HL)
// naturally costs extra cycles because getR8(6)/setR8(6) go through the bus.
var cbOps [256]opFunc

func init() {
	shiftOps := [8]func(*CPU, uint8) uint8{
		func(c *CPU, v uint8) uint8 { return c.rlc(v) },
		func(c *CPU, v uint8) uint8 { return c.rrc(v) },
		func(c *CPU, v uint8) uint8 { return c.rl(v) },
		func(c *CPU, v uint8) uint8 { return c.rr(v) },
		func(c *CPU, v uint8) uint8 { return c.sla(v) },
		func(c *CPU, v uint8) uint8 { return c.sra(v) },
		func(c *CPU, v uint8) uint8 { return c.swap(v) },
		func(c *CPU, v uint8) uint8 { return c.srl(v) },
	}

	for group := uint8(0); group < 8; group++ {
		for operand := uint8(0); operand < 8; operand++ {
			opcode := group*8 + operand
			g, o := group, operand
			cbOps[opcode] = func(c *CPU, _ uint8) {
				c.setR8(o, shiftOps[g](c, c.getR8(o)))
			}
		}
	}

	for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
		for operand := uint8(0); operand < 8; operand++ {
			opcode := 0x40 + bitIdx*8 + operand
			b, o := bitIdx, operand
			cbOps[opcode] = func(c *CPU, _ uint8) {
				c.bitTest(b, c.getR8(o))
			}
		}
	}

	for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
		for operand := uint8(0); operand < 8; operand++ {
			opcode := 0x80 + bitIdx*8 + operand
			b, o := bitIdx, operand
			cbOps[opcode] = func(c *CPU, _ uint8) {
				c.setR8(o, resetBit(b, c.getR8(o)))
			}
		}
	}

	for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
		for operand := uint8(0); operand < 8; operand++ {
			opcode := 0xC0 + bitIdx*8 + operand
			b, o := bitIdx, operand
			cbOps[opcode] = func(c *CPU, _ uint8) {
				c.setR8(o, setBit(b, c.getR8(o)))
			}
		}
	}
}
