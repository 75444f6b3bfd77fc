package cpu

import "log/slog"

// opFunc is one entry of the 256-slot unprefixed opcode table. It receives
// the opcode byte itself (only the irregular/shared entries need it) and is
// responsible for consuming exactly the right bus accesses / idle cycles;
// Step() derives the total T-cycle count from those as they happen.
type opFunc func(c *CPU, opcode uint8)

var mainOps [256]opFunc

func (c *CPU) execute(opcode uint8) {
	if opcode == 0xCB {
		cb := c.fetch()
		cbOps[cb](c, cb)
		return
	}
	mainOps[opcode](c, opcode)
}

func illegalOpcode(c *CPU, opcode uint8) {
	slog.Warn("illegal opcode executed, treating as NOP", "opcode", opcode, "pc", c.r.pc-1)
}

func init() {
	for i := range mainOps {
		mainOps[i] = illegalOpcode
	}

	// 0x40-0x7F: LD r,r' (64 opcodes), 0x76 is HALT not LD (HL),(HL).
	for dst := uint8(0); dst < 8; dst++ {
		for src := uint8(0); src < 8; src++ {
			opcode := 0x40 + dst*8 + src
			if opcode == 0x76 {
				continue
			}
			d, s := dst, src
			mainOps[opcode] = func(c *CPU, _ uint8) {
				c.setR8(d, c.getR8(s))
			}
		}
	}
	mainOps[0x76] = func(c *CPU, _ uint8) {
		if !c.r.ime && c.bus.PendingInterrupts() != 0 {
			c.r.haltBugLatch = true
		} else {
			c.r.halted = true
		}
	}

	// 0x80-0xBF: ALU A,r'
	aluOps := [8]func(*CPU, uint8){
		func(c *CPU, v uint8) { c.addToA(v, false) },
		func(c *CPU, v uint8) { c.addToA(v, true) },
		func(c *CPU, v uint8) { c.subFromA(v, false, true) },
		func(c *CPU, v uint8) { c.subFromA(v, true, true) },
		func(c *CPU, v uint8) { c.and(v) },
		func(c *CPU, v uint8) { c.xor(v) },
		func(c *CPU, v uint8) { c.or(v) },
		func(c *CPU, v uint8) { c.subFromA(v, false, false) },
	}
	for group := uint8(0); group < 8; group++ {
		for operand := uint8(0); operand < 8; operand++ {
			opcode := 0x80 + group*8 + operand
			g, o := group, operand
			mainOps[opcode] = func(c *CPU, _ uint8) {
				aluOps[g](c, c.getR8(o))
			}
		}
	}
	// 0xC6/0xCE/0xD6/0xDE/0xE6/0xEE/0xF6/0xFE: ALU A,n (immediate form)
	for group := uint8(0); group < 8; group++ {
		opcode := 0xC6 + group*8
		g := group
		mainOps[opcode] = func(c *CPU, _ uint8) {
			aluOps[g](c, c.fetch())
		}
	}

	// INC r8 / DEC r8 / LD r8,n: opcode 0b00xxx1yy pattern, x = operand (0..7), yy selects op
	for x := uint8(0); x < 8; x++ {
		r := x
		mainOps[0x04+x*8] = func(c *CPU, _ uint8) { c.setR8(r, c.inc8(c.getR8(r))) }
		mainOps[0x05+x*8] = func(c *CPU, _ uint8) { c.setR8(r, c.dec8(c.getR8(r))) }
		mainOps[0x06+x*8] = func(c *CPU, _ uint8) { c.setR8(r, c.fetch()) }
	}

	// 16-bit group: LD rr,nn / INC rr / DEC rr / ADD HL,rr, for rr in BC,DE,HL,SP
	for x := uint8(0); x < 4; x++ {
		base := x * 0x10
		rr := x
		mainOps[0x01+base] = func(c *CPU, _ uint8) { c.setR16(rr, c.fetchWord()) }
		mainOps[0x03+base] = func(c *CPU, _ uint8) { c.setR16(rr, c.getR16(rr)+1); c.idle(4) }
		mainOps[0x0B+base] = func(c *CPU, _ uint8) { c.setR16(rr, c.getR16(rr)-1); c.idle(4) }
		mainOps[0x09+base] = func(c *CPU, _ uint8) { c.addToHL(c.getR16(rr)); c.idle(4) }
	}

	// PUSH/POP rr, for rr in BC,DE,HL,AF
	for x := uint8(0); x < 4; x++ {
		base := x * 0x10
		rr := x
		mainOps[0xC1+base] = func(c *CPU, _ uint8) { c.setR16Stack(rr, c.popStack()) }
		mainOps[0xC5+base] = func(c *CPU, _ uint8) { c.idle(4); c.pushStack(c.getR16Stack(rr)) }
	}

	// conditional branches: JR cc,e / JP cc,nn / CALL cc,nn / RET cc
	for x := uint8(0); x < 4; x++ {
		cc := x
		mainOps[0x20+x*8] = func(c *CPU, _ uint8) {
			e := c.fetchSigned()
			if c.condition(cc) {
				c.r.pc = uint16(int32(c.r.pc) + int32(e))
				c.idle(4)
			}
		}
		mainOps[0xC2+x*8] = func(c *CPU, _ uint8) {
			target := c.fetchWord()
			if c.condition(cc) {
				c.r.pc = target
				c.idle(4)
			}
		}
		mainOps[0xC4+x*8] = func(c *CPU, _ uint8) {
			target := c.fetchWord()
			if c.condition(cc) {
				c.idle(4)
				c.pushStack(c.r.pc)
				c.r.pc = target
			}
		}
		mainOps[0xC0+x*8] = func(c *CPU, _ uint8) {
			c.idle(4)
			if c.condition(cc) {
				c.r.pc = c.popStack()
				c.idle(4)
			}
		}
	}

	// RST vectors
	for x := uint8(0); x < 8; x++ {
		vector := uint16(x) * 8
		mainOps[0xC7+x*8] = func(c *CPU, _ uint8) {
			c.idle(4)
			c.pushStack(c.r.pc)
			c.r.pc = vector
		}
	}

	mainOps[0x00] = func(c *CPU, _ uint8) {}
	mainOps[0x10] = func(c *CPU, _ uint8) {
		c.fetch() // STOP is a 2-byte opcode; second byte is conventionally 0x00
		c.writeByte(0xFF04, 0)
	}

	mainOps[0x07] = func(c *CPU, _ uint8) { c.r.a = c.rlc(c.r.a); c.r.setFlag(flagZ, false) }
	mainOps[0x0F] = func(c *CPU, _ uint8) { c.r.a = c.rrc(c.r.a); c.r.setFlag(flagZ, false) }
	mainOps[0x17] = func(c *CPU, _ uint8) { c.r.a = c.rl(c.r.a); c.r.setFlag(flagZ, false) }
	mainOps[0x1F] = func(c *CPU, _ uint8) { c.r.a = c.rr(c.r.a); c.r.setFlag(flagZ, false) }

	mainOps[0x18] = func(c *CPU, _ uint8) {
		e := c.fetchSigned()
		c.r.pc = uint16(int32(c.r.pc) + int32(e))
		c.idle(4)
	}

	mainOps[0x27] = func(c *CPU, _ uint8) { c.daa() }
	mainOps[0x2F] = func(c *CPU, _ uint8) {
		c.r.a = ^c.r.a
		c.r.setFlag(flagN, true)
		c.r.setFlag(flagH, true)
	}
	mainOps[0x37] = func(c *CPU, _ uint8) {
		c.r.setFlag(flagN, false)
		c.r.setFlag(flagH, false)
		c.r.setFlag(flagC, true)
	}
	mainOps[0x3F] = func(c *CPU, _ uint8) {
		c.r.setFlag(flagN, false)
		c.r.setFlag(flagH, false)
		c.r.setFlag(flagC, !c.r.flag(flagC))
	}

	mainOps[0x08] = func(c *CPU, _ uint8) {
		addr := c.fetchWord()
		c.writeByte(addr, uint8(c.r.sp))
		c.writeByte(addr+1, uint8(c.r.sp>>8))
	}

	mainOps[0xC3] = func(c *CPU, _ uint8) { c.r.pc = c.fetchWord(); c.idle(4) }
	mainOps[0xE9] = func(c *CPU, _ uint8) { c.r.pc = c.r.hl() }
	mainOps[0xC9] = func(c *CPU, _ uint8) { c.r.pc = c.popStack(); c.idle(4) }
	mainOps[0xD9] = func(c *CPU, _ uint8) {
		c.r.pc = c.popStack()
		c.r.ime = true
		c.idle(4)
	}
	mainOps[0xCD] = func(c *CPU, _ uint8) {
		target := c.fetchWord()
		c.idle(4)
		c.pushStack(c.r.pc)
		c.r.pc = target
	}

	mainOps[0xE0] = func(c *CPU, _ uint8) {
		offset := c.fetch()
		c.writeByte(0xFF00+uint16(offset), c.r.a)
	}
	mainOps[0xF0] = func(c *CPU, _ uint8) {
		offset := c.fetch()
		c.r.a = c.readByte(0xFF00 + uint16(offset))
	}
	mainOps[0xE2] = func(c *CPU, _ uint8) { c.writeByte(0xFF00+uint16(c.r.c), c.r.a) }
	mainOps[0xF2] = func(c *CPU, _ uint8) { c.r.a = c.readByte(0xFF00 + uint16(c.r.c)) }
	mainOps[0xEA] = func(c *CPU, _ uint8) { c.writeByte(c.fetchWord(), c.r.a) }
	mainOps[0xFA] = func(c *CPU, _ uint8) { c.r.a = c.readByte(c.fetchWord()) }

	mainOps[0xE8] = func(c *CPU, _ uint8) {
		e := c.fetchSigned()
		c.r.sp = c.addSPSigned(e)
		c.idle(8)
	}
	mainOps[0xF8] = func(c *CPU, _ uint8) {
		e := c.fetchSigned()
		c.r.setHL(c.addSPSigned(e))
		c.idle(4)
	}
	mainOps[0xF9] = func(c *CPU, _ uint8) { c.r.sp = c.r.hl(); c.idle(4) }

	mainOps[0xF3] = func(c *CPU, _ uint8) { c.r.ime = false; c.r.imePending = false }
	mainOps[0xFB] = func(c *CPU, _ uint8) { c.r.imePending = true }

	mainOps[0x02] = func(c *CPU, _ uint8) { c.writeByte(c.r.bc(), c.r.a) }
	mainOps[0x12] = func(c *CPU, _ uint8) { c.writeByte(c.r.de(), c.r.a) }
	mainOps[0x22] = func(c *CPU, _ uint8) { hl := c.r.hl(); c.writeByte(hl, c.r.a); c.r.setHL(hl + 1) }
	mainOps[0x32] = func(c *CPU, _ uint8) { hl := c.r.hl(); c.writeByte(hl, c.r.a); c.r.setHL(hl - 1) }

	mainOps[0x0A] = func(c *CPU, _ uint8) { c.r.a = c.readByte(c.r.bc()) }
	mainOps[0x1A] = func(c *CPU, _ uint8) { c.r.a = c.readByte(c.r.de()) }
	mainOps[0x2A] = func(c *CPU, _ uint8) { hl := c.r.hl(); c.r.a = c.readByte(hl); c.r.setHL(hl + 1) }
	mainOps[0x3A] = func(c *CPU, _ uint8) { hl := c.r.hl(); c.r.a = c.readByte(hl); c.r.setHL(hl - 1) }
}
