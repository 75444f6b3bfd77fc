package video

import (
	"github.com/arlojames/dmgcore/dmg/addr"
	"github.com/arlojames/dmgcore/dmg/bit"
	"github.com/arlojames/dmgcore/dmg/memory"
)

// GpuMode represents the PPU's current rendering stage.
// These values match the STAT register bits 1-0.
type GpuMode int

const (
	hblankMode  GpuMode = 0
	vblankMode  GpuMode = 1
	oamReadMode GpuMode = 2
	drawingMode GpuMode = 3
)

const (
	oamScanDots  = 80
	dotsPerLine  = 456
	visibleLines = 144
	totalLines   = 154
)

// fetchState is the background/window fetcher's 4-step mini state machine.
// Each step takes two dots (2 T-cycles, as on real hardware): fetchStep runs
// every dot but alternates an "idle" dot with a "do work" dot that advances it.
type fetchState int

const (
	fetchTile fetchState = iota
	fetchDataLow
	fetchDataHigh
	fetchPush
)

// fetcher drives the background/window pixel FIFO, one pixel produced (or
// discarded for SCX) per dot once it has data queued.
type fetcher struct {
	state         fetchState
	doWork        bool
	fifo          []uint8 // queued background/window color indices, front = next pixel
	tileX         uint8   // which tile column of the current line we're fetching
	pixelX        int     // screen X of the next pixel to push
	discarded     uint8   // SCX%8 pixels discarded so far at the start of the line
	tileY         uint8
	tileID        uint8
	tileAddr      uint16
	lowByte       uint8
	highByte      uint8
	windowLine    uint8 // internal window line counter, advanced after each line at or below WY while the window is shown; reset each frame
	inWindow      bool  // whether the fetcher has already crossed into the window this line
	windowDiscard uint8 // remaining window pixels to discard when WX < 7
}

func (f *fetcher) reset() {
	f.fifo = f.fifo[:0]
	f.state = fetchTile
	f.doWork = false
	f.tileX = 0
	f.pixelX = 0
	f.discarded = 0
	f.inWindow = false
	f.windowDiscard = 0
}

// GPU is the pixel-FIFO PPU: a 4-mode scanline state machine driving a
// per-dot background/window fetcher, with sprites composited once a
// scanline's background colors are known.
type GPU struct {
	memory *memory.MMU

	framebuffer *FrameBuffer
	bgColorLine [FramebufferWidth]uint8 // raw 0-3 color index, for sprite BG-priority checks
	oam         *OAM

	mode  GpuMode
	line  int
	dot   int
	fetch fetcher

	statLine   bool // OR of all currently-asserted STAT interrupt sources, edge-detected
	wasEnabled bool // LCDC.7 last dot, to catch the disable edge
}

// rawBus adapts the MMU's device-side access to the OAMBus interface: the
// PPU's own fetches must not be filtered by the CPU-visibility gates it is
// itself the reason for.
type rawBus struct {
	m *memory.MMU
}

func (r rawBus) Read(address uint16) byte { return r.m.ReadRaw(address) }

func NewGpu(mem *memory.MMU) *GPU {
	g := &GPU{
		framebuffer: NewFrameBuffer(),
		memory:      mem,
		mode:        oamReadMode,
		wasEnabled:  true,
	}
	g.oam = NewOAM(rawBus{mem})
	g.setSTATMode()
	return g
}

func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// Tick advances the PPU by the given number of T-cycles, one dot at a time.
func (g *GPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		g.tickDot()
	}
}

func (g *GPU) tickDot() {
	if !g.lcdEnabled() {
		if g.wasEnabled {
			g.lcdOff()
		}
		return
	}
	g.wasEnabled = true

	g.dot++

	switch g.mode {
	case oamReadMode:
		if g.dot >= oamScanDots {
			g.mode = drawingMode
			g.fetch.reset()
			g.setSTATMode()
		}
	case drawingMode:
		g.fetchStep()
		if g.fetch.pixelX >= FramebufferWidth {
			g.compositeSprites()
			g.mode = hblankMode
			g.setSTATMode()
		}
	case hblankMode:
		if g.dot >= dotsPerLine {
			g.advanceLine()
		}
	case vblankMode:
		if g.dot >= dotsPerLine {
			g.advanceLine()
		}
	}

	// LY/LYC/LCDC are plain bus registers the CPU can write at any moment,
	// so the comparison is re-derived every dot rather than only on the
	// PPU's own LY updates.
	g.compareLYToLYC()
	g.updateSTATLine()
}

// lcdOff is the disable edge: the frame blanks immediately, the line/dot
// counters and fetcher reset, and the mode drops to 0 so VRAM and OAM are
// freely accessible until the LCD is switched back on.
func (g *GPU) lcdOff() {
	g.wasEnabled = false
	g.framebuffer.Blank()
	g.line = 0
	g.dot = 0
	g.fetch.reset()
	g.fetch.windowLine = 0
	g.mode = hblankMode
	g.setSTATMode()
	g.writeLY(0)
}

func (g *GPU) advanceLine() {
	g.dot = 0
	if g.isWindowVisible() && int(g.line) >= int(g.readReg(addr.WY)) {
		g.fetch.windowLine++
	}
	g.line++

	if g.line == visibleLines {
		g.mode = vblankMode
		g.memory.RequestInterrupt(addr.VBlankInterrupt)
		g.setSTATMode()
	} else if g.line >= totalLines {
		g.line = 0
		g.fetch.windowLine = 0
		g.mode = oamReadMode
		g.setSTATMode()
	} else if g.mode != vblankMode {
		g.mode = oamReadMode
		g.setSTATMode()
	}

	g.writeLY(uint8(g.line))
}

// fetchStep runs one dot of the background/window fetcher and, if a pixel is
// available, pushes (or discards, for SCX) it into the framebuffer.
func (g *GPU) fetchStep() {
	// The window can trigger mid-scanline, the instant pixel_x+7 >= WX while
	// LCDC.wnd_enabled and LY >= WY. On that exact dot the BG FIFO is
	// discarded and the fetcher restarts against the window tilemap.
	if !g.fetch.inWindow && g.windowTriggersNow() {
		g.fetch.inWindow = true
		g.fetch.fifo = g.fetch.fifo[:0]
		g.fetch.state = fetchTile
		g.fetch.doWork = false
		g.fetch.tileX = 0
		if wx := int(g.readReg(addr.WX)); wx < 7 {
			g.fetch.windowDiscard = uint8(7 - wx)
		}
	}

	if g.fetch.doWork {
		switch g.fetch.state {
		case fetchTile:
			g.fetchTileID()
			g.fetch.state = fetchDataLow
		case fetchDataLow:
			tileBase := g.tilesetAddr(g.fetch.tileID)
			g.fetch.tileAddr = tileBase + 2*uint16(g.fetch.tileY%8)
			g.fetch.lowByte = g.memory.ReadRaw(g.fetch.tileAddr)
			g.fetch.state = fetchDataHigh
		case fetchDataHigh:
			g.fetch.highByte = g.memory.ReadRaw(g.fetch.tileAddr + 1)
			for b := 7; b >= 0; b-- {
				lo := (g.fetch.lowByte >> uint(b)) & 1
				hi := (g.fetch.highByte >> uint(b)) & 1
				g.fetch.fifo = append(g.fetch.fifo, hi<<1|lo)
			}
			g.fetch.state = fetchPush
		case fetchPush:
			g.fetch.state = fetchTile
		}
	}
	g.fetch.doWork = !g.fetch.doWork
	g.pushPixel()
}

func (g *GPU) fetchTileID() {
	var tileMap uint16
	var x, y uint8

	if g.insideWindow() {
		tileMap = g.windowTileMap()
		wx := g.readReg(addr.WX)
		x = uint8((int(g.fetch.tileX)*8 + 7 - int(wx)) / 8)
		y = g.fetch.windowLine
	} else {
		tileMap = g.bgTileMap()
		scy := g.readReg(addr.SCY)
		scx := g.readReg(addr.SCX)
		y = uint8(g.line) + scy
		x = (g.fetch.tileX + scx/8) & 31
	}

	g.fetch.tileX++
	mapAddr := tileMap + 32*uint16(y/8) + uint16(x)

	g.fetch.tileY = y
	g.fetch.tileID = g.memory.ReadRaw(mapAddr)
}

func (g *GPU) pushPixel() {
	if len(g.fetch.fifo) == 0 {
		return
	}
	pixel := g.fetch.fifo[0]
	g.fetch.fifo = g.fetch.fifo[1:]

	if g.fetch.inWindow {
		if g.fetch.windowDiscard > 0 {
			g.fetch.windowDiscard--
			return
		}
	} else {
		scx := g.readReg(addr.SCX)
		if g.fetch.discarded < scx%8 {
			g.fetch.discarded++
			return
		}
	}

	color := g.applyPalette(addr.BGP, pixel)
	if !g.bgWindowEnabled() {
		color = g.applyPalette(addr.BGP, 0)
		pixel = 0
	}

	g.framebuffer.SetPixel(g.fetch.pixelX, g.line, color)
	g.bgColorLine[g.fetch.pixelX] = pixel
	g.fetch.pixelX++
}

// insideWindow reports whether the fetcher has already latched into window
// mode for the rest of this scanline (see windowTriggersNow for the trigger
// edge itself).
func (g *GPU) insideWindow() bool {
	return g.fetch.inWindow
}

// windowTriggersNow reports whether this exact dot is the first one where
// the window is enabled, LY has reached WY, and pixel_x + 7 has reached WX.
func (g *GPU) windowTriggersNow() bool {
	if !g.windowEnabled() {
		return false
	}
	if int(g.line) < int(g.readReg(addr.WY)) {
		return false
	}
	wx := int(g.readReg(addr.WX))
	return g.fetch.pixelX+7 >= wx
}

func (g *GPU) isWindowVisible() bool {
	if !g.windowEnabled() {
		return false
	}
	wx := g.readReg(addr.WX)
	wy := g.readReg(addr.WY)
	return wx <= 166 && wy <= 143
}

// compositeSprites overlays this scanline's sprites onto the already-drawn
// background/window row, respecting OAM priority and BG-over-OBJ priority.
func (g *GPU) compositeSprites() {
	if !g.spritesEnabled() {
		return
	}

	sprites := g.oam.GetSpritesForScanline(g.line)

	for i := range sprites {
		s := &sprites[i]
		if !s.HasPriorityForAnyPixel() {
			continue
		}

		spriteMask := 0xFF
		if s.Height == 16 {
			spriteMask = 0xFE
		}

		pixelY := g.line - s.Y
		if s.FlipY {
			pixelY = s.Height - 1 - pixelY
		}

		var rowOffset int
		if s.Height == 16 && pixelY >= 8 {
			rowOffset = 16
			pixelY -= 8
		}
		tileAddr := addr.TileData0 + uint16((int(s.TileIndex)&spriteMask)*16+pixelY*2+rowOffset)
		low := g.memory.ReadRaw(tileAddr)
		high := g.memory.ReadRaw(tileAddr + 1)

		paletteAddr := addr.OBP0
		if s.PaletteOBP1 {
			paletteAddr = addr.OBP1
		}

		for px := 0; px < 8; px++ {
			bufferX := s.X + px
			if bufferX < 0 || bufferX >= FramebufferWidth {
				continue
			}
			if !s.HasPriorityForPixel(px) {
				continue
			}

			bit7 := px
			if s.FlipX {
				bit7 = 7 - px
			}
			idx := uint8(7 - bit7)
			pixel := 0
			if bit.IsSet(idx, low) {
				pixel |= 1
			}
			if bit.IsSet(idx, high) {
				pixel |= 2
			}
			if pixel == 0 {
				continue
			}

			if s.BehindBG && g.bgColorLine[bufferX] != 0 {
				continue
			}

			g.framebuffer.SetPixel(bufferX, g.line, g.applyPalette(paletteAddr, uint8(pixel)))
		}
	}
}

func (g *GPU) applyPalette(paletteAddr uint16, colorIndex uint8) GBColor {
	palette := g.readReg(paletteAddr)
	shade := (palette >> (colorIndex * 2)) & 0x03
	return ByteToColor(shade)
}

func (g *GPU) tilesetAddr(tileID uint8) uint16 {
	if g.bgWindowTileDataSelect() {
		return addr.TileData0 + uint16(tileID)*16
	}
	signed := int8(tileID)
	return uint16(int(addr.TileData2) + int(signed)*16)
}

func (g *GPU) bgTileMap() uint16 {
	if g.readLCDC(bgTileMapDisplaySelect) {
		return addr.TileMap1
	}
	return addr.TileMap0
}

func (g *GPU) windowTileMap() uint16 {
	if g.readLCDC(windowTileMapSelect) {
		return addr.TileMap1
	}
	return addr.TileMap0
}

func (g *GPU) readReg(a uint16) uint8       { return g.memory.ReadRaw(a) }
func (g *GPU) lcdEnabled() bool             { return g.readLCDC(lcdDisplayEnable) }
func (g *GPU) bgWindowEnabled() bool        { return g.readLCDC(bgDisplay) }
func (g *GPU) windowEnabled() bool          { return g.readLCDC(windowDisplayEnable) }
func (g *GPU) spritesEnabled() bool         { return g.readLCDC(spriteDisplayEnable) }
func (g *GPU) bgWindowTileDataSelect() bool { return g.readLCDC(bgWindowTileDataSelect) }

func (g *GPU) writeLY(line uint8) {
	g.memory.WriteRaw(addr.LY, line)
	g.compareLYToLYC()
}

func (g *GPU) compareLYToLYC() {
	ly := g.memory.ReadRaw(addr.LY)
	lyc := g.memory.ReadRaw(addr.LYC)
	stat := g.memory.ReadRaw(addr.STAT)
	if ly == lyc {
		stat = bit.Set(statLycCondition, stat)
	} else {
		stat = bit.Reset(statLycCondition, stat)
	}
	g.memory.WriteRaw(addr.STAT, stat)
}

func (g *GPU) setSTATMode() {
	stat := g.memory.ReadRaw(addr.STAT)
	stat = stat&0xFC | byte(g.mode)
	g.memory.WriteRaw(addr.STAT, stat)
}

// updateSTATLine re-derives the OR of all currently enabled STAT interrupt
// sources and fires the LCD STAT interrupt only on its rising edge ("STAT
// blocking"): real hardware re-triggers on every 0->1 transition of this
// combined line, not on each individual source separately.
func (g *GPU) updateSTATLine() {
	stat := g.memory.ReadRaw(addr.STAT)
	line := false
	if bit.IsSet(statLycIrq, stat) && bit.IsSet(statLycCondition, stat) {
		line = true
	}
	switch g.mode {
	case hblankMode:
		line = line || bit.IsSet(statHblankIrq, stat)
	case vblankMode:
		line = line || bit.IsSet(statVblankIrq, stat)
	case oamReadMode:
		line = line || bit.IsSet(statOamIrq, stat)
	}

	if line && !g.statLine {
		g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
	}
	g.statLine = line
}

// LCD Stat (Status) Register bit values
// Bit 7 - unused
// Bit 6 - Interrupt based on LYC to LY comparison (based on bit 2)
// Bit 5 - Interrupt when Mode 10 (oamReadMode)
// Bit 4 - Interrupt when Mode 01 (vblankMode)
// Bit 3 - Interrupt when Mode 00 (hblankMode)
// Bit 2 - condition for triggering LYC/LY (0=LYC != LY, 1=LYC == LY)
// Bit 1,0 - represents the current GPU mode
const (
	statLycIrq       uint8 = 6
	statOamIrq       uint8 = 5
	statVblankIrq    uint8 = 4
	statHblankIrq    uint8 = 3
	statLycCondition uint8 = 2
)

// LCDC (LCD Control) Register bit values
const (
	lcdDisplayEnable       uint8 = 7
	windowTileMapSelect    uint8 = 6
	windowDisplayEnable    uint8 = 5
	bgWindowTileDataSelect uint8 = 4
	bgTileMapDisplaySelect uint8 = 3
	spriteSizeBit          uint8 = 2
	spriteDisplayEnable    uint8 = 1
	bgDisplay              uint8 = 0
)

func (g *GPU) readLCDC(flag uint8) bool {
	return bit.IsSet(flag, g.memory.ReadRaw(addr.LCDC))
}
