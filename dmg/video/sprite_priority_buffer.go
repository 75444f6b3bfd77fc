package video

// SpritePriorityBuffer manages sprite-to-pixel ownership for priority in
// DMG (non-color) rendering, see https://gbdev.io/pandocs/OAM.html#drawing-priority.
//
// In this mode, the PPU enforces strict priority rules:
//   - sprites with lower X coordinates have priority
//   - when X coordinates match, lower OAM indices win.
//
// Example 1: overlap with different X coordinates
//
//	Pixels:     0  1  2  3  4  5  6  7  8  9 10 11 12 13 14 15 16 17
//	Sprite 0:                  [-----A-----]                    (X=5, OAM=0)
//	Sprite 1:                           [-----B-----]           (X=10, OAM=1)
//	Result:                    [-----A-----]--B-----]
//
// Sprite 0 wins all its pixels because it has lower X coordinate.
//
// Example 2: overlap with same X coordinates
//
//	Pixels:    10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25
//	Sprite 1:           [-----D-----]                          (X=12, OAM=1)
//	Sprite 3:           [-----C-----]                          (X=12, OAM=3)
//	Sprite 5:  [-----E-----]                                   (X=10, OAM=5)
//	Result:    [-----E-----]--D-----]
//
// - Pixels 10-17: Sprite 5 wins (lowest X=10, beats both Sprites 1 and 3)
// - Pixels 18-19: Sprite 1 wins (same X=12, lower OAM than Sprite 3)
//
// How the priority buffer works:
//
// Instead of sorting sprites by priority, we use a per-pixel ownership model:
//
// 1. Initialize: Clear buffer, marking all pixels as unowned (-1)
// 2. Selection phase: For each sprite (in OAM order):
//
//		For each pixel the sprite covers (8 pixels wide):
//		  	Check current owner of that pixel
//	  		If unowned OR this sprite has higher priority:
//	  			Claim the pixel (store sprite index and X coordinate)
//
// 3. Render phase:
//
//		For each sprite:
//	 		Only draw pixels that this sprite owns
//	  		Skip transparent pixels and background priority checks
//
// A simpler solution would be to collect sprites by looking at their Y coord
// in a first loop (0 to 40, selection priority), then, before drawing, sorting
// them by (X, OAM index) and drawing in that order. This buffer instead avoids
// sorts by precomputing ownership during the selection phase.
const noOwner = -1

type SpritePriorityBuffer struct {
	// ownerIndex is the OAM index of the sprite currently winning each
	// pixel; noOwner means nothing has claimed it yet this scanline.
	ownerIndex [FramebufferWidth]int

	// ownerX is the X coordinate the current owner claimed with, kept
	// alongside ownerIndex since priority comparisons need both.
	ownerX [FramebufferWidth]int
}

// Clear resets the buffer for a new scanline.
func (s *SpritePriorityBuffer) Clear() {
	for i := range s.ownerIndex {
		s.ownerIndex[i] = noOwner
		s.ownerX[i] = 0xFF // any real sprite X (0-159) beats this
	}
}

// outranks reports whether a candidate sprite at (oamIndex, spriteX) beats
// whatever currently owns a pixel: strictly lower X wins outright, and a
// tie goes to the lower OAM index (the order sprites are scanned in).
func outranks(oamIndex, spriteX, currentOwner, currentX int) bool {
	if currentOwner == noOwner {
		return true
	}
	if spriteX != currentX {
		return spriteX < currentX
	}
	return oamIndex < currentOwner
}

// TryClaimPixel attempts to claim ownership of a pixel for a sprite,
// returning true if it won. Lower X wins; ties go to the lower OAM index.
func (s *SpritePriorityBuffer) TryClaimPixel(pixelX, oamIndex, spriteX int) bool {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return false
	}
	if !outranks(oamIndex, spriteX, s.ownerIndex[pixelX], s.ownerX[pixelX]) {
		return false
	}
	s.ownerIndex[pixelX] = oamIndex
	s.ownerX[pixelX] = spriteX
	return true
}

// GetOwner returns the OAM index of the sprite owning a pixel, or -1 if none.
func (s *SpritePriorityBuffer) GetOwner(pixelX int) int {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return noOwner
	}
	return s.ownerIndex[pixelX]
}