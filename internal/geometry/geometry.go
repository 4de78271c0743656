// Package geometry models the physical keyboard: key hitboxes, calibrated
// sweet spots, and the proximity grid the spatial engine queries.
//
// The package is the engine's geometry oracle. All lookups are pure reads
// over an immutable Keyboard; a layout is parsed once (JSON or YAML,
// schema-validated) and shared freely across strokes.
package geometry

import (
	"math"
	"sort"
)

// Sentinel values shared with the engine.
const (
	// NotAnIndex marks a missing key index.
	NotAnIndex = -1
	// NotACoordinate marks a missing touch coordinate.
	NotACoordinate = -1
	// NotACode marks a missing code point.
	NotACode rune = -1
)

// MaxProximityCharsSize caps the per-position proximity code-point list,
// including the primary code point and the additional-proximity section.
const MaxProximityCharsSize = 16

// AdditionalProximityDelimiter separates grid-derived proximity code points
// from the weaker additional-proximity tier. The value is a control code
// point no layout may assign to a key.
const AdditionalProximityDelimiter rune = 2

// Oracle is the read-only geometry surface the spatial engine consumes.
// Keyboard is the canonical implementation; tests substitute fixtures.
type Oracle interface {
	KeyCount() int
	KeyboardWidth() int
	KeyboardHeight() int
	MostCommonKeyWidth() int
	CellWidth() int
	CellHeight() int
	GridWidth() int
	GridHeight() int

	// KeyIndexOf returns the key index for a code point, or NotAnIndex.
	KeyIndexOf(codePoint rune) int
	// CodePointOf returns the code point of a key, or NotACode.
	CodePointOf(keyIndex int) rune
	// KeyCenter returns the visual center of a key's hitbox.
	KeyCenter(keyIndex int) (x, y int)

	// NormalizedSquaredDistanceFromCenter returns the squared distance from
	// (x, y) to the key center, divided by the squared most common key
	// width. A value of 1.0 is one key width from the center.
	NormalizedSquaredDistanceFromCenter(keyIndex, x, y int) float64

	// HasTouchPositionCorrectionData reports whether any key carries
	// calibrated sweet-spot data.
	HasTouchPositionCorrectionData() bool
	HasSweetSpotData(keyIndex int) bool
	SweetSpotCenter(keyIndex int) (x, y float64)
	SweetSpotRadius(keyIndex int) float64

	// HasSpaceProximity reports whether (x, y) falls within proximity range
	// of the space key.
	HasSpaceProximity(x, y int) bool

	// ProximityCodePoints returns the ordered proximity list for a tap at
	// (x, y) on the key for codePoint: the primary code point first, then
	// nearby keys by increasing distance, then (after the delimiter) any
	// additional-proximity entries configured for the primary.
	ProximityCodePoints(codePoint rune, x, y int) []rune
}

// Key is one key of a layout: its code point and hitbox.
type Key struct {
	Code   rune
	X      int // hitbox left
	Y      int // hitbox top
	Width  int
	Height int

	// Sweet-spot calibration, valid only when HasSweetSpot is true.
	HasSweetSpot    bool
	SweetSpotX      float64
	SweetSpotY      float64
	SweetSpotRadius float64
}

// CenterX returns the x coordinate of the key's hitbox center.
func (k *Key) CenterX() int { return k.X + k.Width/2 }

// CenterY returns the y coordinate of the key's hitbox center.
func (k *Key) CenterY() int { return k.Y + k.Height/2 }

// Keyboard is an immutable keyboard geometry with a precomputed proximity
// grid. Build one with Load, LoadYAML, or New.
type Keyboard struct {
	name   string
	width  int
	height int

	gridWidth  int // columns
	gridHeight int // rows
	cellWidth  int
	cellHeight int

	keys       []Key
	codeToKey  map[rune]int
	hasSweet   bool
	spaceIndex int

	mostCommonKeyWidth int

	// gridNeighbors[cell] lists key indexes within proximity range of the
	// cell, nearest first relative to the cell center.
	gridNeighbors [][]int

	// additionalProximity maps a code point to weaker-tier proximity code
	// points (accented variants, layout-specific confusions).
	additionalProximity map[rune][]rune
}

// New builds a Keyboard from explicit dimensions and keys. The grid
// dimensions control proximity lookup granularity; 32x16 suits phone-sized
// layouts.
func New(name string, width, height, gridWidth, gridHeight int, keys []Key, additional map[rune][]rune) *Keyboard {
	kb := &Keyboard{
		name:                name,
		width:               width,
		height:              height,
		gridWidth:           gridWidth,
		gridHeight:          gridHeight,
		cellWidth:           (width + gridWidth - 1) / gridWidth,
		cellHeight:          (height + gridHeight - 1) / gridHeight,
		keys:                keys,
		codeToKey:           make(map[rune]int, len(keys)),
		spaceIndex:          NotAnIndex,
		additionalProximity: additional,
	}
	for i := range keys {
		k := &kb.keys[i]
		if _, dup := kb.codeToKey[k.Code]; !dup {
			kb.codeToKey[k.Code] = i
		}
		if k.HasSweetSpot {
			kb.hasSweet = true
		}
		if k.Code == ' ' {
			kb.spaceIndex = i
		}
	}
	kb.mostCommonKeyWidth = mostCommonWidth(keys)
	kb.buildGrid()
	return kb
}

// Name returns the layout name.
func (kb *Keyboard) Name() string { return kb.name }

func (kb *Keyboard) KeyCount() int           { return len(kb.keys) }
func (kb *Keyboard) KeyboardWidth() int      { return kb.width }
func (kb *Keyboard) KeyboardHeight() int     { return kb.height }
func (kb *Keyboard) MostCommonKeyWidth() int { return kb.mostCommonKeyWidth }
func (kb *Keyboard) CellWidth() int          { return kb.cellWidth }
func (kb *Keyboard) CellHeight() int         { return kb.cellHeight }
func (kb *Keyboard) GridWidth() int          { return kb.gridWidth }
func (kb *Keyboard) GridHeight() int         { return kb.gridHeight }

// Key returns the key at the given index. The index must be in range.
func (kb *Keyboard) Key(keyIndex int) *Key { return &kb.keys[keyIndex] }

func (kb *Keyboard) KeyIndexOf(codePoint rune) int {
	if i, ok := kb.codeToKey[codePoint]; ok {
		return i
	}
	return NotAnIndex
}

func (kb *Keyboard) CodePointOf(keyIndex int) rune {
	if keyIndex < 0 || keyIndex >= len(kb.keys) {
		return NotACode
	}
	return kb.keys[keyIndex].Code
}

func (kb *Keyboard) KeyCenter(keyIndex int) (int, int) {
	k := &kb.keys[keyIndex]
	return k.CenterX(), k.CenterY()
}

func (kb *Keyboard) NormalizedSquaredDistanceFromCenter(keyIndex, x, y int) float64 {
	k := &kb.keys[keyIndex]
	dx := float64(x - k.CenterX())
	dy := float64(y - k.CenterY())
	w := float64(kb.mostCommonKeyWidth)
	return (dx*dx + dy*dy) / (w * w)
}

func (kb *Keyboard) HasTouchPositionCorrectionData() bool { return kb.hasSweet }

func (kb *Keyboard) HasSweetSpotData(keyIndex int) bool {
	if keyIndex < 0 || keyIndex >= len(kb.keys) {
		return false
	}
	return kb.keys[keyIndex].HasSweetSpot
}

func (kb *Keyboard) SweetSpotCenter(keyIndex int) (float64, float64) {
	k := &kb.keys[keyIndex]
	return k.SweetSpotX, k.SweetSpotY
}

func (kb *Keyboard) SweetSpotRadius(keyIndex int) float64 {
	return kb.keys[keyIndex].SweetSpotRadius
}

// HasSpaceProximity reports whether the space key is among the proximity
// neighbors of the grid cell containing (x, y).
func (kb *Keyboard) HasSpaceProximity(x, y int) bool {
	if kb.spaceIndex == NotAnIndex {
		return false
	}
	cell := kb.cellAt(x, y)
	if cell < 0 {
		return false
	}
	for _, ki := range kb.gridNeighbors[cell] {
		if ki == kb.spaceIndex {
			return true
		}
	}
	return false
}

// ProximityCodePoints builds the ordered proximity list for one tap.
// The result never exceeds MaxProximityCharsSize entries.
func (kb *Keyboard) ProximityCodePoints(codePoint rune, x, y int) []rune {
	list := make([]rune, 0, MaxProximityCharsSize)
	list = append(list, codePoint)

	var neighbors []int
	if x != NotACoordinate && y != NotACoordinate {
		if cell := kb.cellAt(x, y); cell >= 0 {
			neighbors = kb.sortedByDistance(kb.gridNeighbors[cell], x, y)
		}
	} else if ki := kb.KeyIndexOf(codePoint); ki != NotAnIndex {
		// No coordinates: fall back to the cell under the key's own center.
		cx, cy := kb.KeyCenter(ki)
		if cell := kb.cellAt(cx, cy); cell >= 0 {
			neighbors = kb.sortedByDistance(kb.gridNeighbors[cell], cx, cy)
		}
	}
	for _, ki := range neighbors {
		c := kb.keys[ki].Code
		if c == codePoint {
			continue
		}
		if len(list) >= MaxProximityCharsSize {
			break
		}
		list = append(list, c)
	}

	if extra := kb.additionalProximity[codePoint]; len(extra) > 0 &&
		len(list)+1 < MaxProximityCharsSize {
		list = append(list, AdditionalProximityDelimiter)
		for _, c := range extra {
			if len(list) >= MaxProximityCharsSize {
				break
			}
			list = append(list, c)
		}
	}
	return list
}

// cellAt returns the grid cell index for (x, y), or -1 when off-keyboard.
func (kb *Keyboard) cellAt(x, y int) int {
	if x < 0 || y < 0 || x >= kb.width || y >= kb.height {
		return -1
	}
	col := x / kb.cellWidth
	row := y / kb.cellHeight
	if col >= kb.gridWidth {
		col = kb.gridWidth - 1
	}
	if row >= kb.gridHeight {
		row = kb.gridHeight - 1
	}
	return row*kb.gridWidth + col
}

// buildGrid indexes, per cell, every key whose center lies within the
// proximity search radius of the cell center. The radius tracks the most
// common key width so denser layouts get tighter neighborhoods.
func (kb *Keyboard) buildGrid() {
	cells := kb.gridWidth * kb.gridHeight
	kb.gridNeighbors = make([][]int, cells)
	radius := 1.2 * float64(kb.mostCommonKeyWidth)
	halfCellDiag := 0.5 * math.Hypot(float64(kb.cellWidth), float64(kb.cellHeight))
	reach := radius + halfCellDiag
	for cell := 0; cell < cells; cell++ {
		cx := float64((cell%kb.gridWidth)*kb.cellWidth + kb.cellWidth/2)
		cy := float64((cell/kb.gridWidth)*kb.cellHeight + kb.cellHeight/2)
		for ki := range kb.keys {
			k := &kb.keys[ki]
			dx := cx - float64(k.CenterX())
			dy := cy - float64(k.CenterY())
			if math.Hypot(dx, dy) <= reach {
				kb.gridNeighbors[cell] = append(kb.gridNeighbors[cell], ki)
			}
		}
	}
}

// sortedByDistance orders key indexes by squared distance from (x, y).
func (kb *Keyboard) sortedByDistance(keyIndexes []int, x, y int) []int {
	out := make([]int, len(keyIndexes))
	copy(out, keyIndexes)
	sort.SliceStable(out, func(i, j int) bool {
		return kb.squaredDistanceTo(out[i], x, y) < kb.squaredDistanceTo(out[j], x, y)
	})
	return out
}

func (kb *Keyboard) squaredDistanceTo(keyIndex, x, y int) int {
	k := &kb.keys[keyIndex]
	dx := x - k.CenterX()
	dy := y - k.CenterY()
	return dx*dx + dy*dy
}

// mostCommonWidth returns the modal key width, falling back to 1 for an
// empty layout so normalization never divides by zero.
func mostCommonWidth(keys []Key) int {
	counts := make(map[int]int)
	best, bestCount := 1, 0
	for i := range keys {
		w := keys[i].Width
		counts[w]++
		if counts[w] > bestCount || (counts[w] == bestCount && w < best) {
			best, bestCount = w, counts[w]
		}
	}
	return best
}
