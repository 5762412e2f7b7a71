package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"

	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/host"
	"toolcore.dev/internal/sim/scene"
)

// view draws a top-down (X right, Z down) slice of the scene around a world-space origin.
// Each cell takes two columns so the slice keeps roughly square proportions.
type view struct {
	screen tcell.Screen
	origin mgl64.Vec3
	slice  int // world Y drawn; blocks above or below are skipped
	paused bool
	last   []protocol.TickReport
}

const hudRows = 2

func (v *view) project(p mgl64.Vec3) (x, y int, ok bool) {
	w, h := v.screen.Size()
	x = w/2 + int(math.Round(p.X()-v.origin.X()))*2
	y = hudRows + (h-hudRows)/2 + int(math.Round(p.Z()-v.origin.Z()))
	return x, y, x >= 0 && x+1 < w && y >= hudRows && y < h
}

func (v *view) onSlice(p mgl64.Vec3) bool {
	return int(math.Round(p.Y())) == v.slice
}

func integrityGlyph(frac float64) rune {
	switch {
	case frac <= 0:
		return '·'
	case frac < 0.34:
		return '░'
	case frac < 0.67:
		return '▒'
	case frac < 1:
		return '▓'
	default:
		return '█'
	}
}

func colourStyle(c host.Colour) tcell.Style {
	st := tcell.StyleDefault
	switch c {
	case host.ColourRed:
		return st.Foreground(tcell.ColorRed)
	case host.ColourWhite:
		return st.Foreground(tcell.ColorWhite)
	case host.ColourPink:
		return st.Foreground(tcell.ColorPink)
	case host.ColourYellow:
		return st.Foreground(tcell.ColorYellow)
	case host.ColourGold:
		return st.Foreground(tcell.ColorGold)
	case host.ColourBlue:
		return st.Foreground(tcell.ColorBlue)
	case host.ColourGreen:
		return st.Foreground(tcell.ColorGreen)
	case host.ColourGreenYellow:
		return st.Foreground(tcell.ColorGreenYellow)
	case host.ColourLightBlue:
		return st.Foreground(tcell.ColorLightBlue)
	}
	return st.Foreground(tcell.ColorGray)
}

func (v *view) put(x, y int, r rune, st tcell.Style) {
	v.screen.SetContent(x, y, r, nil, st)
	v.screen.SetContent(x+1, y, r, nil, st)
}

func (v *view) text(x, y int, s string, st tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, st)
		x++
	}
}

func (v *view) render(sc *scene.Scene, tick uint64) {
	v.screen.Clear()

	for _, g := range sc.Demo.World.Grids() {
		for _, b := range g.Blocks() {
			c := host.CellBox(g, b.Cell()).Center
			if !v.onSlice(c) {
				continue
			}
			x, y, ok := v.project(c)
			if !ok {
				continue
			}
			frac := 0.0
			if b.MaxIntegrity() > 0 {
				frac = b.Integrity() / b.MaxIntegrity()
			}
			v.put(x, y, integrityGlyph(frac), tcell.StyleDefault.Foreground(tcell.ColorSilver))
		}
	}

	for _, t := range sc.Tools {
		for _, box := range t.Boxes() {
			if !v.onSlice(box.OBB.Center) {
				continue
			}
			if x, y, ok := v.project(box.OBB.Center); ok {
				r, _, _, _ := v.screen.GetContent(x, y)
				if r == ' ' || r == 0 {
					r = '+'
				}
				v.put(x, y, r, colourStyle(box.Colour))
			}
		}
	}

	for i, t := range sc.Tools {
		if x, y, ok := v.project(t.Pose.Position); ok {
			label := rune('1' + i)
			v.put(x, y, label, tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorAqua))
		}
	}

	state := "running"
	if v.paused {
		state = "paused"
	}
	v.text(0, 0, fmt.Sprintf("tick %d  y=%d  %s  [space] pause [n] step [pgup/pgdn] slice [arrows] pan [q] quit",
		tick, v.slice, state), tcell.StyleDefault.Bold(true))
	x := 0
	for i, rep := range v.last {
		s := fmt.Sprintf("%d:%s %d/%d r%d ", i+1, rep.ToolID, rep.Worked, rep.Budget, rep.Retained)
		st := tcell.StyleDefault
		if rep.Error != "" {
			st = st.Foreground(tcell.ColorRed)
		}
		v.text(x, 1, s, st)
		x += len(s)
	}
	v.screen.Show()
}

// handleKey applies a key press and reports whether the viewer should quit or step once.
func (v *view) handleKey(key tcell.Key, r rune) (quit, step bool) {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true, false
	case tcell.KeyUp:
		v.origin[2]--
	case tcell.KeyDown:
		v.origin[2]++
	case tcell.KeyLeft:
		v.origin[0]--
	case tcell.KeyRight:
		v.origin[0]++
	case tcell.KeyPgUp:
		v.slice++
	case tcell.KeyPgDn:
		v.slice--
	case tcell.KeyRune:
		switch r {
		case 'q':
			return true, false
		case ' ':
			v.paused = !v.paused
		case 'n':
			return false, true
		}
	}
	return false, false
}
