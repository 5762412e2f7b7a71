package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// TraverseCells walks every cell the segment start->end enters, in order, using a 3D DDA
// (Amanatides-Woo). Points are in grid-local scaled space where cell c spans c±0.5.
func TraverseCells(start, end mgl64.Vec3) []Vec3i {
	a := start.Add(cellHalf)
	b := end.Add(cellHalf)

	cur := [3]int{int(math.Floor(a[0])), int(math.Floor(a[1])), int(math.Floor(a[2]))}
	last := [3]int{int(math.Floor(b[0])), int(math.Floor(b[1])), int(math.Floor(b[2]))}

	d := b.Sub(a)
	var (
		step   [3]int
		tMax   [3]float64
		tDelta [3]float64
	)
	for i := 0; i < 3; i++ {
		switch {
		case d[i] > 0:
			step[i] = 1
			tDelta[i] = 1 / d[i]
			tMax[i] = (float64(cur[i]+1) - a[i]) / d[i]
		case d[i] < 0:
			step[i] = -1
			tDelta[i] = -1 / d[i]
			tMax[i] = (a[i] - float64(cur[i])) / -d[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	limit := 1
	for i := 0; i < 3; i++ {
		n := last[i] - cur[i]
		if n < 0 {
			n = -n
		}
		limit += n
	}

	out := make([]Vec3i, 0, limit)
	out = append(out, Vec3i{X: cur[0], Y: cur[1], Z: cur[2]})
	for len(out) < limit && cur != last {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		if tMax[axis] > 1 {
			break
		}
		cur[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		out = append(out, Vec3i{X: cur[0], Y: cur[1], Z: cur[2]})
	}
	return out
}
