package voxel

import (
	"sort"

	"toolcore.dev/internal/sim/geom"
	"toolcore.dev/internal/sim/mathx"
)

const chunkSize = 16

type chunkKey struct {
	CX, CY, CZ int
}

type chunk struct {
	cells [chunkSize * chunkSize * chunkSize]*Block
	n     int
}

func (c *chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*chunkSize + y*chunkSize*chunkSize
}

// chunkStore maps cells to blocks. Multi-cell blocks occupy every cell of their span.
// Written only from the processing phase; scans read it concurrently.
type chunkStore struct {
	chunks map[chunkKey]*chunk
}

func newChunkStore() *chunkStore {
	return &chunkStore{chunks: map[chunkKey]*chunk{}}
}

func split(c geom.Vec3i) (chunkKey, int, int, int) {
	k := chunkKey{
		CX: mathx.FloorDiv(c.X, chunkSize),
		CY: mathx.FloorDiv(c.Y, chunkSize),
		CZ: mathx.FloorDiv(c.Z, chunkSize),
	}
	return k, mathx.Mod(c.X, chunkSize), mathx.Mod(c.Y, chunkSize), mathx.Mod(c.Z, chunkSize)
}

func (s *chunkStore) get(c geom.Vec3i) *Block {
	k, x, y, z := split(c)
	ch := s.chunks[k]
	if ch == nil {
		return nil
	}
	return ch.cells[ch.index(x, y, z)]
}

func (s *chunkStore) set(c geom.Vec3i, b *Block) {
	k, x, y, z := split(c)
	ch := s.chunks[k]
	if ch == nil {
		if b == nil {
			return
		}
		ch = &chunk{}
		s.chunks[k] = ch
	}
	i := ch.index(x, y, z)
	prev := ch.cells[i]
	if prev == b {
		return
	}
	ch.cells[i] = b
	switch {
	case prev == nil:
		ch.n++
	case b == nil:
		ch.n--
	}
	if ch.n == 0 {
		delete(s.chunks, k)
	}
}

func (s *chunkStore) loadedChunks() []chunkKey {
	keys := make([]chunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		if keys[i].CY != keys[j].CY {
			return keys[i].CY < keys[j].CY
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}
