package vectorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Snapshot format: magic, version and the tuning parameters, followed
// by the live nodes with their per-layer adjacency lists. Tombstoned
// nodes are dropped and neighbor indices remapped, so loading a
// snapshot also compacts the graph. A snapshot whose version,
// dimension or parameters differ from the configured values is
// rejected and the index is rebuilt from the persisted rows instead.

var snapshotMagic = [4]byte{'S', 'S', 'I', 'X'}

const snapshotVersion = 1

const noEntry = uint32(0xFFFFFFFF)

var errSnapshotIncompatible = errors.New("incompatible index snapshot")

// marshalSnapshot serializes the live portion of the graph.
func (h *hnswIndex) marshalSnapshot(dims int) []byte {
	remap := make(map[int32]uint32, h.live)
	var liveNodes []*hnswNode
	for i, n := range h.nodes {
		if n.deleted {
			continue
		}
		remap[int32(i)] = uint32(len(liveNodes))
		liveNodes = append(liveNodes, n)
	}

	var buf []byte
	putU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}

	buf = append(buf, snapshotMagic[:]...)
	putU32(snapshotVersion)
	putU32(uint32(dims))
	putU32(uint32(h.cfg.m))
	putU32(uint32(h.cfg.efConstruction))
	putU32(uint32(len(liveNodes)))

	entry := noEntry
	maxLevel := 0
	if h.entry >= 0 {
		if mapped, ok := remap[h.entry]; ok {
			entry = mapped
			maxLevel = h.maxLevel
		} else {
			// Entry point was tombstoned: promote the highest live node.
			for i, n := range liveNodes {
				if entry == noEntry || n.level > maxLevel {
					entry = uint32(i)
					maxLevel = n.level
				}
			}
		}
	}
	putU32(entry)
	putU32(uint32(maxLevel))

	for _, n := range liveNodes {
		putU32(uint32(len(n.id)))
		buf = append(buf, n.id...)
		putU32(uint32(n.level))
		for _, v := range n.vec {
			putU32(math.Float32bits(v))
		}
		for l := 0; l <= n.level; l++ {
			var kept []uint32
			for _, nb := range n.links[l] {
				if mapped, ok := remap[nb]; ok {
					kept = append(kept, mapped)
				}
			}
			putU32(uint32(len(kept)))
			for _, nb := range kept {
				putU32(nb)
			}
		}
	}
	return buf
}

// unmarshalSnapshot restores a graph written by marshalSnapshot,
// validating compatibility with the configured parameters.
func unmarshalSnapshot(data []byte, dims int, cfg hnswConfig) (*hnswIndex, error) {
	off := 0
	need := func(n int) error {
		if off+n > len(data) {
			return fmt.Errorf("truncated snapshot at offset %d", off)
		}
		return nil
	}
	getU32 := func() uint32 {
		v := binary.LittleEndian.Uint32(data[off:])
		off += 4
		return v
	}

	if err := need(4); err != nil {
		return nil, err
	}
	if [4]byte(data[:4]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", errSnapshotIncompatible)
	}
	off = 4

	if err := need(7 * 4); err != nil {
		return nil, err
	}
	if v := getU32(); v != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", errSnapshotIncompatible, v)
	}
	if d := getU32(); int(d) != dims {
		return nil, fmt.Errorf("%w: dimensions %d != %d", errSnapshotIncompatible, d, dims)
	}
	if m := getU32(); int(m) != cfg.m {
		return nil, fmt.Errorf("%w: m %d != %d", errSnapshotIncompatible, m, cfg.m)
	}
	if ef := getU32(); int(ef) != cfg.efConstruction {
		return nil, fmt.Errorf("%w: efConstruction %d != %d", errSnapshotIncompatible, ef, cfg.efConstruction)
	}
	count := int(getU32())
	entry := getU32()
	maxLevel := int(getU32())

	h := newHNSWIndex(cfg)
	h.nodes = make([]*hnswNode, 0, count)

	for i := 0; i < count; i++ {
		if err := need(4); err != nil {
			return nil, err
		}
		idLen := int(getU32())
		if err := need(idLen); err != nil {
			return nil, err
		}
		id := string(data[off : off+idLen])
		off += idLen

		if err := need(4 + dims*4); err != nil {
			return nil, err
		}
		level := int(getU32())
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = math.Float32frombits(getU32())
		}

		node := &hnswNode{
			id:    id,
			vec:   vec,
			mag:   magnitude(vec),
			level: level,
			links: make([][]int32, level+1),
		}
		for l := 0; l <= level; l++ {
			if err := need(4); err != nil {
				return nil, err
			}
			n := int(getU32())
			if err := need(n * 4); err != nil {
				return nil, err
			}
			links := make([]int32, n)
			for j := range links {
				nb := getU32()
				if int(nb) >= count {
					return nil, fmt.Errorf("%w: neighbor index %d out of range", errSnapshotIncompatible, nb)
				}
				links[j] = int32(nb)
			}
			node.links[l] = links
		}

		h.pos[id] = int32(len(h.nodes))
		h.nodes = append(h.nodes, node)
	}

	h.live = len(h.nodes)
	h.maxLevel = maxLevel
	if entry == noEntry || int(entry) >= len(h.nodes) {
		h.entry = -1
		if len(h.nodes) > 0 {
			return nil, fmt.Errorf("%w: missing entry point", errSnapshotIncompatible)
		}
	} else {
		h.entry = int32(entry)
	}
	return h, nil
}
