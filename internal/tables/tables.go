// Package tables holds resolved state tables and serves lookups against them.
package tables

import (
	"errors"
	"fmt"
	"sort"

	"blockscan.ai/internal/statehandlers"
)

var (
	ErrUnknownBlock = errors.New("unknown block")
	ErrOutOfRange   = errors.New("index out of range")
)

// Table is the flattened output of one state handler for one block.
type Table struct {
	Block     string
	Handler   string
	Connected bool
	Values    []string
	Maps      []map[string]string
}

type State struct {
	Block       string            `json:"block"`
	Handler     string            `json:"handler"`
	Slot        int               `json:"slot"`
	Fingerprint string            `json:"fingerprint"`
	Properties  map[string]string `json:"properties"`
}

func FromHandler(block string, h statehandlers.Handler) Table {
	_, connected := h.(statehandlers.ConnectedHandler)
	return Table{
		Block:     block,
		Handler:   h.Name(),
		Connected: connected,
		Values:    append([]string(nil), h.BlockStateValues()...),
		Maps:      append([]map[string]string(nil), h.BlockStateValueMaps()...),
	}
}

// Slot resolves (meta, adjacency) to a table address. Adjacency is only
// meaningful for connected tables and must be 0 otherwise.
func (t *Table) Slot(meta, adjacency int) (int, bool) {
	if meta < 0 || meta >= statehandlers.MetaCount {
		return 0, false
	}
	if !t.Connected {
		if adjacency != 0 || meta >= len(t.Values) {
			return 0, false
		}
		return meta, true
	}
	if adjacency < 0 || adjacency >= statehandlers.ConnectCount {
		return 0, false
	}
	slot := statehandlers.ConnectedSlot(meta, adjacency)
	if slot >= len(t.Values) {
		return 0, false
	}
	return slot, true
}

// Palette returns the distinct fingerprints in first-seen order and the
// palette id of every slot.
func (t *Table) Palette() ([]string, []uint16) {
	index := map[string]uint16{}
	var pal []string
	ids := make([]uint16, len(t.Values))
	for i, v := range t.Values {
		id, ok := index[v]
		if !ok {
			id = uint16(len(pal))
			index[v] = id
			pal = append(pal, v)
		}
		ids[i] = id
	}
	return pal, ids
}

// Store is an immutable set of tables. It is safe for concurrent readers.
type Store struct {
	byBlock map[string]*Table
	blocks  []string
}

func NewStore(ts []Table) (*Store, error) {
	s := &Store{byBlock: make(map[string]*Table, len(ts))}
	for i := range ts {
		t := ts[i]
		if t.Block == "" {
			return nil, fmt.Errorf("table %d: empty block", i)
		}
		if len(t.Values) != len(t.Maps) {
			return nil, fmt.Errorf("%s: %d values vs %d maps", t.Block, len(t.Values), len(t.Maps))
		}
		if _, dup := s.byBlock[t.Block]; dup {
			return nil, fmt.Errorf("%s: duplicate table", t.Block)
		}
		s.byBlock[t.Block] = &t
		s.blocks = append(s.blocks, t.Block)
	}
	sort.Strings(s.blocks)
	return s, nil
}

func (s *Store) Len() int { return len(s.blocks) }

func (s *Store) Blocks() []string { return append([]string(nil), s.blocks...) }

func (s *Store) Get(block string) (*Table, bool) {
	t, ok := s.byBlock[block]
	return t, ok
}

func (s *Store) Lookup(block string, meta, adjacency int) (State, error) {
	t, ok := s.byBlock[block]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownBlock, block)
	}
	slot, ok := t.Slot(meta, adjacency)
	if !ok {
		return State{}, fmt.Errorf("%w: %s meta=%d adjacency=%d", ErrOutOfRange, block, meta, adjacency)
	}
	return State{
		Block:       block,
		Handler:     t.Handler,
		Slot:        slot,
		Fingerprint: t.Values[slot],
		Properties:  t.Maps[slot],
	}, nil
}
