package tables

import (
	"errors"
	"strconv"
	"testing"

	"blockscan.ai/internal/statehandlers"
)

func fence(t *testing.T) statehandlers.Handler {
	t.Helper()
	c := &statehandlers.StateContainer{}
	for _, n := range []string{"north", "south", "east", "west"} {
		c.Properties = append(c.Properties, statehandlers.Property{Name: n, Kind: statehandlers.KindBool})
	}
	for adj := 0; adj < statehandlers.ConnectCount; adj++ {
		c.ValidStates = append(c.ValidStates, statehandlers.StateRec{
			Properties: []statehandlers.KV{
				{Key: "north", Value: strconv.FormatBool(adj&statehandlers.NorthOff != 0)},
				{Key: "south", Value: strconv.FormatBool(adj&statehandlers.SouthOff != 0)},
				{Key: "east", Value: strconv.FormatBool(adj&statehandlers.EastOff != 0)},
				{Key: "west", Value: strconv.FormatBool(adj&statehandlers.WestOff != 0)},
			},
			Metadata: []int{0},
		})
	}
	c.DefaultState = c.ValidStates[0]
	h, ok := statehandlers.TryHandle(statehandlers.NSEWConnectedMetadata{}, c)
	if !ok {
		t.Fatalf("fence not handled")
	}
	return h
}

func TestStore_LookupConnected(t *testing.T) {
	tab := FromHandler("minecraft:fence", fence(t))
	if !tab.Connected || tab.Handler != statehandlers.NSEWConnectedMetadataName {
		t.Fatalf("table=%+v", tab.Handler)
	}
	s, err := NewStore([]Table{tab})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	st, err := s.Lookup("minecraft:fence", 0, statehandlers.NorthOff|statehandlers.WestOff)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if st.Slot != 9*16 {
		t.Fatalf("slot=%d", st.Slot)
	}
	if st.Fingerprint != "north=true,south=false,east=false,west=true" {
		t.Fatalf("fingerprint=%q", st.Fingerprint)
	}
	if st.Properties["west"] != "true" {
		t.Fatalf("properties=%v", st.Properties)
	}

	if _, err := s.Lookup("minecraft:fence", 16, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Lookup("minecraft:fence", 0, 16); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Lookup("minecraft:stone", 0, 0); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("err=%v", err)
	}
}

func TestTable_UnconnectedRejectsAdjacency(t *testing.T) {
	tab := Table{Block: "b", Values: make([]string, 16), Maps: make([]map[string]string, 16)}
	if slot, ok := tab.Slot(4, 0); !ok || slot != 4 {
		t.Fatalf("slot=%d ok=%v", slot, ok)
	}
	if _, ok := tab.Slot(4, 1); ok {
		t.Fatalf("adjacency accepted on unconnected table")
	}
}

func TestTable_Palette(t *testing.T) {
	tab := FromHandler("minecraft:fence", fence(t))
	pal, ids := tab.Palette()
	if len(pal) != 16 {
		t.Fatalf("palette=%d want 16", len(pal))
	}
	if len(ids) != statehandlers.StateCount {
		t.Fatalf("ids=%d", len(ids))
	}
	for slot, id := range ids {
		if pal[id] != tab.Values[slot] {
			t.Fatalf("slot %d: palette %q vs %q", slot, pal[id], tab.Values[slot])
		}
	}
}

func TestNewStore_Rejects(t *testing.T) {
	if _, err := NewStore([]Table{{Block: ""}}); err == nil {
		t.Fatalf("expected empty block error")
	}
	ts := []Table{{Block: "a"}, {Block: "a"}}
	if _, err := NewStore(ts); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := NewStore([]Table{{Block: "a", Values: []string{""}}}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}
