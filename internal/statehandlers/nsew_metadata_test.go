package statehandlers

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func boolProps(names ...string) []Property {
	out := make([]Property, 0, len(names))
	for _, n := range names {
		out = append(out, Property{Name: n, Kind: KindBool, Values: []string{"false", "true"}})
	}
	return out
}

func flag(adj, off int) string {
	return strconv.FormatBool(adj&off != 0)
}

// fenceState declares properties in the alphabetical order the game uses.
func fenceState(adj int, meta ...int) StateRec {
	return StateRec{
		Properties: []KV{
			{Key: "east", Value: flag(adj, EastOff)},
			{Key: "north", Value: flag(adj, NorthOff)},
			{Key: "south", Value: flag(adj, SouthOff)},
			{Key: "west", Value: flag(adj, WestOff)},
		},
		Metadata: meta,
	}
}

func fenceContainer() *StateContainer {
	c := &StateContainer{Properties: boolProps("east", "north", "south", "west")}
	for adj := 0; adj < ConnectCount; adj++ {
		c.ValidStates = append(c.ValidStates, fenceState(adj, 0))
	}
	c.DefaultState = c.ValidStates[0]
	return c
}

func TestNSEW_RejectsMissingDirection(t *testing.T) {
	all := []string{"north", "south", "east", "west"}
	for _, missing := range all {
		var names []string
		for _, n := range all {
			if n != missing {
				names = append(names, n)
			}
		}
		c := fenceContainer()
		c.Properties = boolProps(names...)

		h, ok := TryHandle(NSEWConnectedMetadata{}, c)
		require.False(t, ok, "missing %s", missing)
		require.Nil(t, h)

		_, err := NSEWConnectedMetadata{}.Build(c)
		require.ErrorIs(t, err, ErrSchemaMismatch)
	}
}

func TestNSEW_RejectsNonBooleanDirection(t *testing.T) {
	c := fenceContainer()
	c.Properties[1] = Property{Name: "north", Kind: KindEnum, Values: []string{"none", "low", "tall"}}

	_, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.False(t, ok)
}

func TestNSEW_AcceptsUntypedTrueFalseValues(t *testing.T) {
	c := fenceContainer()
	c.Properties[0] = Property{Name: "east", Kind: KindEnum, Values: []string{"true", "false"}}

	_, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)
}

func TestNSEW_BuildsFullTable(t *testing.T) {
	c := fenceContainer()
	h, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)
	require.Equal(t, NSEWConnectedMetadataName, h.Name())

	values := h.BlockStateValues()
	maps := h.BlockStateValueMaps()
	require.Len(t, values, StateCount)
	require.Len(t, maps, StateCount)

	def := c.DefaultState.Map()
	for adj := 0; adj < ConnectCount; adj++ {
		want := fenceState(adj)
		slot := ConnectedSlot(0, adj)
		require.Equal(t, want.String(), values[slot])
		require.Equal(t, want.Map(), maps[slot])

		for meta := 1; meta < MetaCount; meta++ {
			require.Equal(t, def, maps[ConnectedSlot(meta, adj)], "meta=%d adj=%d", meta, adj)
		}
	}

	ch, ok := h.(ConnectedHandler)
	require.True(t, ok)
	require.Equal(t, 5*16+3, ch.ConnectedStateIndex(3, 5))
}

func TestNSEW_SlotOrderIsAdjacencyMajor(t *testing.T) {
	c := fenceContainer()
	// meta 7 with only north connected
	c.ValidStates = append(c.ValidStates, StateRec{
		Properties: []KV{{Key: "north", Value: "true"}, {Key: "variant", Value: "mossy"}},
		Metadata:   []int{7},
	})
	h, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)

	values := h.BlockStateValues()
	require.Equal(t, "north=true,variant=mossy", values[NorthOff*16+7])
	require.NotEqual(t, "north=true,variant=mossy", values[7*16+NorthOff])
}

func TestNSEW_Idempotent(t *testing.T) {
	c := fenceContainer()
	h1, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)
	h2, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)

	require.Equal(t, h1.BlockStateValues(), h2.BlockStateValues())
	require.Equal(t, h1.BlockStateValueMaps(), h2.BlockStateValueMaps())
}

func TestNSEW_ConflictRejectsWholeBuild(t *testing.T) {
	c := fenceContainer()
	c.ValidStates = append(c.ValidStates,
		StateRec{Properties: []KV{{Key: "north", Value: "true"}, {Key: "color", Value: "red"}}, Metadata: []int{5}},
		StateRec{Properties: []KV{{Key: "north", Value: "true"}, {Key: "color", Value: "blue"}}, Metadata: []int{5}},
	)

	_, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.False(t, ok)

	_, err := NSEWConnectedMetadata{}.Build(c)
	require.True(t, errors.Is(err, ErrConflict), "err=%v", err)
}

func TestNSEW_SameVariantRepeatingMetaIsNotConflict(t *testing.T) {
	c := fenceContainer()
	c.ValidStates = append(c.ValidStates, StateRec{
		Properties: []KV{{Key: "west", Value: "true"}},
		Metadata:   []int{2, 2},
	})
	_, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)
}

func TestNSEW_MetadataOutOfRange(t *testing.T) {
	for _, meta := range []int{16, -1} {
		c := fenceContainer()
		c.ValidStates = append(c.ValidStates, StateRec{
			Properties: []KV{{Key: "south", Value: "true"}},
			Metadata:   []int{3, meta},
		})

		_, ok := TryHandle(NSEWConnectedMetadata{}, c)
		require.False(t, ok, "meta=%d", meta)

		_, err := NSEWConnectedMetadata{}.Build(c)
		require.ErrorIs(t, err, ErrMetadataRange)
	}
}

func TestNSEW_DefaultsEveryUndeclaredSlot(t *testing.T) {
	only := fenceState(0, 0)
	c := &StateContainer{
		Properties:   boolProps("north", "south", "east", "west"),
		ValidStates:  []StateRec{only},
		DefaultState: only,
	}
	h, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)

	want := only.Map()
	for slot, m := range h.BlockStateValueMaps() {
		require.Equal(t, want, m, "slot=%d", slot)
	}
}

func TestNSEW_DefaultWithoutProperties(t *testing.T) {
	c := &StateContainer{Properties: boolProps("north", "south", "east", "west")}
	h, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)
	for slot := 0; slot < StateCount; slot++ {
		require.Equal(t, "", h.BlockStateValues()[slot])
		require.Empty(t, h.BlockStateValueMaps()[slot])
	}
}

func TestNSEW_FingerprintKeepsDeclaredOrder(t *testing.T) {
	c := fenceContainer()
	c.ValidStates = append(c.ValidStates, StateRec{
		Properties: []KV{{Key: "north", Value: "true"}, {Key: "east", Value: "false"}},
		Metadata:   []int{3},
	})
	h, ok := TryHandle(NSEWConnectedMetadata{}, c)
	require.True(t, ok)
	require.Equal(t, "north=true,east=false", h.BlockStateValues()[ConnectedSlot(3, NorthOff)])
}

func TestAdjacencyIndex(t *testing.T) {
	s := StateRec{Properties: []KV{
		{Key: "north", Value: "true"},
		{Key: "south", Value: "false"},
		{Key: "east", Value: "false"},
		{Key: "west", Value: "true"},
	}}
	require.Equal(t, 9, AdjacencyIndex(s))

	// Only the literal "true" sets a bit.
	s = StateRec{Properties: []KV{{Key: "north", Value: "TRUE"}, {Key: "east", Value: "low"}}}
	require.Equal(t, 0, AdjacencyIndex(s))
}

func TestNSEW_BlockStateIndexIsMetadata(t *testing.T) {
	h, ok := TryHandle(NSEWConnectedMetadata{}, fenceContainer())
	require.True(t, ok)
	for meta := 0; meta < MetaCount; meta++ {
		require.Equal(t, meta, h.BlockStateIndex(85, meta))
	}
}
