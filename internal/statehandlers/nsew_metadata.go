package statehandlers

import "fmt"

const NSEWConnectedMetadataName = "NSEWConnectedMetadataState"

// Adjacency bit offsets.
const (
	NorthOff = 1
	SouthOff = 2
	EastOff  = 4
	WestOff  = 8
)

// NSEWConnectedMetadata handles blocks that keep a 1-1 correlation between
// metadata and state apart from four boolean north/south/east/west
// connection properties, as fences and panes do.
type NSEWConnectedMetadata struct{}

func (NSEWConnectedMetadata) Name() string { return NSEWConnectedMetadataName }

func (NSEWConnectedMetadata) Build(c *StateContainer) (Handler, error) {
	for _, name := range [...]string{"north", "south", "east", "west"} {
		if !FindMatchingBooleanProperty(c, name) {
			return nil, fmt.Errorf("%w: no boolean %q property", ErrSchemaMismatch, name)
		}
	}

	// cells hold index+1 into states; 0 is unset.
	var cells [MetaCount][ConnectCount]int
	states := c.GetValidStates()
	for i, s := range states {
		adj := AdjacencyIndex(s)
		for _, meta := range s.Metadata {
			if !inMetaRange(meta) {
				return nil, fmt.Errorf("%w: meta=%d state=%q", ErrMetadataRange, meta, s.String())
			}
			switch cur := cells[meta][adj]; {
			case cur == 0:
				cells[meta][adj] = i + 1
			case cur != i+1:
				return nil, fmt.Errorf("%w: meta=%d adjacency=%d claimed by %q and %q",
					ErrConflict, meta, adj, states[cur-1].String(), s.String())
			}
		}
	}

	def := c.GetDefaultState()
	h := &nsewHandler{}
	for meta := 0; meta < MetaCount; meta++ {
		for adj := 0; adj < ConnectCount; adj++ {
			s := def
			if idx := cells[meta][adj]; idx != 0 {
				s = states[idx-1]
			}
			slot := ConnectedSlot(meta, adj)
			h.maps[slot], h.values[slot] = serialize(s)
		}
	}
	return h, nil
}

// AdjacencyIndex encodes the variant's NSEW flags; only the literal value
// "true" sets a bit.
func AdjacencyIndex(s StateRec) int {
	idx := boolIndex(s.Value("north"), NorthOff)
	idx += boolIndex(s.Value("south"), SouthOff)
	idx += boolIndex(s.Value("east"), EastOff)
	idx += boolIndex(s.Value("west"), WestOff)
	return idx
}

// ConnectedSlot is the flattened table address of (meta, adjacency).
func ConnectedSlot(meta, adjacency int) int {
	return adjacency*MetaCount + meta
}

func boolIndex(v string, off int) int {
	if v == "true" {
		return off
	}
	return 0
}

type nsewHandler struct {
	values [StateCount]string
	maps   [StateCount]map[string]string
}

func (h *nsewHandler) Name() string { return NSEWConnectedMetadataName }

// BlockStateIndex ignores adjacency: neighbour lookup is not wired in, so
// callers get the adjacency-0 slot for meta.
// TODO: take the NSEW neighbour bit-pattern once the host can supply it.
func (h *nsewHandler) BlockStateIndex(blockID, meta int) int { return meta }

func (h *nsewHandler) ConnectedStateIndex(meta, adjacency int) int {
	return ConnectedSlot(meta, adjacency)
}

func (h *nsewHandler) BlockStateValueMaps() []map[string]string { return h.maps[:] }
func (h *nsewHandler) BlockStateValues() []string               { return h.values[:] }
