package statehandlers

import "fmt"

const MetadataName = "MetadataState"

// Metadata handles blocks whose variants map 1-1 onto legacy metadata.
type Metadata struct{}

func (Metadata) Name() string { return MetadataName }

func (Metadata) Build(c *StateContainer) (Handler, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil container", ErrSchemaMismatch)
	}
	var cells [MetaCount]int
	states := c.GetValidStates()
	for i, s := range states {
		for _, meta := range s.Metadata {
			if !inMetaRange(meta) {
				return nil, fmt.Errorf("%w: meta=%d state=%q", ErrMetadataRange, meta, s.String())
			}
			switch cur := cells[meta]; {
			case cur == 0:
				cells[meta] = i + 1
			case cur != i+1:
				return nil, fmt.Errorf("%w: meta=%d claimed by %q and %q",
					ErrConflict, meta, states[cur-1].String(), s.String())
			}
		}
	}

	def := c.GetDefaultState()
	h := &metadataHandler{}
	for meta, idx := range cells {
		s := def
		if idx != 0 {
			s = states[idx-1]
		}
		h.maps[meta], h.values[meta] = serialize(s)
	}
	return h, nil
}

type metadataHandler struct {
	values [MetaCount]string
	maps   [MetaCount]map[string]string
}

func (h *metadataHandler) Name() string                             { return MetadataName }
func (h *metadataHandler) BlockStateIndex(blockID, meta int) int    { return meta }
func (h *metadataHandler) BlockStateValueMaps() []map[string]string { return h.maps[:] }
func (h *metadataHandler) BlockStateValues() []string               { return h.values[:] }
