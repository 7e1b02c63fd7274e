package statehandlers

import "errors"

const (
	MetaCount    = 16
	ConnectCount = 2 * 2 * 2 * 2 // NSEW permutations
	StateCount   = MetaCount * ConnectCount
)

var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrMetadataRange  = errors.New("metadata out of range")
	ErrConflict       = errors.New("conflicting metadata assignment")
)

// Handler maps legacy block ids/metadata onto resolved block states.
// Returned slices and maps are shared and must not be modified.
type Handler interface {
	Name() string
	BlockStateIndex(blockID, meta int) int
	BlockStateValueMaps() []map[string]string
	BlockStateValues() []string
}

// ConnectedHandler is a Handler whose table is also keyed by an adjacency
// bit-pattern supplied by the caller.
type ConnectedHandler interface {
	Handler
	ConnectedStateIndex(meta, adjacency int) int
}

// Factory inspects a block's state container and builds a Handler for it.
type Factory interface {
	Name() string
	Build(c *StateContainer) (Handler, error)
}

// TryHandle runs f against c and collapses any failure into "not applicable".
func TryHandle(f Factory, c *StateContainer) (Handler, bool) {
	if f == nil || c == nil {
		return nil, false
	}
	h, err := f.Build(c)
	if err != nil || h == nil {
		return nil, false
	}
	return h, true
}

func inMetaRange(meta int) bool { return meta >= 0 && meta < MetaCount }

// serialize turns a resolved state into its property map and fingerprint.
func serialize(s StateRec) (map[string]string, string) {
	return s.Map(), s.String()
}
