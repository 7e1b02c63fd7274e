package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockscan.ai/internal/statehandlers"
)

const BlocksFile = "blocks.json"

//go:embed blocks.schema.json
var blocksSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func blocksSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("blocks.schema.json", blocksSchemaJSON)
	})
	return schema, schemaErr
}

type BlockCatalog struct {
	Blocks     []BlockDef
	Index      map[string]int
	DefsDigest string
	Raw        []byte
}

type BlockDef struct {
	ID         string        `json:"id"`
	LegacyID   int           `json:"legacy_id,omitempty"`
	Properties []PropertyDef `json:"properties"`
	States     []StateDef    `json:"states"`
	Default    string        `json:"default,omitempty"`
}

type PropertyDef struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"` // "bool","enum","int"
	Values []string `json:"values,omitempty"`
}

type StateDef struct {
	State    string `json:"state"` // "k1=v1,k2=v2" in declared order
	Metadata []int  `json:"metadata,omitempty"`
}

func Load(configDir string) (*BlockCatalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, BlocksFile))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*BlockCatalog, error) {
	sch, err := blocksSchema()
	if err != nil {
		return nil, fmt.Errorf("blocks schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", BlocksFile, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", BlocksFile, err)
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("%s: %w", BlocksFile, err)
	}

	out := &BlockCatalog{
		DefsDigest: sha256Hex(raw),
		Raw:        raw,
		Index:      make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("%s: empty id", BlocksFile)
		}
		if _, dup := out.Index[d.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate id %q", BlocksFile, d.ID)
		}
		out.Index[d.ID] = -1
		out.Blocks = append(out.Blocks, d)
	}
	sort.Slice(out.Blocks, func(i, j int) bool { return out.Blocks[i].ID < out.Blocks[j].ID })
	for i, d := range out.Blocks {
		out.Index[d.ID] = i
	}
	return out, nil
}

func (c *BlockCatalog) Get(id string) (BlockDef, bool) {
	i, ok := c.Index[id]
	if !ok {
		return BlockDef{}, false
	}
	return c.Blocks[i], true
}

// Container converts the definition into the state container the handlers
// consume. The default state is the declared default, else the first state.
func (d BlockDef) Container() (*statehandlers.StateContainer, error) {
	c := &statehandlers.StateContainer{}
	for _, p := range d.Properties {
		kind := statehandlers.PropertyKind(p.Type)
		vals := p.Values
		if kind == statehandlers.KindBool && len(vals) == 0 {
			vals = []string{"false", "true"}
		}
		c.Properties = append(c.Properties, statehandlers.Property{Name: p.Name, Kind: kind, Values: vals})
	}

	byFP := make(map[string]int, len(d.States))
	for i, sd := range d.States {
		s, err := statehandlers.ParseState(sd.State)
		if err != nil {
			return nil, fmt.Errorf("%s: state %d: %w", d.ID, i, err)
		}
		s.Metadata = append([]int(nil), sd.Metadata...)
		c.ValidStates = append(c.ValidStates, s)
		if _, ok := byFP[s.String()]; !ok {
			byFP[s.String()] = i
		}
	}

	switch {
	case d.Default != "":
		s, err := statehandlers.ParseState(d.Default)
		if err != nil {
			return nil, fmt.Errorf("%s: default: %w", d.ID, err)
		}
		i, ok := byFP[s.String()]
		if !ok {
			return nil, fmt.Errorf("%s: default %q is not a declared state", d.ID, d.Default)
		}
		c.DefaultState = c.ValidStates[i]
	case len(c.ValidStates) > 0:
		c.DefaultState = c.ValidStates[0]
	}
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
