package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeLookup   = "LOOKUP"
	TypeState    = "STATE"
	TypeTableReq = "TABLE_REQ"
	TypeTable    = "TABLE"
	TypeError    = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// LookupMsg asks for the state at (meta, adjacency). Adjacency is the NSEW
// bit-pattern computed by the caller (north=1, south=2, east=4, west=8).
type LookupMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Block           string `json:"block"`
	Meta            int    `json:"meta"`
	Adjacency       int    `json:"adjacency,omitempty"`
}

type StateMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ID              string            `json:"id,omitempty"`
	Block           string            `json:"block"`
	Handler         string            `json:"handler"`
	Slot            int               `json:"slot"`
	Fingerprint     string            `json:"fingerprint"`
	Properties      map[string]string `json:"properties"`
}

type TableReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Block           string `json:"block"`
}

// TableMsg carries a whole table as a fingerprint palette plus RLE slot ids.
type TableMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	Block           string   `json:"block"`
	Handler         string   `json:"handler"`
	Connected       bool     `json:"connected"`
	Palette         []string `json:"palette"`
	SlotsRLE        string   `json:"slots_rle"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(id, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ID: id, Code: code, Message: msg}
}
