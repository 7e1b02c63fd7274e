package ws

import (
	"encoding/json"
	"net/http"
	"strconv"

	"blockscan.ai/internal/protocol"
)

// Routes registers the JSON lookup API and the websocket endpoint.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/blocks", s.listBlocks)
	mux.HandleFunc("GET /v1/blocks/{id}", s.getBlock)
	mux.HandleFunc("/v1/ws", s.Handler())
}

func (s *Server) listBlocks(rw http.ResponseWriter, r *http.Request) {
	writeHTTPJSON(rw, http.StatusOK, map[string]any{"blocks": s.Store().Blocks()})
}

// getBlock returns the whole table, or one state when meta is given.
func (s *Server) getBlock(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	if q.Get("meta") == "" {
		t, ok := s.Store().Get(id)
		if !ok {
			writeHTTPJSON(rw, http.StatusNotFound, protocol.NewError("", protocol.ErrNotFound, "unknown block "+id))
			return
		}
		writeHTTPJSON(rw, http.StatusOK, tableMsg("", t))
		return
	}

	meta, err := strconv.Atoi(q.Get("meta"))
	if err != nil {
		writeHTTPJSON(rw, http.StatusBadRequest, protocol.NewError("", protocol.ErrBadRequest, "bad meta"))
		return
	}
	adj := 0
	if v := q.Get("adjacency"); v != "" {
		if adj, err = strconv.Atoi(v); err != nil {
			writeHTTPJSON(rw, http.StatusBadRequest, protocol.NewError("", protocol.ErrBadRequest, "bad adjacency"))
			return
		}
	}
	st, err := s.Store().Lookup(id, meta, adj)
	if err != nil {
		e := lookupError("", err)
		status := http.StatusBadRequest
		if e.Code == protocol.ErrNotFound {
			status = http.StatusNotFound
		}
		writeHTTPJSON(rw, status, e)
		return
	}
	writeHTTPJSON(rw, http.StatusOK, st)
}

func writeHTTPJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
