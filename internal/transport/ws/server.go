package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"blockscan.ai/internal/encoding"
	"blockscan.ai/internal/protocol"
	"blockscan.ai/internal/tables"
)

type Server struct {
	store    atomic.Pointer[tables.Store]
	log      *zap.Logger
	maxQueue int

	upgrader websocket.Upgrader
}

func NewServer(store *tables.Store, logger *zap.Logger, maxQueue int) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxQueue <= 0 {
		maxQueue = 16
	}
	s := &Server{
		log:      logger,
		maxQueue: maxQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	s.store.Store(store)
	return s
}

// SetStore swaps the tables served to new requests.
func (s *Server) SetStore(store *tables.Store) { s.store.Store(store) }

func (s *Server) Store() *tables.Store { return s.store.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, s.maxQueue)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			reply := s.handleMessage(msg)
			b, err := json.Marshal(reply)
			if err != nil {
				s.log.Error("marshal reply", zap.Error(err))
				break
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
	}
}

func (s *Server) handleMessage(msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	switch base.Type {
	case protocol.TypeLookup:
		var req protocol.LookupMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			return protocol.NewError(base.ID, protocol.ErrBadRequest, err.Error())
		}
		st, err := s.Store().Lookup(req.Block, req.Meta, req.Adjacency)
		if err != nil {
			return lookupError(req.ID, err)
		}
		return protocol.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: protocol.Version,
			ID:              req.ID,
			Block:           st.Block,
			Handler:         st.Handler,
			Slot:            st.Slot,
			Fingerprint:     st.Fingerprint,
			Properties:      st.Properties,
		}

	case protocol.TypeTableReq:
		var req protocol.TableReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			return protocol.NewError(base.ID, protocol.ErrBadRequest, err.Error())
		}
		t, ok := s.Store().Get(req.Block)
		if !ok {
			return protocol.NewError(req.ID, protocol.ErrNotFound, "unknown block "+req.Block)
		}
		return tableMsg(req.ID, t)

	default:
		return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, "unknown type "+strconv.Quote(base.Type))
	}
}

func tableMsg(id string, t *tables.Table) protocol.TableMsg {
	pal, ids := t.Palette()
	return protocol.TableMsg{
		Type:            protocol.TypeTable,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Block:           t.Block,
		Handler:         t.Handler,
		Connected:       t.Connected,
		Palette:         pal,
		SlotsRLE:        encoding.EncodeRLE(ids),
	}
}

func lookupError(id string, err error) protocol.ErrorMsg {
	switch {
	case errors.Is(err, tables.ErrUnknownBlock):
		return protocol.NewError(id, protocol.ErrNotFound, err.Error())
	case errors.Is(err, tables.ErrOutOfRange):
		return protocol.NewError(id, protocol.ErrInvalidTarget, err.Error())
	default:
		return protocol.NewError(id, protocol.ErrInternal, err.Error())
	}
}
