package registry

import (
	"context"
	"errors"
	"time"

	"github.com/adwski/chat-relay/model"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultSendTimeout = time.Second

// Conn is the registry's handle for one live client session. The
// transport owns the underlying connection; the registry tracks only
// what routing needs. room and name are touched exclusively from the
// connection's own event goroutine, so they carry no lock.
type Conn struct {
	id   string
	wire model.Wire
	room string
	name string
}

func (c *Conn) ID() string {
	return c.id
}

type (
	// Store is the room membership index mutated on join, re-join and
	// disconnect.
	Store interface {
		Join(connID string, wire model.Wire, roomID string) bool
		Leave(connID string)
	}

	// Broadcaster fans a message out to a room, excluding the sender.
	Broadcaster interface {
		Broadcast(ctx context.Context, roomID string, msg model.Message, excludeID string)
	}

	Registry struct {
		store       Store
		router      Broadcaster
		logger      zerolog.Logger
		defaultRoom string
		sendTimeout time.Duration
	}

	Config struct {
		Store       Store
		Router      Broadcaster
		Logger      *zerolog.Logger
		DefaultRoom string
		SendTimeout time.Duration
	}
)

func NewRegistry(cfg Config) *Registry {
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Registry{
		store:       cfg.Store,
		router:      cfg.Router,
		logger:      cfg.Logger.With().Str("component", "registry").Logger(),
		defaultRoom: cfg.DefaultRoom,
		sendTimeout: sendTimeout,
	}
}

// OnConnect registers a new session with no room and no name. Nothing
// is visible to other clients until the first join.
func (r *Registry) OnConnect(wire model.Wire) *Conn {
	conn := &Conn{
		id:   uuid.NewString(),
		wire: wire,
	}
	r.logger.Debug().
		Str("connID", conn.id).
		Msg("client connected")
	return conn
}

// OnMessage dispatches one inbound payload from conn. Per-message
// failures are reported back to the sender only; the connection is
// never closed from here.
func (r *Registry) OnMessage(ctx context.Context, conn *Conn, raw []byte) {
	msg, err := model.Decode(raw)
	if err != nil {
		if errors.Is(err, model.ErrUnknownType) {
			r.logger.Debug().
				Str("connID", conn.id).
				Msg("ignoring unknown message type")
			return
		}
		r.logger.Debug().
			Str("connID", conn.id).
			Err(err).
			Msg("rejected inbound payload")
		r.logger.Trace().
			Str("connID", conn.id).
			Str("payload", spew.Sdump(raw)).
			Msg("rejected payload dump")
		r.reply(ctx, conn, "Invalid message format")
		return
	}

	switch msg.Type {
	case model.TypeJoin:
		r.handleJoin(ctx, conn, msg)
	case model.TypeChat:
		r.handleChat(ctx, conn, msg)
	}
}

// OnDisconnect removes all trace of conn from the membership index.
// Idempotent, and safe for connections that never joined.
func (r *Registry) OnDisconnect(conn *Conn) {
	r.store.Leave(conn.id)
	r.logger.Debug().
		Str("connID", conn.id).
		Str("roomID", conn.room).
		Str("username", conn.name).
		Msg("client disconnected")
}

func (r *Registry) handleJoin(ctx context.Context, conn *Conn, msg model.Message) {
	roomID := msg.RoomID
	if roomID == "" {
		roomID = r.defaultRoom
	}

	created := r.store.Join(conn.id, conn.wire, roomID)
	if created {
		r.logger.Debug().
			Str("roomID", roomID).
			Msg("created new room")
	}
	conn.room = roomID
	conn.name = msg.Username

	r.logger.Debug().
		Str("connID", conn.id).
		Str("roomID", roomID).
		Str("username", conn.name).
		Msg("client joined room")

	r.reply(ctx, conn, "Joined room "+roomID)
}

func (r *Registry) handleChat(ctx context.Context, conn *Conn, msg model.Message) {
	if conn.room == "" || conn.name == "" {
		r.reply(ctx, conn, "Please join a room first")
		return
	}

	// The sender's tracked room is authoritative; a roomId carried by
	// the chat payload is never used for addressing.
	out := model.NewChatMessage(conn.name, msg.Content, conn.room)
	r.router.Broadcast(ctx, conn.room, out, conn.id)
}

func (r *Registry) reply(ctx context.Context, conn *Conn, content string) {
	msg := model.NewSystemMessage(content, conn.room)
	tCh := time.NewTimer(r.sendTimeout)
	select {
	case <-ctx.Done():
	case <-tCh.C:
		r.logger.Error().
			Str("connID", conn.id).
			Msg("system reply timed out")
	case conn.wire.TX <- msg:
	}
	tCh.Stop()
}
