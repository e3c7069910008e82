package router

import (
	"context"
	"time"

	"github.com/adwski/chat-relay/model"
	"github.com/rs/zerolog"
)

const defaultSendTimeout = time.Second

type (
	// MemberIndex exposes room membership snapshots. The index is owned
	// elsewhere; the router only reads it and never creates rooms.
	MemberIndex interface {
		MembersOf(roomID string) map[string]model.Wire
	}

	Router struct {
		logger      zerolog.Logger
		members     MemberIndex
		sendTimeout time.Duration
	}

	Config struct {
		Logger      *zerolog.Logger
		Members     MemberIndex
		SendTimeout time.Duration
	}
)

func NewRouter(cfg Config) *Router {
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Router{
		logger:      cfg.Logger.With().Str("component", "router").Logger(),
		members:     cfg.Members,
		sendTimeout: sendTimeout,
	}
}

// Broadcast fans msg out to every current member of roomID except
// excludeID. A room that was never joined is a no-op. Delivery to each
// member is attempted independently with a bounded wait; a member that
// cannot accept in time is skipped without affecting the others.
func (rt *Router) Broadcast(ctx context.Context, roomID string, msg model.Message, excludeID string) {
	members := rt.members.MembersOf(roomID)
	if members == nil {
		rt.logger.Debug().
			Str("roomID", roomID).
			Msg("broadcast to unknown room, nowhere to forward")
		return
	}

	var sent int
	for connID, wire := range members {
		if connID == excludeID {
			continue
		}
		delivered, canceled := send(ctx, msg, wire.TX, rt.sendTimeout)
		if canceled {
			break
		}
		if delivered {
			sent++
		} else {
			rt.logger.Error().
				Str("roomID", roomID).
				Str("dst", connID).
				Msg("dead endpoint")
		}
	}
	rt.logger.Debug().
		Str("roomID", roomID).
		Str("type", msg.Type).
		Int("sent", sent).
		Msg("broadcast done")
}

func send(ctx context.Context, msg model.Message, tx chan<- model.Message, timeout time.Duration) (bool, bool) {
	var delivered, canceled bool
	tCh := time.NewTimer(timeout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
	case tx <- msg:
		delivered = true
	}
	tCh.Stop()
	return delivered, canceled
}
