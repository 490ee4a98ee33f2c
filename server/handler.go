package server

import (
	"errors"
	"strings"
	"time"

	"github.com/wfunc/chessrelay/game"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/rules"
	"github.com/wfunc/chessrelay/session"
)

// connHandler drives one connection through its lifecycle: one framing
// message (new or join), then the gameplay loop until the transport closes.
type connHandler struct {
	server *GameServer
	sess   *session.Session
}

type pendingMove struct {
	from int
	to   int
}

func (h *connHandler) run() {
	msg, err := h.sess.Conn.ReadMessage()
	if err != nil {
		return
	}
	h.server.monitor.IncMessagesReceived()

	switch {
	case msg.Type == network.TypeNew:
		h.handleNew()
	case msg.Join != nil:
		h.handleJoin(*msg.Join, msg.Reconnecting)
	default:
		h.send(&network.Redirect{
			Type:    network.TypeInvalidURL,
			Message: "You entered an invalid url... Redirecting to the home menu",
			URL:     network.HomeURL,
		})
	}
}

// handleNew allocates a game and hands back the shareable link. The creator
// does not take a seat; seats are claimed through join.
func (h *connHandler) handleNew() {
	g, err := h.server.registry.CreateGame()
	if err != nil {
		h.send(&network.Error{
			Type:    network.TypeError,
			Message: "Could not generate a unique key for this game, please try again",
		})
		return
	}
	h.server.monitor.SetActiveGames(h.server.registry.Len())
	logger.Log.Infof("Session %s created game %s", h.sess.GetID(), g.Key)

	h.send(&network.New{Type: network.TypeNew, URL: network.JoinURL(g.Key)})
}

func (h *connHandler) handleJoin(key string, reconnecting bool) {
	key = strings.ToUpper(key)

	g, exists := h.server.registry.Lookup(key)
	if !exists {
		if reconnecting {
			h.send(&network.Reconnecting{
				Type:    network.TypeReconnecting,
				Success: false,
				Message: "There is nobody in this game",
				URL:     network.HomeURL,
			})
		} else {
			h.send(&network.Redirect{Type: network.TypeBadRequest, URL: network.BadRequestURL})
		}
		return
	}

	role, err := g.Attach(h.sess)
	if errors.Is(err, game.ErrGameFull) {
		if reconnecting {
			h.send(&network.Reconnecting{
				Type:    network.TypeReconnecting,
				Success: false,
				Message: "Someone else has filled your place while you were gone",
				URL:     network.HomeURL,
			})
		} else {
			h.send(&network.Redirect{
				Type:    network.TypeFull,
				Message: "There are already two players in this game",
				URL:     network.HomeURL,
			})
		}
		return
	}
	if err != nil {
		logger.Log.Errorf("Session %s could not take a seat in %s: %v", h.sess.GetID(), key, err)
		h.send(&network.Error{Type: network.TypeError, Message: "Internal error, please try again"})
		return
	}
	defer h.leave(g)

	logger.Log.Infof("Session %s joined game %s as white=%v (reconnect=%v)",
		h.sess.GetID(), key, bool(role), reconnecting)

	if reconnecting {
		h.send(&network.Reconnecting{
			Type:    network.TypeReconnecting,
			Success: true,
			Join:    key,
		})
	} else {
		snap := g.Snapshot()
		h.send(&network.Init{
			Type:           network.TypeInit,
			Join:           key,
			Board:          snap.Board,
			Player:         bool(role),
			LastMove:       snap.LastMove,
			Turn:           snap.Turn,
			Check:          snap.Check,
			Finished:       snap.Finished,
			FinishedReason: snap.FinishedReason,
			Winner:         snap.Winner,
		})
		g.NotifyJoined(h.sess)
	}

	h.gameLoop(g, role)
}

// leave runs on every departure, voluntary or not. Seat removal and the
// disconnect notice happen in Detach; the reaper only gets the key once the
// game is empty.
func (h *connHandler) leave(g *game.Game) {
	g.Detach(h.sess)
	if g.Empty() {
		h.server.scheduleReap(g.Key)
	}
}

func (h *connHandler) gameLoop(g *game.Game, role game.Role) {
	var pending *pendingMove

	for {
		msg, err := h.sess.Conn.ReadMessage()
		if err != nil {
			// transport failure and voluntary leave take the same path
			return
		}
		h.server.monitor.IncMessagesReceived()

		// A pending promotion claims the next frame as its reply; a reply
		// without a usable piece cancels the move outright.
		if pending != nil {
			move := *pending
			pending = nil
			if msg.Piece != "" {
				h.commitMove(g, move.from, move.to, msg.Piece)
			}
			continue
		}

		switch msg.Type {
		case network.TypeHover:
			// hovers only preview moves for the side to move
			if !g.IsTurn(role) {
				continue
			}
			h.replySelect(g, msg)

		case network.TypeSelect:
			if msg.Player == nil {
				continue
			}
			if !g.IsTurn(game.Role(*msg.Player)) {
				h.send(&network.NotYourTurn{Type: network.TypeNotYourTurn})
				continue
			}
			h.replySelect(g, msg)

		case network.TypePlay:
			if msg.Player == nil || msg.StartSquare == nil || msg.EndSquare == nil {
				continue
			}
			if !g.IsTurn(game.Role(*msg.Player)) {
				h.send(&network.NotYourTurn{Type: network.TypeNotYourTurn})
				continue
			}
			from, to := *msg.StartSquare, *msg.EndSquare
			if g.RequiresPromotion(from, to) {
				h.send(&network.Promotion{Type: network.TypePromotion})
				pending = &pendingMove{from: from, to: to}
				continue
			}
			h.commitMove(g, from, to, "")

		case network.TypeResize:
			h.send(&network.Resize{Type: network.TypeResize, Board: g.BoardFEN()})

		default:
			// unknown types are ignored, keeping the wire contract
			// forward-compatible
		}
	}
}

func (h *connHandler) replySelect(g *game.Game, msg *network.ClientMessage) {
	if msg.Square == nil {
		return
	}
	piece, dests := g.Destinations(*msg.Square)
	if dests == nil {
		dests = []rules.Destination{}
	}
	h.send(&network.Select{
		Type:           msg.Type,
		Square:         *msg.Square,
		Piece:          piece,
		AvailableMoves: dests,
	})
}

func (h *connHandler) commitMove(g *game.Game, from, to int, promotion string) {
	start := time.Now()
	res, err := g.Play(from, to, promotion)
	if err != nil {
		logger.Log.Debugf("Rejected move %d->%d in game %s: %v", from, to, g.Key, err)
		return
	}
	h.server.monitor.ObserveMoveLatency(time.Since(start))

	if res.Outcome.Finished() {
		logger.Log.Infof("Game %s finished: %s", g.Key, res.Outcome.Reason())
		outcome := res.Outcome
		go func() {
			if err := h.server.archive.RecordResult(g, outcome); err != nil {
				logger.Log.Warnf("Failed to archive game %s: %v", g.Key, err)
			}
		}()
	}
}

func (h *connHandler) send(payload interface{}) {
	if err := h.sess.Send(payload); err != nil {
		logger.Log.Debugf("Send to session %s failed: %v", h.sess.GetID(), err)
	}
}
