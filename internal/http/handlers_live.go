package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"spendwise/internal/core"
	"spendwise/internal/live"
	"spendwise/internal/log"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type liveExpense struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
}

type liveCategory struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Share       int    `json:"share"`
}

type liveStats struct {
	Total        string         `json:"total"`
	MonthlyTotal string         `json:"monthly_total"`
	Count        int            `json:"count"`
	ByCategory   []liveCategory `json:"by_category"`
}

type liveMessage struct {
	UserID   string        `json:"user_id"`
	Seq      uint64        `json:"seq"`
	Stats    liveStats     `json:"stats"`
	Expenses []liveExpense `json:"expenses"`
}

func newLiveMessage(snap live.Snapshot) liveMessage {
	msg := liveMessage{
		UserID: snap.UserID,
		Seq:    snap.Seq,
		Stats: liveStats{
			Total:        snap.Stats.Total.String(),
			MonthlyTotal: snap.Stats.MonthlyTotal.String(),
			Count:        snap.Stats.Count,
			ByCategory:   make([]liveCategory, 0, len(snap.Stats.ByCategory)),
		},
		Expenses: make([]liveExpense, 0, len(snap.Expenses)),
	}
	for _, c := range snap.Stats.ByCategory {
		msg.Stats.ByCategory = append(msg.Stats.ByCategory, liveCategory{
			Name:        c.Name,
			Amount:      c.Amount.String(),
			AmountCents: c.Amount.Cents,
			Share:       snap.Stats.Share(c),
		})
	}
	for _, e := range snap.Expenses {
		msg.Expenses = append(msg.Expenses, liveExpense{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Category:    e.Category,
			Date:        e.Date.String(),
			Amount:      e.Amount.String(),
			AmountCents: e.Amount.Cents,
		})
	}
	return msg
}

// latest returns a subscriber callback that keeps only the newest snapshot
// in ch. The hub serializes calls per subscriber.
func latest(ch chan live.Snapshot) func(live.Snapshot) {
	return func(snap live.Snapshot) {
		for {
			select {
			case ch <- snap:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

// handleLive streams snapshots of the viewed user's expenses over a
// WebSocket until either side goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	target := targetUser(r)
	if !actor.CanAccess(target) {
		writeError(w, r, log.OpRead, core.ErrForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.FromContext(r.Context()).WarnContext(r.Context(), "WebSocket upgrade failed", log.FieldError, err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := log.FromContext(ctx).WithComponent(log.ComponentLive)

	updates := make(chan live.Snapshot, 1)
	unsubscribe := s.hub.Subscribe(target, latest(updates))
	defer unsubscribe()

	// Reserve a sequence before reading so any update pushed later is newer.
	seq := s.hub.NextSeq(target)
	snap, err := s.expenses.Snapshot(ctx, actor, target)
	if err != nil {
		logger.LogError(ctx, "Initial snapshot failed", err, log.OpRead, log.NewFields().WithUser(target, actor.UserID))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot unavailable"),
			time.Now().Add(liveWriteWait))
		return
	}
	snap.Seq = seq
	if err := writeSnapshot(conn, snap); err != nil {
		return
	}
	logger.DebugContext(ctx, "Live subscriber connected", log.NewFields().WithUser(target, actor.UserID).ToSlice()...)

	go readPump(conn, cancel)

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(liveWriteWait))
			return
		case snap := <-updates:
			if err := writeSnapshot(conn, snap); err != nil {
				logger.DebugContext(ctx, "Live write failed", log.FieldError, err.Error())
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap live.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(newLiveMessage(snap))
}

// readPump handles pongs and close frames; the client sends nothing else.
func readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
