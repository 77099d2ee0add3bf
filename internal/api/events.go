package api

import (
	"context"
	"strings"
	"time"

	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"
	"portfolio-hub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TopicReady is sent once the connection's subscriptions are in place
const TopicReady broadcast.Topic = "ready"

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
)

// Events streams bus events over a websocket. ?tables=a,b additionally
// opens remote change feeds for those tables; a change refetches the
// collection, which in turn shows up on the stream as a storage event.
func (h *Handler) Events(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(services.WithActor(context.Background(), sessionEmail(c)))
	defer cancel()

	claims := claimsFrom(c)
	log := h.log.WithField("email", sessionEmail(c))

	events, unsubscribe := h.svc.Cache().Bus().Channel(eventBuffer, broadcast.TopicStorage, broadcast.TopicNotification)
	defer unsubscribe()

	refresh := make(chan models.Kind, eventBuffer)
	var subs []remote.Subscription
	defer func() {
		for _, sub := range subs {
			if err := h.svc.Gateway().Unsubscribe(context.Background(), sub); err != nil {
				log.WithError(err).Warn("remote unsubscribe failed")
			}
		}
	}()

	var tables []string
	for _, table := range strings.Split(c.Query("tables"), ",") {
		kind := models.Kind(strings.TrimSpace(table))
		if kind == "" || !refetchable(kind) {
			continue
		}
		sub, err := h.svc.Gateway().Subscribe(ctx, string(kind), nil, func(remote.ChangeEvent) {
			select {
			case refresh <- kind:
			default:
			}
		})
		if err != nil {
			log.WithError(err).WithField("table", kind).Warn("remote subscribe failed")
			continue
		}
		subs = append(subs, sub)
		tables = append(tables, string(kind))
	}

	// The reader only watches for the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, broadcast.Event{Topic: TopicReady, Keys: tables}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Topic == broadcast.TopicNotification && !h.visible(claims, ev) {
				continue
			}
			if err := writeEvent(conn, ev); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case kind := <-refresh:
			h.refetch(ctx, claims, kind)
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev broadcast.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

// visible reports whether a notification event may go to the connection
func (h *Handler) visible(claims *services.Claims, ev broadcast.Event) bool {
	if claims == nil || claims.Role == services.RoleAdmin {
		return true
	}
	n, ok := ev.Payload.(models.Notification)
	return ok && strings.EqualFold(n.Recipient, claims.Email)
}

func refetchable(kind models.Kind) bool {
	switch kind {
	case models.KindProjects, models.KindSkills, models.KindNews, models.KindSettings,
		models.KindLeads, models.KindGeneratedProjects, models.KindMessages,
		models.KindContracts, models.KindInvoices, models.KindNotifications,
		models.KindDomains, models.KindTransactions, models.KindActivities:
		return true
	}
	return false
}

// refetch reloads a collection after a remote change. Clients only reload
// their own records.
func (h *Handler) refetch(ctx context.Context, claims *services.Claims, kind models.Kind) {
	owner := ""
	if claims != nil && claims.Role != services.RoleAdmin {
		owner = claims.Email
	}
	admin := owner == ""

	switch kind {
	case models.KindProjects:
		h.svc.FetchProjects(ctx)
	case models.KindSkills:
		h.svc.FetchSkills(ctx)
	case models.KindNews:
		h.svc.FetchNews(ctx)
	case models.KindSettings:
		h.svc.FetchSettings(ctx)
	case models.KindContracts:
		h.svc.FetchContracts(ctx, owner)
	case models.KindInvoices:
		h.svc.FetchInvoices(ctx, owner)
	case models.KindNotifications:
		h.svc.FetchNotifications(ctx, owner)
	case models.KindDomains:
		h.svc.FetchDomains(ctx, owner)
	case models.KindGeneratedProjects:
		if admin {
			h.svc.FetchGeneratedProjects(ctx)
		} else {
			h.svc.FetchUserProjects(ctx, owner)
		}
	case models.KindLeads:
		if admin {
			h.svc.FetchUsers(ctx)
		}
	case models.KindMessages:
		if admin {
			h.svc.FetchMessages(ctx)
		}
	case models.KindTransactions:
		if admin {
			h.svc.FetchAllTransactions(ctx)
		}
	case models.KindActivities:
		if admin {
			h.svc.FetchActivities(ctx)
		}
	}
}
