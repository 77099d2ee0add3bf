package supabase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio-hub/internal/remote"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const heartbeatInterval = 30 * time.Second

type channel struct {
	id      int
	topic   string
	table   string
	joinRef string
	events  []remote.EventType
	fn      func(remote.ChangeEvent)
}

func (ch *channel) Table() string { return ch.table }

// realtime multiplexes postgres_changes channels over one Phoenix socket
type realtime struct {
	url string
	log logrus.FieldLogger

	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	ref      int
	nextID   int
	channels map[string]*channel
}

func newRealtime(baseURL, apiKey string, log logrus.FieldLogger) *realtime {
	wsURL := baseURL
	switch {
	case strings.HasPrefix(wsURL, "https"):
		wsURL = "wss" + wsURL[5:]
	case strings.HasPrefix(wsURL, "http"):
		wsURL = "ws" + wsURL[4:]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &realtime{
		url:      wsURL,
		log:      log,
		channels: make(map[string]*channel),
	}
}

// connect dials the socket if needed. Caller holds r.mu.
func (r *realtime) connect(ctx context.Context) error {
	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return remote.Unavailable("subscribe", "realtime", err)
	}

	r.setConn(conn)
	r.done = make(chan struct{})
	go r.readLoop(conn, r.done)
	go r.heartbeat(r.done)
	return nil
}

func (r *realtime) subscribe(ctx context.Context, table string, events []remote.EventType, fn func(remote.ChangeEvent)) (remote.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connect(ctx); err != nil {
		return nil, err
	}

	r.nextID++
	ch := &channel{
		id:     r.nextID,
		topic:  fmt.Sprintf("realtime:public:%s:%d", table, r.nextID),
		table:  table,
		events: events,
		fn:     fn,
	}
	ch.joinRef = r.nextRef()

	changes := make([]map[string]any, 0, len(events))
	if len(events) == 0 {
		events = []remote.EventType{remote.EventAll}
	}
	for _, e := range events {
		changes = append(changes, map[string]any{"event": string(e), "schema": "public", "table": table})
	}
	msg := map[string]any{
		"topic":    ch.topic,
		"event":    "phx_join",
		"payload":  map[string]any{"config": map[string]any{"postgres_changes": changes}},
		"ref":      ch.joinRef,
		"join_ref": ch.joinRef,
	}
	if err := r.write(msg); err != nil {
		return nil, remote.Unavailable("subscribe", table, err)
	}

	r.channels[ch.topic] = ch
	return ch, nil
}

func (r *realtime) unsubscribe(sub remote.Subscription) error {
	ch, ok := sub.(*channel)
	if !ok {
		return fmt.Errorf("foreign subscription %T", sub)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[ch.topic]; !ok {
		return nil
	}
	delete(r.channels, ch.topic)

	if r.conn != nil {
		msg := map[string]any{
			"topic":    ch.topic,
			"event":    "phx_leave",
			"payload":  map[string]any{},
			"ref":      r.nextRef(),
			"join_ref": ch.joinRef,
		}
		if err := r.write(msg); err != nil {
			r.log.WithError(err).WithField("table", ch.table).Warn("realtime leave failed")
		}
	}

	if len(r.channels) == 0 {
		r.disconnect()
	}
	return nil
}

func (r *realtime) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = make(map[string]*channel)
	r.disconnect()
	return nil
}

// disconnect closes the socket. Caller holds r.mu.
func (r *realtime) disconnect() {
	if r.conn == nil {
		return
	}
	close(r.done)
	conn := r.conn
	r.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.conn = nil
	r.writeMu.Unlock()
	conn.Close()
}

// setConn swaps the socket. Caller holds r.mu.
func (r *realtime) setConn(conn *websocket.Conn) {
	r.writeMu.Lock()
	r.conn = conn
	r.writeMu.Unlock()
}

func (r *realtime) nextRef() string {
	r.ref++
	return strconv.Itoa(r.ref)
}

func (r *realtime) write(msg any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn == nil {
		return fmt.Errorf("realtime socket closed")
	}
	return r.conn.WriteJSON(msg)
}

func (r *realtime) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				r.log.WithError(err).Warn("realtime connection lost")
				r.mu.Lock()
				if r.conn == conn {
					close(r.done)
					r.setConn(nil)
					conn.Close()
				}
				r.mu.Unlock()
			}
			return
		}
		r.dispatch(message)
	}
}

func (r *realtime) dispatch(message []byte) {
	frame := gjson.ParseBytes(message)
	if frame.Get("event").String() != "postgres_changes" {
		return
	}

	r.mu.Lock()
	ch, ok := r.channels[frame.Get("topic").String()]
	r.mu.Unlock()
	if !ok {
		return
	}

	data := frame.Get("payload.data")
	ev := remote.ChangeEvent{
		Table: data.Get("table").String(),
		Type:  remote.EventType(data.Get("type").String()),
		New:   toRow(data.Get("record")),
		Old:   toRow(data.Get("old_record")),
	}
	if ev.Table == "" {
		ev.Table = ch.table
	}
	if !remote.Wants(ch.events, ev.Type) {
		return
	}
	ch.fn(ev)
}

func toRow(v gjson.Result) remote.Row {
	m, ok := v.Value().(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return remote.Row(m)
}

func (r *realtime) heartbeat(done chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			ref := r.nextRef()
			r.mu.Unlock()
			msg := map[string]any{
				"topic":   "phoenix",
				"event":   "heartbeat",
				"payload": map[string]any{},
				"ref":     ref,
			}
			if err := r.write(msg); err != nil {
				r.log.WithError(err).Debug("realtime heartbeat failed")
			}
		}
	}
}
