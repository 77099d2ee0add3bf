// Package postgres implements the remote gateway directly against a
// PostgreSQL database. Change feeds use LISTEN/NOTIFY; password sessions
// are not available without the hosted auth service.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio-hub/internal/remote"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// NotifyChannel is the LISTEN channel change triggers publish on. The
// payload is {"table": ..., "type": "INSERT|UPDATE|DELETE", "record": {...},
// "old_record": {...}}.
const NotifyChannel = "portfolio_changes"

type subscription struct {
	id     int
	table  string
	events []remote.EventType
	fn     func(remote.ChangeEvent)
}

func (s *subscription) Table() string { return s.table }

// Gateway is a remote.Gateway over database/sql
type Gateway struct {
	db  *sqlx.DB
	dsn string
	log logrus.FieldLogger

	mu       sync.Mutex
	listener *pq.Listener
	stop     chan struct{}
	nextID   int
	subs     map[int]*subscription
}

var _ remote.Gateway = (*Gateway)(nil)

// Open connects to the database at dsn
func Open(dsn string, log logrus.FieldLogger) (*Gateway, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	g := New(db, log)
	g.dsn = dsn
	return g, nil
}

// New wraps an existing connection. Subscriptions need Open's dsn.
func New(db *sqlx.DB, log logrus.FieldLogger) *Gateway {
	return &Gateway{
		db:   db,
		log:  log.WithField("component", "postgres"),
		subs: make(map[int]*subscription),
	}
}

func (g *Gateway) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	b := &builder{}
	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	sqlText := fmt.Sprintf("SELECT %s FROM %s", cols, pq.QuoteIdentifier(table))
	sqlText += b.where(q.Filters, q.AnyOf)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = pq.QuoteIdentifier(o.Column) + " " + dir
		}
		sqlText += " ORDER BY " + strings.Join(parts, ", ")
	}
	if q.Limit > 0 {
		sqlText += " LIMIT " + strconv.Itoa(q.Limit)
	}

	return g.query(ctx, "select", table, sqlText, b.args)
}

func (g *Gateway) Insert(ctx context.Context, table string, rows ...remote.Row) ([]remote.Row, error) {
	var out []remote.Row
	for _, r := range rows {
		cols, args := columns(r)
		b := &builder{args: args}
		sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			pq.QuoteIdentifier(table), quoteAll(cols), b.placeholders(len(cols)))
		res, err := g.query(ctx, "insert", table, sqlText, b.args)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (g *Gateway) Update(ctx context.Context, table string, patch remote.Row, filters ...remote.Filter) ([]remote.Row, error) {
	patch = patch.Clone()
	delete(patch, "id")
	cols, args := columns(patch)
	if len(cols) == 0 {
		return g.Select(ctx, table, remote.Query{Filters: filters})
	}
	b := &builder{args: args}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+1)
	}
	sqlText := fmt.Sprintf("UPDATE %s SET %s", pq.QuoteIdentifier(table), strings.Join(sets, ", "))
	sqlText += b.where(filters, nil) + " RETURNING *"
	return g.query(ctx, "update", table, sqlText, b.args)
}

func (g *Gateway) Delete(ctx context.Context, table string, filters ...remote.Filter) error {
	b := &builder{}
	sqlText := "DELETE FROM " + pq.QuoteIdentifier(table) + b.where(filters, nil)
	if _, err := g.db.ExecContext(ctx, sqlText, b.args...); err != nil {
		return classify("delete", table, err)
	}
	return nil
}

func (g *Gateway) Upsert(ctx context.Context, table string, rows []remote.Row, conflictKey string) ([]remote.Row, error) {
	if conflictKey == "" {
		conflictKey = "id"
	}
	var out []remote.Row
	for _, r := range rows {
		cols, args := columns(r)
		b := &builder{args: args}
		var sets []string
		for _, c := range cols {
			if c == conflictKey {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pq.QuoteIdentifier(c), pq.QuoteIdentifier(c)))
		}
		action := "DO NOTHING"
		if len(sets) > 0 {
			action = "DO UPDATE SET " + strings.Join(sets, ", ")
		}
		sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s RETURNING *",
			pq.QuoteIdentifier(table), quoteAll(cols), b.placeholders(len(cols)),
			pq.QuoteIdentifier(conflictKey), action)
		res, err := g.query(ctx, "upsert", table, sqlText, b.args)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (g *Gateway) query(ctx context.Context, op, table, sqlText string, args []any) ([]remote.Row, error) {
	rows, err := g.db.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, classify(op, table, err)
	}
	defer rows.Close()

	var out []remote.Row
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, classify(op, table, err)
		}
		out = append(out, decodeRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, table, err)
	}
	return out, nil
}

// GetSession always reports no session
func (g *Gateway) GetSession(context.Context) (*remote.Session, error) { return nil, nil }

func (g *Gateway) SignIn(context.Context, string, string) (*remote.Session, error) {
	return nil, &remote.Error{Op: "signin", Table: "auth", Err: remote.ErrAuthUnsupported}
}

func (g *Gateway) SignUp(context.Context, string, string) (*remote.Session, error) {
	return nil, &remote.Error{Op: "signup", Table: "auth", Err: remote.ErrAuthUnsupported}
}

func (g *Gateway) SignOut(context.Context) error { return nil }

func (g *Gateway) Subscribe(_ context.Context, table string, events []remote.EventType, fn func(remote.ChangeEvent)) (remote.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listener == nil {
		if g.dsn == "" {
			return nil, &remote.Error{Op: "subscribe", Table: table, Message: "change feed needs a dsn"}
		}
		l := pq.NewListener(g.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
			if err != nil {
				g.log.WithError(err).Warn("change listener event")
			}
		})
		if err := l.Listen(NotifyChannel); err != nil {
			l.Close()
			return nil, remote.Unavailable("subscribe", table, err)
		}
		g.listener = l
		g.stop = make(chan struct{})
		go g.listen(l, g.stop)
	}

	g.nextID++
	sub := &subscription{id: g.nextID, table: table, events: events, fn: fn}
	g.subs[sub.id] = sub
	return sub, nil
}

func (g *Gateway) Unsubscribe(_ context.Context, sub remote.Subscription) error {
	s, ok := sub.(*subscription)
	if !ok {
		return fmt.Errorf("foreign subscription %T", sub)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subs, s.id)
	if len(g.subs) == 0 {
		g.stopListener()
	}
	return nil
}

func (g *Gateway) listen(l *pq.Listener, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case n, ok := <-l.Notify:
			if !ok {
				return
			}
			// nil after a reconnect
			if n == nil {
				continue
			}
			g.deliver(parseNotification(n.Extra))
		case <-time.After(90 * time.Second):
			go l.Ping()
		}
	}
}

func (g *Gateway) deliver(ev remote.ChangeEvent) {
	g.mu.Lock()
	var targets []func(remote.ChangeEvent)
	ids := make([]int, 0, len(g.subs))
	for id := range g.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := g.subs[id]
		if s.table == ev.Table && remote.Wants(s.events, ev.Type) {
			targets = append(targets, s.fn)
		}
	}
	g.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

func parseNotification(payload string) remote.ChangeEvent {
	res := gjson.Parse(payload)
	ev := remote.ChangeEvent{
		Table: res.Get("table").String(),
		Type:  remote.EventType(res.Get("type").String()),
	}
	if m, ok := res.Get("record").Value().(map[string]any); ok {
		ev.New = m
	}
	if m, ok := res.Get("old_record").Value().(map[string]any); ok {
		ev.Old = m
	}
	return ev
}

func (g *Gateway) stopListener() {
	if g.listener == nil {
		return
	}
	close(g.stop)
	g.listener.Close()
	g.listener = nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	g.subs = make(map[int]*subscription)
	g.stopListener()
	g.mu.Unlock()
	return g.db.Close()
}

type builder struct {
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(parts, ", ")
}

func (b *builder) where(all, anyOf []remote.Filter) string {
	var conds []string
	for _, f := range all {
		conds = append(conds, b.cond(f))
	}
	if len(anyOf) > 0 {
		alts := make([]string, len(anyOf))
		for i, f := range anyOf {
			alts[i] = b.cond(f)
		}
		conds = append(conds, "("+strings.Join(alts, " OR ")+")")
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (b *builder) cond(f remote.Filter) string {
	col := pq.QuoteIdentifier(f.Column)
	switch f.Op {
	case remote.OpNeq:
		return col + " IS DISTINCT FROM " + b.bind(f.Value)
	case remote.OpIn:
		vals := make([]string, 0, len(f.Values()))
		for _, v := range f.Values() {
			vals = append(vals, remote.Text(v))
		}
		return col + "::text = ANY(" + b.bind(pq.Array(vals)) + ")"
	case remote.OpILike:
		return col + " ILIKE " + b.bind(f.Value)
	case remote.OpGt:
		return col + " > " + b.bind(f.Value)
	case remote.OpLt:
		return col + " < " + b.bind(f.Value)
	default:
		return col + " = " + b.bind(f.Value)
	}
}

// columns returns the row's columns in a stable order with their values
// encoded for the driver. Maps and slices are stored as JSON.
func columns(r remote.Row) ([]string, []any) {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		switch v := r[c].(type) {
		case map[string]any, []any, remote.Row, []map[string]any:
			data, _ := json.Marshal(v)
			args[i] = string(data)
		default:
			args[i] = v
		}
	}
	return cols, args
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// decodeRow turns driver values into the JSON-shaped values the hosted
// gateway returns. Text and json columns arrive as []byte.
func decodeRow(m map[string]any) remote.Row {
	out := make(remote.Row, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case []byte:
			s := string(t)
			trimmed := strings.TrimSpace(s)
			if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(trimmed) {
				out[k] = gjson.Parse(trimmed).Value()
			} else {
				out[k] = s
			}
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339Nano)
		case int64:
			out[k] = float64(t)
		default:
			out[k] = v
		}
	}
	return out
}

func classify(op, table string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		status := 400
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			status = 503
		case "42":
			if pqErr.Code == "42P01" {
				status = 404
			}
		}
		return remote.StatusError(op, table, status, string(pqErr.Code), pqErr.Message)
	}
	return remote.Unavailable(op, table, err)
}
