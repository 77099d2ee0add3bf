// Package memory is an in-process remote store used for local development
// and tests. Failures can be injected per gateway or per table.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio-hub/internal/remote"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Function is a server-side function hosted by the gateway
type Function func(body []byte) (remote.Row, error)

type account struct {
	id   string
	hash []byte
}

type subscription struct {
	id     int
	table  string
	events []remote.EventType
	fn     func(remote.ChangeEvent)
}

func (s *subscription) Table() string { return s.table }

// Gateway implements remote.Gateway in memory
type Gateway struct {
	mu         sync.Mutex
	tables     map[string][]remote.Row
	subs       map[int]*subscription
	nextSub    int
	accounts   map[string]account
	session    *remote.Session
	functions  map[string]Function
	failure    error
	tableFails map[string]error
	now        func() time.Time
}

var _ remote.Gateway = (*Gateway)(nil)
var _ remote.Invoker = (*Gateway)(nil)

// New creates an empty gateway
func New() *Gateway {
	return &Gateway{
		tables:     make(map[string][]remote.Row),
		subs:       make(map[int]*subscription),
		accounts:   make(map[string]account),
		functions:  make(map[string]Function),
		tableFails: make(map[string]error),
		now:        time.Now,
	}
}

// SetFailure makes every call return err until it is cleared with nil
func (g *Gateway) SetFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failure = err
}

// SetTableFailure makes calls against one table return err
func (g *Gateway) SetTableFailure(table string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.tableFails, table)
		return
	}
	g.tableFails[table] = err
}

// Seed appends rows to a table without notifying subscribers
func (g *Gateway) Seed(table string, rows ...remote.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		g.tables[table] = append(g.tables[table], normalizeJSON(r))
	}
}

// Rows returns a copy of a table
func (g *Gateway) Rows(table string) []remote.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]remote.Row, 0, len(g.tables[table]))
	for _, r := range g.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

// RegisterFunction hosts fn under name for Invoke
func (g *Gateway) RegisterFunction(name string, fn Function) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.functions[name] = fn
}

func (g *Gateway) check(op, table string) error {
	if g.failure != nil {
		return remote.Unavailable(op, table, g.failure)
	}
	if err, ok := g.tableFails[table]; ok {
		return remote.Unavailable(op, table, err)
	}
	return nil
}

func (g *Gateway) Select(_ context.Context, table string, q remote.Query) ([]remote.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check("select", table); err != nil {
		return nil, err
	}

	var out []remote.Row
	for _, r := range g.tables[table] {
		if remote.MatchQuery(r, q) {
			out = append(out, project(r, q.Columns))
		}
	}
	sortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (g *Gateway) Insert(_ context.Context, table string, rows ...remote.Row) ([]remote.Row, error) {
	g.mu.Lock()
	if err := g.check("insert", table); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		row := g.stamp(r)
		g.tables[table] = append(g.tables[table], row)
		out = append(out, row.Clone())
	}
	events := g.collect(table, remote.EventInsert, out, nil)
	g.mu.Unlock()

	fire(events)
	return out, nil
}

func (g *Gateway) Update(_ context.Context, table string, patch remote.Row, filters ...remote.Filter) ([]remote.Row, error) {
	g.mu.Lock()
	if err := g.check("update", table); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	patch = normalizeJSON(patch)
	q := remote.Query{Filters: filters}
	var updated, old []remote.Row
	for _, r := range g.tables[table] {
		if !remote.MatchQuery(r, q) {
			continue
		}
		old = append(old, r.Clone())
		for k, v := range patch {
			if k == "id" {
				continue
			}
			r[k] = v
		}
		updated = append(updated, r.Clone())
	}
	events := g.collect(table, remote.EventUpdate, updated, old)
	g.mu.Unlock()

	fire(events)
	return updated, nil
}

func (g *Gateway) Delete(_ context.Context, table string, filters ...remote.Filter) error {
	g.mu.Lock()
	if err := g.check("delete", table); err != nil {
		g.mu.Unlock()
		return err
	}
	q := remote.Query{Filters: filters}
	kept := g.tables[table][:0]
	var removed []remote.Row
	for _, r := range g.tables[table] {
		if remote.MatchQuery(r, q) {
			removed = append(removed, r.Clone())
			continue
		}
		kept = append(kept, r)
	}
	g.tables[table] = kept
	events := g.collect(table, remote.EventDelete, nil, removed)
	g.mu.Unlock()

	fire(events)
	return nil
}

func (g *Gateway) Upsert(ctx context.Context, table string, rows []remote.Row, conflictKey string) ([]remote.Row, error) {
	if conflictKey == "" {
		conflictKey = "id"
	}
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		key, ok := r[conflictKey]
		if !ok {
			inserted, err := g.Insert(ctx, table, r)
			if err != nil {
				return nil, err
			}
			out = append(out, inserted...)
			continue
		}

		existing, err := g.Select(ctx, table, remote.Query{Filters: []remote.Filter{remote.Eq(conflictKey, key)}, Limit: 1})
		if err != nil {
			return nil, err
		}
		var res []remote.Row
		if len(existing) == 0 {
			res, err = g.Insert(ctx, table, r)
		} else {
			res, err = g.Update(ctx, table, r, remote.Eq(conflictKey, key))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (g *Gateway) Subscribe(_ context.Context, table string, events []remote.EventType, fn func(remote.ChangeEvent)) (remote.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextSub++
	sub := &subscription{id: g.nextSub, table: table, events: events, fn: fn}
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
	return nil
}

// Subscribers returns the number of open subscriptions
func (g *Gateway) Subscribers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// AddAccount registers a password account without signing in
func (g *Gateway) AddAccount(email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[strings.ToLower(email)] = account{id: id, hash: hash}
	return id, nil
}

func (g *Gateway) GetSession(_ context.Context) (*remote.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failure != nil {
		return nil, remote.Unavailable("session", "auth", g.failure)
	}
	if g.session == nil {
		return nil, nil
	}
	s := *g.session
	return &s, nil
}

func (g *Gateway) SignIn(_ context.Context, email, password string) (*remote.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failure != nil {
		return nil, remote.Unavailable("signin", "auth", g.failure)
	}
	acc, ok := g.accounts[strings.ToLower(email)]
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, remote.StatusError("signin", "auth", 400, "invalid_grant", "Invalid login credentials")
	}
	return g.startSession(acc.id, email), nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string) (*remote.Session, error) {
	g.mu.Lock()
	if g.failure != nil {
		g.mu.Unlock()
		return nil, remote.Unavailable("signup", "auth", g.failure)
	}
	_, exists := g.accounts[strings.ToLower(email)]
	g.mu.Unlock()
	if exists {
		return nil, remote.StatusError("signup", "auth", 422, "user_already_exists", "User already registered")
	}

	id, err := g.AddAccount(email, password)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startSession(id, email), nil
}

func (g *Gateway) SignOut(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = nil
	return nil
}

func (g *Gateway) startSession(id, email string) *remote.Session {
	g.session = &remote.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    g.now().Add(time.Hour),
		User:         remote.User{ID: id, Email: strings.ToLower(email)},
	}
	s := *g.session
	return &s
}

func (g *Gateway) Invoke(_ context.Context, function string, body any) (remote.Row, error) {
	g.mu.Lock()
	fn, ok := g.functions[function]
	err := g.check("invoke", function)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, remote.StatusError("invoke", function, 404, "", "function not found")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return fn(data)
}

func (g *Gateway) Close() error { return nil }

// stamp assigns the server-side defaults of a new row
func (g *Gateway) stamp(r remote.Row) remote.Row {
	row := normalizeJSON(r)
	if id, ok := row["id"]; !ok || remote.Text(id) == "" {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = g.now().UTC().Format(time.RFC3339Nano)
	}
	return row
}

type pending struct {
	fn func(remote.ChangeEvent)
	ev remote.ChangeEvent
}

func (g *Gateway) collect(table string, t remote.EventType, rows, old []remote.Row) []pending {
	var out []pending
	n := len(rows)
	if len(old) > n {
		n = len(old)
	}
	for _, s := range g.subs {
		if s.table != table || !remote.Wants(s.events, t) {
			continue
		}
		for i := 0; i < n; i++ {
			ev := remote.ChangeEvent{Table: table, Type: t}
			if i < len(rows) {
				ev.New = rows[i]
			}
			if i < len(old) {
				ev.Old = old[i]
			}
			out = append(out, pending{fn: s.fn, ev: ev})
		}
	}
	return out
}

func fire(events []pending) {
	for _, p := range events {
		p.fn(p.ev)
	}
}

func project(r remote.Row, columns []string) remote.Row {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return r.Clone()
	}
	out := make(remote.Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func sortRows(rows []remote.Row, order []remote.Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			a, b := remote.Text(rows[i][o.Column]), remote.Text(rows[j][o.Column])
			if a == b {
				continue
			}
			if o.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
}

// normalizeJSON round-trips a row through JSON so stored values have the
// same types a network gateway would decode.
func normalizeJSON(r remote.Row) remote.Row {
	data, err := json.Marshal(r)
	if err != nil {
		return r.Clone()
	}
	out := make(remote.Row, len(r))
	if err := json.Unmarshal(data, &out); err != nil {
		return r.Clone()
	}
	return out
}
