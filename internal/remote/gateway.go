// Package remote defines the contract of the hosted relational store the
// data service talks to: table queries and mutations, row change feeds and
// password sessions.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Row is a single record as the remote store returns it
type Row map[string]any

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Query selects rows from a table. All Filters must match; when AnyOf is
// set at least one of its filters must match as well.
type Query struct {
	Columns []string
	Filters []Filter
	AnyOf   []Filter
	Order   []Order
	Limit   int
}

// Order sorts a query result
type Order struct {
	Column string
	Desc   bool
}

// EventType is the kind of row change a subscription receives
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// ChangeEvent is pushed to subscribers when a row changes
type ChangeEvent struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	New   Row       `json:"new,omitempty"`
	Old   Row       `json:"old,omitempty"`
}

// Wants reports whether a subscription for events accepts t
func Wants(events []EventType, t EventType) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == EventAll || e == t {
			return true
		}
	}
	return false
}

// Subscription is the handle returned by Subscribe
type Subscription interface {
	Table() string
}

// User is the account behind a session
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated remote session
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Store issues table queries and mutations
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	Update(ctx context.Context, table string, patch Row, filters ...Filter) ([]Row, error)
	Delete(ctx context.Context, table string, filters ...Filter) error
	Upsert(ctx context.Context, table string, rows []Row, conflictKey string) ([]Row, error)
}

// Realtime opens row change feeds. Callbacks run on a gateway goroutine.
type Realtime interface {
	Subscribe(ctx context.Context, table string, events []EventType, fn func(ChangeEvent)) (Subscription, error)
	Unsubscribe(ctx context.Context, sub Subscription) error
}

// Auth manages the password session of the process
type Auth interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
}

// Gateway is the full remote store surface
type Gateway interface {
	Store
	Realtime
	Auth
	Close() error
}

// Invoker is implemented by gateways that host server-side functions
type Invoker interface {
	Invoke(ctx context.Context, function string, body any) (Row, error)
}

var (
	// ErrUnavailable marks transport failures and server-side errors.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrNotFound marks a missing table, row or function.
	ErrNotFound = errors.New("remote record not found")
	// ErrAuthUnsupported is returned by gateways without password auth.
	ErrAuthUnsupported = errors.New("remote auth not supported")
)

// Error describes a failed gateway call
type Error struct {
	Op      string
	Table   string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("remote %s %s: status %d: %s", e.Op, e.Table, e.Status, msg)
	}
	return fmt.Sprintf("remote %s %s: %s", e.Op, e.Table, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError classifies an HTTP status into a gateway error
func StatusError(op, table string, status int, code, message string) *Error {
	e := &Error{Op: op, Table: table, Status: status, Code: code, Message: message}
	switch {
	case status == 404 || code == "PGRST116":
		e.Err = ErrNotFound
	case status >= 500 || status == 429:
		e.Err = ErrUnavailable
	}
	return e
}

// Unavailable wraps a transport failure
func Unavailable(op, table string, err error) *Error {
	return &Error{Op: op, Table: table, Message: err.Error(), Err: errors.Join(ErrUnavailable, err)}
}
