// Package services is the data service: per-entity reads served from the
// local cache, remote-first mutations with local fallback, the pending write
// queue and the multi-step flows built on top of them.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when the addressed record exists neither in
	// the cache nor in the remote store.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCredentials covers every login failure, including an
	// unreachable remote store.
	ErrInvalidCredentials = errors.New("invalid credentials or connection error")
)

// SyncState tells whether a mutation reached the remote store
type SyncState string

const (
	Synced            SyncState = "synced"
	PendingLocalWrite SyncState = "pending_local_write"
)

// Result is the outcome of a mutation. Err carries the remote failure that
// was recovered locally when State is PendingLocalWrite.
type Result[T any] struct {
	Value T         `json:"value"`
	State SyncState `json:"state"`
	Err   error     `json:"-"`
}

// Pending reports whether the write still waits in the queue
func (r Result[T]) Pending() bool {
	return r.State == PendingLocalWrite
}

func synced[T any](v T) Result[T] {
	return Result[T]{Value: v, State: Synced}
}

func pending[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, State: PendingLocalWrite, Err: err}
}

type actorKey struct{}

// WithActor returns a context whose mutations are attributed to email
func WithActor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorKey{}, email)
}

// ActorFrom returns the acting user's email, or "system"
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return "system"
}

// Options wires a DataService
type Options struct {
	Gateway       remote.Gateway
	Cache         *cache.Cache
	Logger        logrus.FieldLogger
	Metrics       *Metrics
	Notifier      *NotifyService
	Tokens        *TokenService
	AdminEmail    string
	ActivityLimit int
	AlertDays     []int
	ReplayRate    float64
	ReplayBurst   int
	Now           func() time.Time
}

// DataService is the facade the HTTP layer and scheduler share
type DataService struct {
	gw            remote.Gateway
	cache         *cache.Cache
	log           logrus.FieldLogger
	metrics       *Metrics
	notifier      *NotifyService
	tokens        *TokenService
	limiter       *rate.Limiter
	adminEmail    string
	activityLimit int
	alertDays     []int
	now           func() time.Time

	idMu   sync.Mutex
	lastID int64

	// replayMu keeps one queue drain running at a time
	replayMu sync.Mutex

	projects      *collection[models.Project]
	skills        *collection[models.Skill]
	news          *collection[models.NewsItem]
	leads         *collection[models.Lead]
	requests      *collection[models.GeneratedProject]
	messages      *collection[models.Message]
	chat          *collection[models.ProjectMessage]
	contracts     *collection[models.Contract]
	invoices      *collection[models.Invoice]
	notifications *collection[models.Notification]
	domains       *collection[models.Domain]
	transactions  *collection[models.DomainTransaction]
	activities    *collection[models.Activity]
}

// NewDataService creates the data service
func NewDataService(opts Options) *DataService {
	s := &DataService{
		gw:            opts.Gateway,
		cache:         opts.Cache,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		notifier:      opts.Notifier,
		tokens:        opts.Tokens,
		adminEmail:    strings.ToLower(opts.AdminEmail),
		activityLimit: opts.ActivityLimit,
		alertDays:     opts.AlertDays,
		now:           opts.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.activityLimit <= 0 {
		s.activityLimit = 500
	}
	if len(s.alertDays) == 0 {
		s.alertDays = []int{30, 7, 1}
	}
	limit := rate.Inf
	if opts.ReplayRate > 0 {
		limit = rate.Limit(opts.ReplayRate)
	}
	burst := opts.ReplayBurst
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(limit, burst)
	s.registerCollections()
	return s
}

// Cache returns the local cache the service reads from
func (s *DataService) Cache() *cache.Cache {
	return s.cache
}

// Gateway returns the remote store gateway
func (s *DataService) Gateway() remote.Gateway {
	return s.gw
}

// Tokens returns the session token issuer
func (s *DataService) Tokens() *TokenService {
	return s.tokens
}

// AdminEmail is the recipient of admin-addressed notifications
func (s *DataService) AdminEmail(ctx context.Context) string {
	if settings := s.GetSettings(ctx); settings.AdminEmail != "" {
		return strings.ToLower(settings.AdminEmail)
	}
	return s.adminEmail
}

// tempID returns a millisecond timestamp id, bumped so that two ids issued
// in the same millisecond still differ
func (s *DataService) tempID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func (s *DataService) today() string {
	return s.now().UTC().Format("2006-01-02")
}

func (s *DataService) logFor(kind models.Kind, op string) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"kind": kind, "op": op})
}
