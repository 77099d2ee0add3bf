package services

import (
	"errors"
	"io"
	"testing"
	"time"

	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/remote"
	"portfolio-hub/internal/remote/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	fixedNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errOffline = errors.New("connection refused")
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	svc *DataService
	gw  *memory.Gateway
	bus *broadcast.Bus
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	gw := memory.New()
	bus := broadcast.NewBus()
	o := Options{
		Gateway:    gw,
		Cache:      cache.New(cache.NewMemoryBackend(), bus, quietLogger()),
		Logger:     quietLogger(),
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Tokens:     NewTokenService("test-secret", time.Hour),
		AdminEmail: "admin@example.com",
		Now:        func() time.Time { return fixedNow },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &fixture{svc: NewDataService(o), gw: gw, bus: bus}
}

// storageEvents counts cache broadcasts until the returned stop is called
func (f *fixture) storageEvents() (*[]broadcast.Event, func()) {
	var events []broadcast.Event
	cancel := f.bus.Subscribe(func(ev broadcast.Event) { events = append(events, ev) }, broadcast.TopicStorage)
	return &events, cancel
}

func rowsWhere(rows []remote.Row, column string, value any) []remote.Row {
	var out []remote.Row
	for _, r := range rows {
		if remote.Text(r[column]) == remote.Text(value) {
			out = append(out, r)
		}
	}
	return out
}
