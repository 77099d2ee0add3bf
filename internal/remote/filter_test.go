package remote

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Match(t *testing.T) {
	row := Row{"id": float64(7), "email": "Client@Example.com", "stage": "dev", "amount": 120.5}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq number as text", Eq("id", "7"), true},
		{"eq mismatch", Eq("stage", "qa"), false},
		{"neq", Neq("stage", "qa"), true},
		{"neq missing column", Neq("owner", "x"), true},
		{"in", In("stage", "analysis", "dev"), true},
		{"in strings", Filter{Column: "stage", Op: OpIn, Value: []string{"qa"}}, false},
		{"ilike", ILike("email", "%@example.com"), true},
		{"ilike middle", ILike("email", "client%example%"), true},
		{"ilike exact", ILike("email", "client@example.com"), true},
		{"ilike miss", ILike("email", "%@other.com"), false},
		{"gt numeric", Gt("amount", 100), true},
		{"lt numeric", Lt("amount", 100), false},
		{"missing column", Eq("owner", "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(row))
		})
	}
}

func TestMatchQuery_AnyOf(t *testing.T) {
	q := Query{
		Filters: []Filter{Neq("status", "draft")},
		AnyOf:   []Filter{Eq("user_email", "a@b.com"), Eq("user_id", "u1")},
	}

	assert.True(t, MatchQuery(Row{"user_email": "a@b.com", "status": "pending"}, q))
	assert.True(t, MatchQuery(Row{"user_id": "u1", "status": "pending"}, q))
	assert.False(t, MatchQuery(Row{"user_email": "x@b.com", "status": "pending"}, q))
	assert.False(t, MatchQuery(Row{"user_email": "a@b.com", "status": "draft"}, q))
}

func TestError_Classification(t *testing.T) {
	assert.ErrorIs(t, StatusError("select", "projects", 503, "", "down"), ErrUnavailable)
	assert.ErrorIs(t, StatusError("select", "nope", 404, "", "missing"), ErrNotFound)
	assert.ErrorIs(t, StatusError("select", "projects", 406, "PGRST116", "no rows"), ErrNotFound)

	bad := StatusError("insert", "leads", 409, "23505", "duplicate key")
	assert.False(t, errors.Is(bad, ErrUnavailable))
	assert.Contains(t, bad.Error(), "status 409")

	dial := Unavailable("select", "skills", errors.New("connection refused"))
	assert.ErrorIs(t, dial, ErrUnavailable)
	assert.Contains(t, dial.Error(), "connection refused")
}
