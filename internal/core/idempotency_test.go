package core_test

import (
	"TokenLedger/internal/core"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDB struct {
	seen  map[string]bool
	err   error
	calls int
}

func (f *fakeDB) IsDuplicate(requestID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.seen[requestID], nil
}

func TestIdempotencyChecker_LRUFirst(t *testing.T) {
	db := &fakeDB{seen: map[string]bool{}}
	ic := core.NewIdempotencyChecker(8, db, nil)

	ic.MarkProcessed("a")
	dup, tier := ic.IsDuplicate("a")
	assert.True(t, dup)
	assert.Equal(t, "lru", tier)
	assert.Zero(t, db.calls)
}

func TestIdempotencyChecker_FallsBackToDB(t *testing.T) {
	db := &fakeDB{seen: map[string]bool{"old": true}}
	ic := core.NewIdempotencyChecker(8, db, nil)

	dup, tier := ic.IsDuplicate("old")
	assert.True(t, dup)
	assert.Equal(t, "postgres", tier)

	// promoted into the LRU
	dup, tier = ic.IsDuplicate("old")
	assert.True(t, dup)
	assert.Equal(t, "lru", tier)
	assert.Equal(t, 1, db.calls)

	dup, _ = ic.IsDuplicate("new")
	assert.False(t, dup)
}

func TestIdempotencyChecker_DBErrorIsNotDuplicate(t *testing.T) {
	ic := core.NewIdempotencyChecker(8, &fakeDB{err: errors.New("connection refused")}, nil)

	dup, _ := ic.IsDuplicate("x")
	assert.False(t, dup)
}

func TestIdempotencyChecker_Evicts(t *testing.T) {
	ic := core.NewIdempotencyChecker(2, nil, nil)
	ic.Warm([]string{"a", "b", "c"})

	assert.Equal(t, 2, ic.Len())
	assert.Equal(t, []string{"b", "c"}, ic.Keys())
	dup, _ := ic.IsDuplicate("a")
	assert.False(t, dup)
}
