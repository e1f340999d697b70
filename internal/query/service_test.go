package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_DefaultsAndCursor(t *testing.T) {
	q, args := page("SELECT 1 FROM t WHERE a = $1", []interface{}{"x"}, "sequence", 0, nil)
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 ORDER BY sequence DESC LIMIT $2", q)
	assert.Equal(t, []interface{}{"x", DefaultLimit}, args)

	before := int64(42)
	q, args = page("SELECT 1 FROM t WHERE a = $1", []interface{}{"x"}, "sequence", 5, &before)
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND sequence < $2 ORDER BY sequence DESC LIMIT $3", q)
	assert.Equal(t, []interface{}{"x", int64(42), 5}, args)
}
