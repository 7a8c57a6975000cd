package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasNil(t *testing.T) {
	assert.False(t, HasNil())
	assert.True(t, HasNil(nil))

	var p *int
	assert.True(t, HasNil(p))
	var s []string
	assert.True(t, HasNil(s))
	var m map[string]int
	assert.True(t, HasNil(m))
	var f func()
	assert.True(t, HasNil(f))

	v := 1
	assert.False(t, HasNil(&v, []string{}, map[string]int{}, "x"))
	assert.True(t, HasNil(&v, nil))
}

func TestIsEmpty(t *testing.T) {
	assert.False(t, IsEmpty())
	assert.False(t, IsEmpty("a", "b"))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("a", ""))
}

func TestUnixMills(t *testing.T) {
	ts := time.Unix(12, int64(3*time.Millisecond))
	assert.Equal(t, int64(12003), UnixMills(ts))
}
