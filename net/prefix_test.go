package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixContains(t *testing.T) {
	tests := []struct {
		name     string
		a        Prefix
		b        Prefix
		expected bool
	}{
		{
			name:     "exact match",
			a:        NewPfx(0x0a000000, 8),
			b:        NewPfx(0x0a000000, 8),
			expected: true,
		},
		{
			name:     "more specific subnet",
			a:        NewPfx(0x0a000000, 8),
			b:        NewPfx(0x0a010000, 16),
			expected: true,
		},
		{
			name:     "disjoint",
			a:        NewPfx(0x0a000000, 8),
			b:        NewPfx(0x0b000000, 8),
			expected: false,
		},
		{
			name:     "less specific is not contained",
			a:        NewPfx(0x0a010000, 16),
			b:        NewPfx(0x0a000000, 8),
			expected: false,
		},
		{
			name:     "default route contains everything",
			a:        NewPfx(0, 0),
			b:        NewPfx(0xffffffff, 32),
			expected: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.a.Contains(test.b))
		})
	}
}

func TestPrefixEqual(t *testing.T) {
	assert.True(t, NewPfx(0x0a000000, 8).Equal(NewPfx(0x0a000000, 8)))
	assert.False(t, NewPfx(0x0a000000, 8).Equal(NewPfx(0x0a000000, 16)))
}

func TestPrefixMoreSpecific(t *testing.T) {
	a := NewPfx(0x0a000000, 8)
	b := NewPfx(0x0a010000, 16)
	assert.True(t, b.MoreSpecific(a))
	assert.False(t, a.MoreSpecific(b))
	assert.False(t, a.MoreSpecific(a))
}

func TestPrefixIncludes(t *testing.T) {
	pfx := NewPfx(0x0a000000, 8)
	assert.True(t, pfx.Includes(0x0a0102ff))
	assert.False(t, pfx.Includes(0x0b010203))
}

func TestPrefixLength0MatchesEverything(t *testing.T) {
	pfx := NewPfx(0, 0)
	assert.True(t, pfx.Includes(0xffffffff))
	assert.True(t, pfx.Includes(0))
}

func TestPrefixLength32MatchesExactlyOne(t *testing.T) {
	pfx := NewPfx(0x0a000001, 32)
	assert.True(t, pfx.Includes(0x0a000001))
	assert.False(t, pfx.Includes(0x0a000002))
}

func TestPrefixGetSupernet(t *testing.T) {
	a := NewPfx(0x0a000000, 8)  // 10.0.0.0/8
	b := NewPfx(0x0b000000, 8)  // 11.0.0.0/8
	super := a.GetSupernet(b)
	assert.LessOrEqual(t, super.Pfxlen(), uint8(7))
	assert.True(t, super.Contains(a))
	assert.True(t, super.Contains(b))
}

func TestPrefixString(t *testing.T) {
	assert.Equal(t, "10.0.0.0/8", NewPfx(0x0a000000, 8).String())
}
