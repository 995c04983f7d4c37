package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"defaults", Page{}, Page{Limit: DefaultPageSize}},
		{"negative offset", Page{Offset: -5, Limit: 10}, Page{Limit: 10}},
		{"over max", Page{Offset: 3, Limit: MaxPageSize + 1}, Page{Offset: 3, Limit: MaxPageSize}},
		{"in range", Page{Offset: 20, Limit: 50}, Page{Offset: 20, Limit: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clamp())
		})
	}
}

func TestPageNext(t *testing.T) {
	next, ok := Page{Offset: 10, Limit: 10}.Next(10)
	assert.True(t, ok)
	assert.Equal(t, Page{Offset: 20, Limit: 10}, next)

	_, ok = Page{Offset: 10, Limit: 10}.Next(9)
	assert.False(t, ok)

	_, ok = Page{}.Next(100)
	assert.False(t, ok, "an unbounded page has no successor")
}

func TestPageToken(t *testing.T) {
	assert.Empty(t, EncodePageToken(0))
	assert.Equal(t, 150, DecodePageToken(EncodePageToken(150)))
	assert.Zero(t, DecodePageToken(""))
	assert.Zero(t, DecodePageToken("not-base64!"))
}
