package support

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultPageLimit, 0},
		{-5, -1, DefaultPageLimit, 0},
		{1, 40, 1, 40},
		{500, 0, MaxPageLimit, 0},
	}
	for _, tt := range tests {
		limit, offset := ClampPage(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}
