package types

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestNewPaginationResult(t *testing.T) {
	res := NewPaginationResult([]int{1, 2}, 5, 2, 2)
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNextPage)
	assert.True(t, res.HasPreviousPage)

	empty := NewPaginationResult[int](nil, 0, 1, 10)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNextPage)
	assert.False(t, empty.HasPreviousPage)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("email")
	assert.NoError(t, err)
	assert.Equal(t, CategoryEmail, c)

	_, err = ParseCategory("sms")
	assert.Error(t, err)
}
