package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePageSize(t *testing.T) {
	assert.Equal(t, defaultPageSize, parsePageSize(""))
	assert.Equal(t, defaultPageSize, parsePageSize("not-a-number"))
	assert.Equal(t, defaultPageSize, parsePageSize("-5"))
	assert.Equal(t, defaultPageSize, parsePageSize("0"))
	assert.Equal(t, 25, parsePageSize("25"))
	assert.Equal(t, maxPageSize, parsePageSize("200"))
	assert.Equal(t, maxPageSize, parsePageSize("100000"))
}
