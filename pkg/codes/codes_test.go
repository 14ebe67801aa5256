package codes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIgnoresStringCopyOfCodedError(t *testing.T) {
	base := New(NotFound, "task 42 not found")
	wrapped := errors.New("wrapping: " + base.Error())
	assert.False(t, Is(wrapped, NotFound))
	assert.True(t, Is(base, NotFound))
}

func TestOfExtractsCode(t *testing.T) {
	err := New(ClaimConflict, "already held")
	extracted, ok := Of(err)
	assert.True(t, ok)
	assert.Equal(t, ClaimConflict, extracted.Code)
}

func TestOfFalseForPlainError(t *testing.T) {
	_, ok := Of(errors.New("plain"))
	assert.False(t, ok)
}

func TestInternalfWrapsAsInternalCode(t *testing.T) {
	err := Internalf(errors.New("bolt is on fire"))
	assert.Equal(t, Internal, err.Code)
	assert.Equal(t, "bolt is on fire", err.Error())
}
