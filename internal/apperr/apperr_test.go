package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(NotFound, "plan %s not found", "abc")
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, "plan abc not found", DetailOf(err))
	assert.Equal(t, "NotFound: plan abc not found", err.Error())

	wrapped := fmt.Errorf("failed to load plan: %w", err)
	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(nil, NotFound))

	plain := errors.New("disk full")
	assert.Equal(t, Internal, KindOf(plain))
	assert.Equal(t, "disk full", DetailOf(plain))
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(UpstreamUnavailable, cause, "embedding failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "UpstreamUnavailable: embedding failed: connection refused", err.Error())

	err = Wrap(InvalidInput, cause, "bad payload: %v", cause)
	assert.Equal(t, "InvalidInput: bad payload: connection refused", err.Error())
}

func TestOutermostKindWins(t *testing.T) {
	inner := New(InvalidReference, "week 9 out of range")
	outer := Wrap(GenerationFailed, inner, "adapt failed")
	assert.Equal(t, GenerationFailed, KindOf(outer))
	assert.Equal(t, "adapt failed", DetailOf(outer))
}
