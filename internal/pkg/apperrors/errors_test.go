package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThatKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("loading device: %w", NotFound("Device %s not found", "abc"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "loading device: Device abc not found", err.Error())
}

func TestThatPlainErrorsAreInternal(t *testing.T) {
	kind := KindOf(errors.New("connection reset"))

	assert.Equal(t, KindInternal, kind)
	assert.Equal(t, "INTERNAL_ERROR", kind.Code())
	assert.Equal(t, http.StatusInternalServerError, kind.HTTPStatus())
}

func TestKindMappings(t *testing.T) {
	cases := []struct {
		err    *Error
		code   string
		status int
	}{
		{Validation("bad"), "VALIDATION_ERROR", http.StatusBadRequest},
		{NotFound("gone"), "NOT_FOUND", http.StatusNotFound},
		{Duplicate("twice"), "DUPLICATE", http.StatusConflict},
		{Unauthorized("who"), "UNAUTHORIZED", http.StatusUnauthorized},
		{Forbidden("mine"), "FORBIDDEN", http.StatusForbidden},
	}

	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Kind.Code())
		assert.Equal(t, c.status, c.err.Kind.HTTPStatus())
	}
}

func TestThatDetailsAccumulate(t *testing.T) {
	err := Validation("Sensor reading out of range").
		WithDetail("min", 0).
		WithDetail("max", 999.99)

	assert.Len(t, err.Details, 2)
	assert.Equal(t, 999.99, err.Details["max"])
}
