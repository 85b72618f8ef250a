package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("failed to advance order: %w", NotAuthorized("no permission"))

	assert.Equal(t, KindNotAuthorized, KindOf(wrapped))
	assert.Equal(t, KindServer, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", AlreadyArchived("PED-2026-0001 ya está en el historial"))

	assert.True(t, errors.Is(err, AlreadyArchived("")))
	assert.False(t, errors.Is(err, NotFound("")))
	assert.True(t, IsKind(err, KindAlreadyArchived))
}

func TestStatusFor(t *testing.T) {
	cases := map[Kind]int{
		KindNotAuthorized:     http.StatusForbidden,
		KindInvalidTransition: http.StatusConflict,
		KindNotEditable:       http.StatusConflict,
		KindAlreadyArchived:   http.StatusConflict,
		KindValidation:        http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindSessionExpired:    http.StatusUnauthorized,
		KindServer:            http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, StatusFor(kind), kind)
		assert.Equal(t, kind, ParseKind(string(kind)))
	}
	assert.Equal(t, KindServer, ParseKind("whatever"))
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := Validation("datos inválidos")
	withDetails := base.WithDetails(Detail{Path: "cliente", Info: "cliente is required"})

	assert.Empty(t, base.Details)
	assert.Len(t, withDetails.Details, 1)
	assert.Equal(t, "datos inválidos", withDetails.Error())
}
