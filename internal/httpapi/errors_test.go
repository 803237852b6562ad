package httpapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"evently/internal/domain"
)

func TestStatusForMapsEveryKind(t *testing.T) {
	cases := []struct {
		err  *domain.Error
		want int
	}{
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrEventNotFound, http.StatusNotFound},
		{domain.ErrEventInactive, http.StatusConflict},
		{domain.ErrInsufficientCapacity, http.StatusConflict},
		{domain.ErrStaleVersion, http.StatusConflict},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{domain.ErrInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, statusFor(c.err), c.err.Code)
	}
}

func TestStatusForNonDomainErrorDefaultsTo500(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestCodeForReturnsDomainErrorCode(t *testing.T) {
	require.Equal(t, domain.ErrEventNotFound.Code, codeFor(domain.ErrEventNotFound))
	require.Equal(t, "INTERNAL", codeFor(errors.New("boom")))
}
