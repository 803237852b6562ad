package httpapi

import (
	"errors"
	"net/http"

	"evently/internal/domain"
)

// statusFor maps an engine domain.Error's Kind to the HTTP status code the
// teacher's controllers express with string-matched err.Error() switches;
// here the mapping is driven by the typed Kind instead; so it holds for
// every sentinel without enumerating each one by hand.
func statusFor(err error) int {
	var e *domain.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBusinessState, domain.KindInventory:
		return http.StatusConflict
	case domain.KindConcurrency:
		return http.StatusConflict
	case domain.KindExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	var e *domain.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
