package remote

import (
	"fmt"
	"net/http"

	"github.com/aretw0/sapling/pkg/domain"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("classifier returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("classifier returned %d: %s", e.Code, e.Body)
}

// Is maps service-side failures onto the domain errors callers check for.
func (e *StatusError) Is(target error) bool {
	switch target {
	case domain.ErrClassifierUnavailable:
		return e.Code >= 500
	case domain.ErrNoModel:
		return e.Code == http.StatusConflict
	}
	return false
}
