package domain

import (
    "errors"
    "fmt"
    "net/http"
)

var (
    // ErrBusy is returned when a settings write finds the per-user lock held.
    // The store never queues or retries; the caller surfaces a try-again condition.
    ErrBusy = errors.New("settings: busy")

    // ErrAuthRequired is terminal: the retry protocol is exhausted and the
    // route layer must redirect to re-authentication.
    ErrAuthRequired = errors.New("authentication required")
)

// StatusError carries a non-2xx upstream response unchanged.
type StatusError struct {
    Code int
    Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("upstream status=%d body=%s", e.Code, e.Body) }

// IsUnauthorized reports whether err is an upstream 401.
func IsUnauthorized(err error) bool {
    var se *StatusError
    return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}
