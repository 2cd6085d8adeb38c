package ports

import "errors"

var (
	ErrWorldUnavailable  = errors.New("world unavailable")
	ErrJournalNotEnabled = errors.New("weather journal not configured")
)
