package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store implementations when a row is absent.
var ErrNotFound = errors.New("record not found")

// ErrUnsupported is returned when an optional server-side procedure is not
// installed on the backing database.
var ErrUnsupported = errors.New("server procedure not available")

// ErrArchived is returned when a write is attempted against an archived
// service file.
var ErrArchived = errors.New("service file is archived")

// ErrTrayNumberTaken is returned when a tray number is already held by a
// live tray of another service file.
var ErrTrayNumberTaken = errors.New("tray number already in use")

// ConfigurationError means the catalog data is broken (an instrument with
// no resolvable department). It aborts the save and must be fixed in the
// catalog, not retried.
type ConfigurationError struct {
	InstrumentID uint
	Detail       string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: instrument %d: %s", e.InstrumentID, e.Detail)
}

// Warning is a non-fatal condition surfaced to the operator; the save
// continues past it.
type Warning struct {
	TrayNumber string `json:"trayNumber"`
	Reason     string `json:"reason"`
}

func (w Warning) String() string {
	if w.TrayNumber == "" {
		return fmt.Sprintf("tray (unnumbered): %s", w.Reason)
	}
	return fmt.Sprintf("tray %q: %s", w.TrayNumber, w.Reason)
}
