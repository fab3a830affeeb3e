package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tray labels carry a QR payload of the form TRAY/<id>/<display>. Bench
// scanners also read the printed number directly, so a bare tray number is
// accepted as a fallback.

const trayCodePrefix = "TRAY"

var ErrInvalidScanCode = errors.New("invalid scan code")

// TrayScan is the decoded content of a scanned tray label.
type TrayScan struct {
	// TrayID is the row id encoded in the QR payload, zero for a bare
	// number scan.
	TrayID uint
	// Number is the printed tray number, empty for unnumbered trays.
	Number string
}

// EncodeTrayCode builds the QR payload printed on a tray label.
func EncodeTrayCode(trayID uint, display string) string {
	return fmt.Sprintf("%s/%d/%s", trayCodePrefix, trayID, display)
}

// DecodeTrayCode parses a scanned code. QR payloads resolve by row id;
// anything else is treated as a hand-typed or scanned tray number.
func DecodeTrayCode(code string) (*TrayScan, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidScanCode
	}

	parts := strings.SplitN(code, "/", 3)
	if len(parts) < 2 || !strings.EqualFold(parts[0], trayCodePrefix) {
		return &TrayScan{Number: code}, nil
	}

	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: bad tray id %q", ErrInvalidScanCode, parts[1])
	}

	scan := &TrayScan{TrayID: uint(id)}
	if len(parts) == 3 {
		display := strings.TrimSpace(parts[2])
		// Unnumbered trays print their row id as T<id>; that is not a
		// tray number.
		if display != fmt.Sprintf("T%d", id) {
			scan.Number = display
		}
	}
	return scan, nil
}
