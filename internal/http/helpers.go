package http

import (
	"strings"

	"cambi/internal/core"
	"cambi/internal/sheets"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// rowFor converts an entry to its table row, formatted like the export.
func rowFor(e core.Entry) entryRow {
	cells := sheets.Row(e)
	return entryRow{
		ID:          cells[0],
		Date:        cells[1],
		Description: cells[2],
		Primary:     cells[3],
		Secondary:   cells[4],
	}
}
