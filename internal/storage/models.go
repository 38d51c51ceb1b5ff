package storage

import (
	"strings"
	"time"
)

// AlertRecord captures one emitted side-change alert for auditing.
type AlertRecord struct {
	Symbol    string    `json:"symbol"`
	Signal    string    `json:"signal"`
	Price     float64   `json:"price"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeKey turns a published currency unit into a storage-safe key:
// letters and digits only, upper-cased, so "JPY(100)" becomes "JPY100".
// Series data is keyed this way in every backend, which keeps file names
// portable and redis keys glob-friendly. Latch state keeps the published
// unit as its key so state files stay readable as-is.
func NormalizeKey(symbol string) string {
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		}
	}
	return b.String()
}
