package dataset

import (
	"motorisk/internal/feature"
	"motorisk/internal/risk"
)

type Repository interface {
	Append(listing string, row feature.Row, report risk.Report)
	Close() error
}

// Nop discards everything. It is used when no dataset file is configured.
type Nop struct{}

func (Nop) Append(string, feature.Row, risk.Report) {}

func (Nop) Close() error { return nil }
