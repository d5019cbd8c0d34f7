package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"motorisk/internal/feature"
	"motorisk/internal/model"
	"motorisk/internal/risk"
)

// DefaultClaimColumn is the CSV column holding the seller's price.
const DefaultClaimColumn = "claimed_price"

// FailureMessage is written in the error column of rows that could not be scored.
const FailureMessage = "could not score this listing"

var resultColumns = []string{"predicted_price", "residual", "risk_score", "risk_level", "error"}

// Options tunes a batch run.
type Options struct {
	// Workers — concurrent predictions (at least 1).
	Workers int
	// ClaimColumn — column with the claimed price; DefaultClaimColumn when empty.
	// A missing column means no row has a claim.
	ClaimColumn string
}

// Summary counts what happened in a batch run.
type Summary struct {
	Rows   int                `json:"rows"`
	Failed int                `json:"failed"`
	Levels map[risk.Level]int `json:"levels"`
}

// Run reads listings from r as CSV with a header, scores every row and writes the
// input columns followed by the result columns to w. Blank cells are treated as absent.
// A row the model cannot price gets FailureMessage in the error column; it does not
// stop the run. Malformed CSV does.
func Run(ctx context.Context, r io.Reader, w io.Writer, scorer *risk.Scorer, snapshot *model.Snapshot, opts Options) (Summary, error) {
	summary := Summary{Levels: map[risk.Level]int{}}
	if snapshot == nil {
		return summary, errors.New("batch: no model loaded")
	}

	claimColumn := opts.ClaimColumn
	if claimColumn == "" {
		claimColumn = DefaultClaimColumn
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return summary, fmt.Errorf("batch: reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := reader.ReadAll()
	if err != nil {
		return summary, fmt.Errorf("batch: reading records: %w", err)
	}

	items := make([]risk.Item, len(records))
	for i, record := range records {
		items[i] = toItem(header, record, claimColumn)
	}

	outcomes := scorer.ScoreBatch(ctx, snapshot.Predictor, snapshot.Metadata, items, opts.Workers)

	writer := csv.NewWriter(w)
	if err = writer.Write(append(append([]string(nil), header...), resultColumns...)); err != nil {
		return summary, err
	}

	for i, outcome := range outcomes {
		summary.Rows++
		line := append([]string(nil), records[i]...)
		if outcome.Err != nil {
			summary.Failed++
			slog.Warn("Batch row not scored", "row", i+1, "error", outcome.Err)
			line = append(line, "", "", "", "", FailureMessage)
		} else {
			a := outcome.Report.Assessment
			summary.Levels[a.RiskLevel]++
			residual := ""
			if a.Residual != nil {
				residual = formatFloat(*a.Residual)
			}
			line = append(line, formatFloat(a.PredictedPrice), residual, formatFloat(a.RiskScore), string(a.RiskLevel), "")
		}
		if err = writer.Write(line); err != nil {
			return summary, err
		}
	}

	writer.Flush()
	if err = writer.Error(); err != nil {
		return summary, err
	}

	slog.Info("Batch scored", "rows", summary.Rows, "failed", summary.Failed)
	return summary, nil
}

func toItem(header, record []string, claimColumn string) risk.Item {
	item := risk.Item{Row: make(feature.Row, len(header))}
	for j, col := range header {
		value := strings.TrimSpace(record[j])
		if value == "" {
			continue
		}
		if col == claimColumn {
			if claimed, ok := feature.ToNumber(value); ok {
				item.ClaimedPrice = claimed
			}
			continue
		}
		item.Row[col] = value
	}
	return item
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
