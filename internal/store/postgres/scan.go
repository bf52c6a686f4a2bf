package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/crater/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanBuildResult scans a single row into a model.BuildResult.
// The row must contain columns in the order defined by resultColumns.
func scanBuildResult(row scannable) (*model.BuildResult, error) {
	var r model.BuildResult
	var success sql.NullBool
	if err := row.Scan(&r.Toolchain, &r.CrateName, &r.CrateVers, &success, &r.TaskID); err != nil {
		return nil, err
	}
	r.Outcome = nullBoolToOutcome(success)
	return &r, nil
}

func scanResultPair(row scannable) (model.ResultPair, error) {
	var p model.ResultPair
	var from, to sql.NullBool
	if err := row.Scan(&p.PackageName, &p.PackageVersion, &from, &to); err != nil {
		return p, err
	}
	p.From = nullBoolToOutcome(from)
	p.To = nullBoolToOutcome(to)
	return p, nil
}

func scanCustomToolchain(row scannable) (*model.CustomToolchain, error) {
	var tc model.CustomToolchain
	if err := row.Scan(&tc.Toolchain, &tc.URL, &tc.TaskID); err != nil {
		return nil, err
	}
	return &tc, nil
}

// outcomeToNullBool maps an outcome to the nullable success column.
// Unknown outcomes are stored as NULL.
func outcomeToNullBool(o model.Outcome) sql.NullBool {
	switch o {
	case model.OutcomeSuccess:
		return sql.NullBool{Bool: true, Valid: true}
	case model.OutcomeFailure:
		return sql.NullBool{Bool: false, Valid: true}
	}
	return sql.NullBool{}
}

// nullBoolToOutcome maps a nullable success column to an outcome.
func nullBoolToOutcome(b sql.NullBool) model.Outcome {
	if !b.Valid {
		return model.OutcomeUnknown
	}
	return model.OutcomeFromSuccess(b.Bool)
}
