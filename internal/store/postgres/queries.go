package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/store"
)

// resultColumns is the column list used for SELECT statements on the build_results table.
const resultColumns = `toolchain, crate_name, crate_vers, success, task_id`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryAddBuildResult inserts a result, replacing any earlier result for the
// same toolchain and package version.
func queryAddBuildResult(ctx context.Context, db executor, r *model.BuildResult) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO build_results (toolchain, crate_name, crate_vers, success, task_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (toolchain, crate_name, crate_vers)
		DO UPDATE SET success = EXCLUDED.success, task_id = EXCLUDED.task_id, recorded_at = now()`,
		r.Toolchain,
		r.CrateName,
		r.CrateVers,
		outcomeToNullBool(r.Outcome),
		r.TaskID,
	)
	return err
}

func queryGetBuildResult(ctx context.Context, db executor, key model.BuildResultKey) (*model.BuildResult, error) {
	row := db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM build_results
		WHERE toolchain = $1 AND crate_name = $2 AND crate_vers = $3`,
		key.Toolchain, key.CrateName, key.CrateVers)
	r, err := scanBuildResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

func queryGetResults(ctx context.Context, db executor, toolchain string) ([]*model.BuildResult, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+resultColumns+` FROM build_results
		WHERE toolchain = $1 ORDER BY crate_name, crate_vers`, toolchain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.BuildResult
	for rows.Next() {
		r, err := scanBuildResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// queryGetResultPairs joins the results of two toolchains on package
// version. A package version built with only one of them gets an unknown
// outcome on the other side.
func queryGetResultPairs(ctx context.Context, db executor, from, to string) ([]model.ResultPair, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(f.crate_name, t.crate_name), COALESCE(f.crate_vers, t.crate_vers),
			f.success, t.success
		FROM (SELECT crate_name, crate_vers, success FROM build_results WHERE toolchain = $1) f
		FULL OUTER JOIN (SELECT crate_name, crate_vers, success FROM build_results WHERE toolchain = $2) t
			ON f.crate_name = t.crate_name AND f.crate_vers = t.crate_vers
		ORDER BY 1, 2`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.ResultPair
	for rows.Next() {
		p, err := scanResultPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func queryListResultToolchains(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT toolchain FROM build_results ORDER BY toolchain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var toolchains []string
	for rows.Next() {
		var tc string
		if err := rows.Scan(&tc); err != nil {
			return nil, err
		}
		toolchains = append(toolchains, tc)
	}
	return toolchains, rows.Err()
}

func queryAddCustomToolchain(ctx context.Context, db executor, tc *model.CustomToolchain) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO custom_toolchains (toolchain, url, task_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (toolchain) DO UPDATE SET url = EXCLUDED.url, task_id = EXCLUDED.task_id`,
		tc.Toolchain, tc.URL, tc.TaskID,
	)
	return err
}

func queryGetCustomToolchain(ctx context.Context, db executor, toolchain string) (*model.CustomToolchain, error) {
	row := db.QueryRowContext(ctx, `SELECT toolchain, url, task_id FROM custom_toolchains WHERE toolchain = $1`, toolchain)
	tc, err := scanCustomToolchain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return tc, err
}

func queryListCustomToolchains(ctx context.Context, db executor) ([]*model.CustomToolchain, error) {
	rows, err := db.QueryContext(ctx, `SELECT toolchain, url, task_id FROM custom_toolchains ORDER BY toolchain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CustomToolchain
	for rows.Next() {
		tc, err := scanCustomToolchain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
