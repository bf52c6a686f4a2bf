package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var resultRowColumns = []string{"toolchain", "crate_name", "crate_vers", "success", "task_id"}

func TestOutcomeNullBool(t *testing.T) {
	for _, o := range []model.Outcome{model.OutcomeSuccess, model.OutcomeFailure, model.OutcomeUnknown} {
		if got := nullBoolToOutcome(outcomeToNullBool(o)); got != o {
			t.Errorf("round trip of %q = %q", o, got)
		}
	}
	if outcomeToNullBool("bogus").Valid {
		t.Error("expected NULL for an unrecognised outcome")
	}
}

func TestQueryAddBuildResult(t *testing.T) {
	db, mock := newMockDB(t)
	r := &model.BuildResult{
		Toolchain: "nightly-2015-03-01",
		CrateName: "toml",
		CrateVers: "0.1.18",
		Outcome:   model.OutcomeFailure,
		TaskID:    "task-1",
	}

	mock.ExpectExec("INSERT INTO build_results .+ ON CONFLICT \\(toolchain, crate_name, crate_vers\\)").
		WithArgs("nightly-2015-03-01", "toml", "0.1.18", false, "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryAddBuildResult(context.Background(), db, r); err != nil {
		t.Fatalf("queryAddBuildResult: %v", err)
	}
}

func TestQueryAddBuildResult_Unknown(t *testing.T) {
	db, mock := newMockDB(t)
	r := &model.BuildResult{Toolchain: "beta-2015-03-01", CrateName: "url", CrateVers: "0.2.0", Outcome: model.OutcomeUnknown, TaskID: "t"}

	mock.ExpectExec("INSERT INTO build_results").
		WithArgs("beta-2015-03-01", "url", "0.2.0", nil, "t").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryAddBuildResult(context.Background(), db, r); err != nil {
		t.Fatalf("queryAddBuildResult: %v", err)
	}
}

func TestQueryGetBuildResult(t *testing.T) {
	db, mock := newMockDB(t)
	key := model.BuildResultKey{Toolchain: "nightly-2015-03-01", CrateName: "toml", CrateVers: "0.1.18"}

	mock.ExpectQuery("SELECT .+ FROM build_results\\s+WHERE toolchain = \\$1 AND crate_name = \\$2 AND crate_vers = \\$3").
		WithArgs(key.Toolchain, key.CrateName, key.CrateVers).
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("nightly-2015-03-01", "toml", "0.1.18", true, "task-1"))

	got, err := queryGetBuildResult(context.Background(), db, key)
	if err != nil {
		t.Fatalf("queryGetBuildResult: %v", err)
	}
	if got.Outcome != model.OutcomeSuccess || got.TaskID != "task-1" {
		t.Errorf("got %+v", got)
	}
	if got.Key() != key {
		t.Errorf("Key() = %+v, want %+v", got.Key(), key)
	}
}

func TestQueryGetBuildResult_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM build_results").WillReturnError(sql.ErrNoRows)

	_, err := queryGetBuildResult(context.Background(), db, model.BuildResultKey{Toolchain: "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryGetResults(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM build_results\\s+WHERE toolchain = \\$1 ORDER BY crate_name, crate_vers").
		WithArgs("stable-2015-05-15").
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("stable-2015-05-15", "libc", "0.1.0", true, "a").
			AddRow("stable-2015-05-15", "url", "0.2.0", false, "b").
			AddRow("stable-2015-05-15", "zzz", "1.0.0", nil, "c"))

	got, err := queryGetResults(context.Background(), db, "stable-2015-05-15")
	if err != nil {
		t.Fatalf("queryGetResults: %v", err)
	}
	want := []model.Outcome{model.OutcomeSuccess, model.OutcomeFailure, model.OutcomeUnknown}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Outcome != want[i] {
			t.Errorf("result %d outcome = %q, want %q", i, r.Outcome, want[i])
		}
	}
}

func TestQueryGetResultPairs(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FULL OUTER JOIN").
		WithArgs("stable-2015-05-15", "beta-2015-05-20").
		WillReturnRows(sqlmock.NewRows([]string{"crate_name", "crate_vers", "from", "to"}).
			AddRow("libc", "0.1.0", true, true).
			AddRow("piston", "0.1.0", true, false).
			AddRow("url", "0.2.0", nil, true).
			AddRow("zeta", "1.0.0", false, nil))

	got, err := queryGetResultPairs(context.Background(), db, "stable-2015-05-15", "beta-2015-05-20")
	if err != nil {
		t.Fatalf("queryGetResultPairs: %v", err)
	}
	want := []model.ResultPair{
		{PackageName: "libc", PackageVersion: "0.1.0", From: model.OutcomeSuccess, To: model.OutcomeSuccess},
		{PackageName: "piston", PackageVersion: "0.1.0", From: model.OutcomeSuccess, To: model.OutcomeFailure},
		{PackageName: "url", PackageVersion: "0.2.0", From: model.OutcomeUnknown, To: model.OutcomeSuccess},
		{PackageName: "zeta", PackageVersion: "1.0.0", From: model.OutcomeFailure, To: model.OutcomeUnknown},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestQueryGetResultPairs_Error(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FULL OUTER JOIN").WillReturnError(errors.New("connection reset"))

	if _, err := queryGetResultPairs(context.Background(), db, "a", "b"); err == nil {
		t.Fatal("expected error")
	}
}

func TestQueryListResultToolchains(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT DISTINCT toolchain FROM build_results").
		WillReturnRows(sqlmock.NewRows([]string{"toolchain"}).
			AddRow("beta-2015-05-20").AddRow("nightly-2015-05-21"))

	got, err := queryListResultToolchains(context.Background(), db)
	if err != nil {
		t.Fatalf("queryListResultToolchains: %v", err)
	}
	if len(got) != 2 || got[0] != "beta-2015-05-20" {
		t.Errorf("got %v", got)
	}
}

func TestQueryCustomToolchains(t *testing.T) {
	db, mock := newMockDB(t)
	tc := &model.CustomToolchain{Toolchain: "custom-deadbeef", URL: "https://example.com/rust.git", TaskID: "task-9"}

	mock.ExpectExec("INSERT INTO custom_toolchains").
		WithArgs("custom-deadbeef", "https://example.com/rust.git", "task-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT toolchain, url, task_id FROM custom_toolchains WHERE toolchain = \\$1").
		WithArgs("custom-deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"toolchain", "url", "task_id"}).
			AddRow("custom-deadbeef", "https://example.com/rust.git", "task-9"))
	mock.ExpectQuery("SELECT toolchain, url, task_id FROM custom_toolchains ORDER BY toolchain").
		WillReturnRows(sqlmock.NewRows([]string{"toolchain", "url", "task_id"}).
			AddRow("custom-deadbeef", "https://example.com/rust.git", "task-9"))

	ctx := context.Background()
	if err := queryAddCustomToolchain(ctx, db, tc); err != nil {
		t.Fatalf("queryAddCustomToolchain: %v", err)
	}
	got, err := queryGetCustomToolchain(ctx, db, "custom-deadbeef")
	if err != nil {
		t.Fatalf("queryGetCustomToolchain: %v", err)
	}
	if *got != *tc {
		t.Errorf("got %+v, want %+v", got, tc)
	}
	all, err := queryListCustomToolchains(ctx, db)
	if err != nil {
		t.Fatalf("queryListCustomToolchains: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d custom toolchains, want 1", len(all))
	}
}

func TestQueryGetCustomToolchain_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM custom_toolchains").WithArgs("custom-abcdef0").WillReturnError(sql.ErrNoRows)

	if _, err := queryGetCustomToolchain(context.Background(), db, "custom-abcdef0"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestRunInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO build_results").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.AddBuildResult(context.Background(), &model.BuildResult{
			Toolchain: "nightly-2015-03-01", CrateName: "toml", CrateVers: "0.1.18",
			Outcome: model.OutcomeSuccess, TaskID: "t",
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
