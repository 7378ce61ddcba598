package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/internal/store"
	"go-student-batch/pkg/batch"
)

func testLogger(t *testing.T) *logger.Logger {
	return logger.Wrap(zerolog.New(zerolog.NewTestWriter(t)))
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, DSN: ":memory:", LogLevel: "silent"}, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func readAll(t *testing.T, r *StudentReader) []model.Student {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Open(ctx))
	defer r.Close()

	var out []model.Student
	for {
		s, err := r.Read(ctx)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, s)
	}
}

func TestStudentReader_Tolerance(t *testing.T) {
	path := writeCSV(t,
		"id,name,email,age",
		"1,Amy,a@x,20",
		"",
		"x,Bo",
		"3,Cy,c@x,22,extra,fields",
		`4,D"an,d@x,23`,
	)

	got := readAll(t, NewStudentReader(path, testLogger(t)))
	require.Len(t, got, 5)

	assert.Equal(t, model.Student{ID: 1, Name: "Amy", Email: "a@x", Age: "20"}, got[0])
	assert.Equal(t, model.Student{}, got[1], "blank line is a student with empty fields")
	assert.Equal(t, model.Student{Name: "Bo"}, got[2], "short line pads with empty fields")
	assert.Equal(t, model.Student{ID: 3, Name: "Cy", Email: "c@x", Age: "22"}, got[3])
	assert.Equal(t, `D"an`, got[4].Name)
}

func TestStudentReader_UnclosedQuoteStaysOnItsLine(t *testing.T) {
	path := writeCSV(t,
		"id,name,email,age",
		`1,"Amy,amy@x.com,20`,
		"2,Bo,bo@x.com,21",
		"3,Cy,cy@x.com,22",
	)

	got := readAll(t, NewStudentReader(path, testLogger(t)))
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Contains(t, got[0].Name, "Amy")
	assert.NotContains(t, got[0].Name, "Bo")
	assert.Equal(t, model.Student{ID: 2, Name: "Bo", Email: "bo@x.com", Age: "21"}, got[1])
	assert.Equal(t, model.Student{ID: 3, Name: "Cy", Email: "cy@x.com", Age: "22"}, got[2])
}

func TestStudentReader_QuotedCommaAndNoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,email,age\r\n5,\"Lee, Ann\",l@x,30\r\n6,Mo,m@x,31"), 0o600))

	got := readAll(t, NewStudentReader(path, testLogger(t)))
	require.Len(t, got, 2)
	assert.Equal(t, model.Student{ID: 5, Name: "Lee, Ann", Email: "l@x", Age: "30"}, got[0])
	assert.Equal(t, model.Student{ID: 6, Name: "Mo", Email: "m@x", Age: "31"}, got[1])
}

func TestStudentReader_HeaderOnly(t *testing.T) {
	path := writeCSV(t, "id,name,email,age")
	assert.Empty(t, readAll(t, NewStudentReader(path, testLogger(t))))
}

func TestStudentReader_MissingFile(t *testing.T) {
	r := NewStudentReader(filepath.Join(t.TempDir(), "nope.csv"), testLogger(t))
	err := r.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStudentReader_ReadBeforeOpen(t *testing.T) {
	r := NewStudentReader("unused.csv", testLogger(t))
	_, err := r.Read(context.Background())
	assert.Error(t, err)
	assert.NoError(t, r.Close())
}

func TestStudentReader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/students.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "id,name,email,age\n7,Amy,a@x,20\n")
	}))
	defer srv.Close()

	got := readAll(t, NewStudentReader(srv.URL+"/students.csv", testLogger(t)))
	require.Len(t, got, 1)
	assert.Equal(t, "Amy", got[0].Name)

	r := NewStudentReader(srv.URL+"/missing.csv", testLogger(t))
	assert.Error(t, r.Open(context.Background()))
}

func TestClearIdentifier(t *testing.T) {
	in := model.Student{ID: 42, Name: "Amy", Email: "a@x", Age: "20"}
	out, err := ClearIdentifier(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, out.ID)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, in.Age, out.Age)
}

type saverFunc func(ctx context.Context, s *model.Student) error

func (f saverFunc) Save(ctx context.Context, s *model.Student) error { return f(ctx, s) }

func TestStudentWriter_StopsAtFirstError(t *testing.T) {
	var saved []string
	boom := errors.New("unique violation")
	w := NewStudentWriter(saverFunc(func(_ context.Context, s *model.Student) error {
		if s.Name == "Bo" {
			return boom
		}
		saved = append(saved, s.Name)
		return nil
	}))

	err := w.Write(context.Background(), []model.Student{{Name: "Amy"}, {Name: "Bo"}, {Name: "Cy"}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Amy"}, saved)
}

func TestImportJob_ImportsEveryRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	path := writeCSV(t,
		"id,name,email,age",
		"1,Amy,a@x,20",
		"2,Bo,b@x,21",
		"3,Cy,c@x,22",
	)
	spec := model.JobSpec{InputPath: path, ChunkSize: 2, Concurrency: 10}

	job, err := NewImportJob(spec, db, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultJobName, job.Job.Name())
	assert.Equal(t, model.DefaultStepName, job.Step.Name())

	exec, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, exec.Status)

	se := exec.Step(model.DefaultStepName)
	require.NotNil(t, se)
	assert.Equal(t, int64(3), se.ReadCount)
	assert.Equal(t, int64(3), se.WriteCount)
	assert.Equal(t, int64(2), se.CommitCount)

	students := store.NewStudentRepository(db)
	stored, err := students.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	ids := map[int64]bool{}
	names := map[string]bool{}
	for _, s := range stored {
		ids[s.ID] = true
		names[s.Name] = true
	}
	assert.Len(t, ids, 3, "every record gets its own id")
	assert.Equal(t, map[string]bool{"Amy": true, "Bo": true, "Cy": true}, names)

	// Re-running inserts again; ids from the file are never reused.
	again, err := NewImportJob(spec, db, testLogger(t))
	require.NoError(t, err)
	exec2, err := again.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, exec2.Status)

	n, err := students.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	jobs, err := store.NewJobRepository(db).ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	progress := again.Tracker.Snapshot()
	assert.Equal(t, exec2.ID, progress.ExecutionID)
	assert.Equal(t, int64(2), progress.ChunksCommitted)
	assert.Equal(t, int64(3), progress.ItemsWritten)
}

func TestImportJob_FailedChunkRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.SQL.ExecContext(ctx, `
		CREATE TRIGGER reject_bad BEFORE INSERT ON students
		WHEN NEW.name = 'BAD'
		BEGIN SELECT RAISE(ABORT, 'bad student'); END`)
	require.NoError(t, err)

	path := writeCSV(t,
		"id,name,email,age",
		"1,Amy,a@x,20",
		"2,Bo,b@x,21",
		"3,BAD,bad@x,22",
		"4,Cy,c@x,23",
		"5,Di,d@x,24",
	)
	job, err := NewImportJob(model.JobSpec{InputPath: path, ChunkSize: 2, Concurrency: 1}, db, testLogger(t))
	require.NoError(t, err)

	exec, err := job.Run(ctx)
	require.Error(t, err)
	var stepErr *batch.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Chunk)
	assert.Equal(t, batch.StatusFailed, exec.Status)

	n, err := store.NewStudentRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "only the first chunk stays committed")

	jobs := store.NewJobRepository(db)
	stored, err := jobs.GetJob(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusFailed, stored.Status)
	require.Len(t, stored.Steps, 1)
	assert.Equal(t, int64(1), stored.Steps[0].CommitCount)
	assert.Equal(t, int64(1), stored.Steps[0].RollbackCount)

	errs, err := jobs.ListJobErrors(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "bad student")
}

func TestImportJob_MissingInputFailsBeforeAnyChunk(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spec := model.JobSpec{InputPath: filepath.Join(t.TempDir(), "absent.csv")}

	job, err := NewImportJob(spec, db, testLogger(t))
	require.NoError(t, err)

	exec, err := job.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, batch.StatusFailed, exec.Status)
	assert.Zero(t, exec.Step(model.DefaultStepName).CommitCount)

	n, err := store.NewStudentRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportJob_InvalidSpec(t *testing.T) {
	_, err := NewImportJob(model.JobSpec{ChunkSize: -1}, newTestDB(t), testLogger(t))
	assert.ErrorIs(t, err, batch.ErrInvalidChunkSize)
}
