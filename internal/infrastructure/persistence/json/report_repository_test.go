package json

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/collector"
	"github.com/khanhnv2901/tlsprofiler/internal/compliance"
	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

func newResult(target string, startedAt time.Time, allOK bool) *audit.Result {
	var profileErrs []string
	if !allOK {
		profileErrs = []string{`must not support "SSLv3"`}
	}
	maxAge := int64(31536000)
	return &audit.Result{
		ID:        uuid.New(),
		Target:    target,
		Profile:   "intermediate",
		StartedAt: startedAt,
		Duration:  1500 * time.Millisecond,
		Report:    compliance.BuildReport(nil, profileErrs, nil, nil),
		Snapshot: &observation.Snapshot{
			Target:             target,
			SupportedProtocols: observation.NewProtocolSet(observation.TLSv1_2, observation.TLSv1_3),
			SupportedCiphers:   observation.NewStringSet("ECDHE-RSA-AES128-GCM-SHA256"),
			HSTSMaxAge:         &maxAge,
		},
	}
}

func newRepo(t *testing.T) *ReportRepository {
	t.Helper()
	repo, err := NewReportRepository(filepath.Join(t.TempDir(), "results"), "alice")
	require.NoError(t, err)
	return repo
}

func TestNewReportRepositoryRequiresDir(t *testing.T) {
	_, err := NewReportRepository("", "alice")
	assert.Error(t, err)
}

func TestSaveAndFindByID(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	result := newResult("example.com:443", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), false)

	require.NoError(t, repo.Save(ctx, result))

	assert.FileExists(t, filepath.Join(repo.Dir(), result.ID.String()+".json"))
	assert.FileExists(t, filepath.Join(repo.Dir(), result.ID.String()+".json.sha256"))

	loaded, err := repo.FindByID(ctx, result.ID.String())
	require.NoError(t, err)
	assert.Equal(t, result.ID, loaded.ID)
	assert.Equal(t, result.Target, loaded.Target)
	assert.Equal(t, result.Profile, loaded.Profile)
	assert.True(t, result.StartedAt.Equal(loaded.StartedAt))
	assert.Equal(t, result.Duration, loaded.Duration)
	assert.Equal(t, result.Report, loaded.Report)
	require.NotNil(t, loaded.Snapshot)
	assert.True(t, loaded.Snapshot.SupportedProtocols.Contains(observation.TLSv1_3))
	assert.True(t, loaded.Snapshot.SupportedCiphers.Contains("ECDHE-RSA-AES128-GCM-SHA256"))
	require.NotNil(t, loaded.Snapshot.HSTSMaxAge)
	assert.Equal(t, int64(31536000), *loaded.Snapshot.HSTSMaxAge)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, sharedErrors.ErrResultNotFound))

	_, err = repo.FindByID(ctx, "../../etc/passwd")
	assert.True(t, errors.Is(err, sharedErrors.ErrResultNotFound))
}

func TestListNewestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	older := newResult("a.example:443", base, true)
	newer := newResult("b.example:443", base.Add(time.Hour), true)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "notes.json"), []byte("{}"), 0o644))

	results, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].ID)
	assert.Equal(t, older.ID, results[1].ID)
}

func TestVerify(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	result := newResult("example.com:443", time.Now().UTC(), true)
	require.NoError(t, repo.Save(ctx, result))

	ok, err := repo.Verify(ctx, result.ID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	path := filepath.Join(repo.Dir(), result.ID.String()+".json")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ok, err = repo.Verify(ctx, result.ID.String())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Verify(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, sharedErrors.ErrResultNotFound))
}

func TestRecordAppendsAuditTrail(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	ok := newResult("good.example:443", time.Now().UTC(), true)
	bad := newResult("bad.example:443", time.Now().UTC(), false)
	unreachable := audit.Outcome{
		Target: "down.example:443",
		Err:    &collector.ConnectivityError{Target: "down.example:443", Cause: errors.New("connection refused")},
	}

	require.NoError(t, repo.Record(ctx, "intermediate", audit.Outcome{Target: ok.Target, Result: ok}, time.Second))
	require.NoError(t, repo.Record(ctx, "intermediate", audit.Outcome{Target: bad.Target, Result: bad}, 2*time.Second))
	require.NoError(t, repo.Record(ctx, "intermediate", unreachable, 250*time.Millisecond))

	f, err := os.Open(filepath.Join(repo.Dir(), "audit.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, auditLogHeader, rows[0])

	assert.Equal(t, ok.ID.String(), rows[1][1])
	assert.Equal(t, "alice", rows[1][2])
	assert.Equal(t, audit.StatusOK, rows[1][5])
	assert.Equal(t, "true", rows[1][6])
	assert.Equal(t, "1.000", rows[1][11])

	assert.Equal(t, audit.StatusNotOK, rows[2][5])
	assert.Equal(t, "false", rows[2][6])
	assert.Equal(t, "1", rows[2][8])

	assert.Equal(t, "", rows[3][1])
	assert.Equal(t, "down.example:443", rows[3][3])
	assert.Equal(t, "intermediate", rows[3][4])
	assert.Equal(t, audit.StatusUnreachable, rows[3][5])
	assert.Contains(t, rows[3][10], "connection refused")

	// only reachable targets produce result files
	results, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
