package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/skinconsult/internal/catalog/catalogtest"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/store"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeCatalog(t *testing.T, records []domain.ProductRecord) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"products": records})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestResolve(t *testing.T) {
	stdout, _, err := executeCLI(t, "resolve", "--skin-type", "Secca", "--issue", "rughe profonde")
	require.NoError(t, err)
	assert.Equal(t, "Routine Antirughe https://www.dermalab.it/prodotto/routine-antirughe/\n", stdout)

	stdout, _, err = executeCLI(t, "resolve", "--skin-type", "Normale")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no kit matched")
	assert.Contains(t, stdout, "https://www.dermalab.it/skincare-routine/")
}

func TestResolveRequiresSkinType(t *testing.T) {
	_, _, err := executeCLI(t, "resolve", "--issue", "acne")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "skin-type" not set`)
}

func TestCatalogCheck(t *testing.T) {
	path := writeCatalog(t, catalogtest.Records())

	stdout, _, err := executeCLI(t, "catalog", "check", "--catalog", path, "--strict")
	require.NoError(t, err)
	assert.Contains(t, stdout, "products: ")
	assert.Contains(t, stdout, "ok")
}

func TestCatalogCheckReportsProblems(t *testing.T) {
	records := []domain.ProductRecord{
		{Name: "Azelaic Serum 10%", URL: "https://www.dermalab.it/prodotto/azelaic-serum-10/", Category: "serum"},
		{Name: "Crema Pirata", URL: "https://shop.example.com/crema/", Category: "moisturizer"},
	}
	path := writeCatalog(t, records)

	stdout, _, err := executeCLI(t, "catalog", "check", "--catalog", path)
	require.Error(t, err)
	assert.Contains(t, stdout, "outside domain: Crema Pirata")
	assert.Contains(t, stdout, "kit not in catalog: Routine Pelle Secca")
	assert.Contains(t, err.Error(), "Crema Pirata")

	_, _, err = executeCLI(t, "catalog", "check", "--catalog", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "skinconsult.db")
	repo, err := store.NewSQLite(dbPath)
	require.NoError(t, err)

	ctx := context.Background()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"s-ended", "s-open"} {
		require.NoError(t, repo.CreateSession(ctx, &domain.SessionRecord{
			SessionID: id,
			UserName:  "Giulia",
			Step:      domain.StepCompleted,
			Answers: domain.Answers{
				SkinType:     "Secca",
				Age:          "30-39",
				MainIssue:    "rughe",
				SkinProblems: []string{"rughe", "secchezza"},
			},
			CreatedAt: started,
			UpdatedAt: started,
		}))
	}
	require.NoError(t, repo.AppendMessage(ctx, &domain.StoredMessage{SessionID: "s-ended", Role: domain.RoleAssistant, Content: "Ciao Giulia!"}))
	require.NoError(t, repo.AppendMessage(ctx, &domain.StoredMessage{SessionID: "s-ended", Role: domain.RoleUser, Content: "ho la pelle secca"}))
	require.NoError(t, repo.EndSession(ctx, "s-ended", started.Add(10*time.Minute)))
	require.NoError(t, repo.Close())

	out := filepath.Join(t.TempDir(), "export.csv")
	_, stderr, err := executeCLI(t, "export", "--db", dbPath, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Exported 1 sessions")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "s-ended", row[0])
	assert.Equal(t, "Giulia", row[1])
	assert.Equal(t, "2025-03-01T10:10:00Z", row[3])
	assert.Equal(t, "Secca", row[4])
	assert.Equal(t, "rughe; secchezza", row[9])
	assert.Equal(t, "2", row[10])
	assert.Equal(t, "assistant: Ciao Giulia!\nuser: ho la pelle secca", row[11])
}

func TestExportToStdout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "skinconsult.db")
	repo, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	stdout, _, err := executeCLI(t, "export", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(exportHeader, ",")+"\n", stdout)
}

func TestExportFileReportsWriteFailures(t *testing.T) {
	snaps := []domain.Snapshot{{SessionID: "s-1", UserName: "Giulia"}}

	err := exportFile(t.TempDir(), snaps)
	require.Error(t, err, "a directory cannot be created as a file")

	if _, statErr := os.Stat("/dev/full"); statErr != nil {
		t.Skip("/dev/full not available")
	}
	err = exportFile("/dev/full", snaps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/full")
}
