package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

// seedDB creates a family with two children and one credited entry in the
// week of 2026-02-01.
func seedDB(t *testing.T, path string) int64 {
	t.Helper()
	db, err := database.Open(path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	families := store.NewFamilyStore(db)
	fam, err := families.Create(ctx, "Smith", "correct horse")
	require.NoError(t, err)
	ann, err := families.AddMember(ctx, model.FamilyMember{FamilyID: fam.ID, Role: model.RoleChild, Name: "Ann"})
	require.NoError(t, err)
	_, err = families.AddMember(ctx, model.FamilyMember{FamilyID: fam.ID, Role: model.RoleChild, Name: "Ben"})
	require.NoError(t, err)

	_, err = store.NewLedgerStore(db).Append(ctx, model.PointsLedgerEntry{
		FamilyID: fam.ID, ChildID: ann.ID, Points: 7, Source: model.SourceTask,
		Reference: "task:1", CreatedAt: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return fam.ID
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.cmd.SetOut(&out)
	root.cmd.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLeaderboardCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	t.Setenv("FAMILYTASKS_DB_PATH", path)
	t.Setenv("FAMILYTASKS_LOG_LEVEL", "error")
	familyID := seedDB(t, path)

	out, err := run(t, "leaderboard", "--family", strconv.FormatInt(familyID, 10), "--date", "2026-02-04")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, out)
	assert.Equal(t, "Week of 2026-02-01", lines[0])
	assert.Equal(t, []string{"1", "Ann", "7"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"2", "Ben", "0"}, strings.Fields(lines[3]))

	out, err = run(t, "leaderboard", "--family", strconv.FormatInt(familyID, 10), "--date", "2026-02-04", "--limit", "1", "--json")
	require.NoError(t, err)
	var lb model.Leaderboard
	require.NoError(t, json.Unmarshal([]byte(out), &lb))
	require.Len(t, lb.Items, 1)
	assert.Equal(t, "Ann", lb.Items[0].Name)
}

func TestLeaderboardCommandRequiresFamily(t *testing.T) {
	t.Setenv("FAMILYTASKS_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	_, err := run(t, "leaderboard")
	assert.ErrorContains(t, err, "--family")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("FAMILYTASKS_DB_PATH", "from-env.db")
	t.Setenv("FAMILYTASKS_TIMEZONE", "UTC")

	path := filepath.Join(t.TempDir(), "from-flag.db")
	root := newRootCommand()
	root.cmd.SetArgs([]string{"migrate", "--db-path", path, "--timezone", "Local"})
	require.NoError(t, root.Execute())

	assert.Equal(t, path, root.cfg.DBPath)
	assert.Equal(t, "Local", root.cfg.Timezone)
}

func TestInvalidTimezoneFlag(t *testing.T) {
	t.Setenv("FAMILYTASKS_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	_, err := run(t, "migrate", "--timezone", "Mars/Olympus")
	assert.ErrorContains(t, err, "FAMILYTASKS_TIMEZONE")
}

func TestBackupCommandRequiresConfiguration(t *testing.T) {
	t.Setenv("FAMILYTASKS_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("FAMILYTASKS_LOG_LEVEL", "error")

	_, err := run(t, "backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PASSPHRASE")

	t.Setenv("FAMILYTASKS_BACKUP_PASSPHRASE", "secret")
	_, err = run(t, "backup", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAMILYTASKS_BACKUP_BUCKET")

	_, err = run(t, "restore")
	require.Error(t, err)
}
