package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"halaqa-points-api/internal/config"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(repo *repository.MemoryLedgerRepository) *RootOptions {
	return &RootOptions{
		Open: func(config.LedgerDBConfig) (repository.LedgerRepository, error) { return repo, nil },
	}
}

func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "ledgerctl", cmd.Use)

	for _, name := range []string{"show", "credit", "leaderboard", "redemptions", "repair"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, newTestRoot(repository.NewMemoryLedgerRepository()), "leaderboard", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestCreditThenShow(t *testing.T) {
	opts := newTestRoot(repository.NewMemoryLedgerRepository())

	_, err := execute(t, opts, "credit", "student-1", "--amount", "25")
	require.NoError(t, err)

	out, err := execute(t, opts, "show", "student-1", "--format", "json")
	require.NoError(t, err)

	var rec model.LedgerRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, int64(25), rec.Balance)
	assert.Equal(t, int64(25), rec.LifetimeTotal)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "100001", "9223372036854775807"} {
		_, err := execute(t, newTestRoot(repository.NewMemoryLedgerRepository()), "credit", "student-1", "--amount", amount)
		require.Error(t, err, amount)
		assert.Equal(t, ExitCommandError, GetExitCode(err), amount)
	}
}

func TestLeaderboardText(t *testing.T) {
	opts := newTestRoot(repository.NewMemoryLedgerRepository())
	_, err := execute(t, opts, "credit", "a", "--amount", "5")
	require.NoError(t, err)
	_, err = execute(t, opts, "credit", "b", "--amount", "9")
	require.NoError(t, err)

	out, err := execute(t, opts, "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "1. b")
	assert.Contains(t, out, "2. a")
}

func TestRepairNormalizesCorruptRecords(t *testing.T) {
	repo := repository.NewMemoryLedgerRepository()
	repo.SetDocument(model.LedgerDocument{UserID: "legacy", Body: []byte(`{"balance":"NaN","lifetime_total":"12","inventory":["a","a"]}`)})
	opts := newTestRoot(repo)

	out, err := execute(t, opts, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 1, repaired 1, failed 0")

	out, err = execute(t, opts, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "repaired 0")
}
