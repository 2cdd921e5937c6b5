package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTestEnv isolates commands from any local .env integrations.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GMAIL_ADDRESS", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("PASSWORD_PEPPER", "")
	t.Setenv("FEEDS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PUBLISH_DIR", t.TempDir())
}

// resetFlags restores every flag of cmd and its subcommands to its default.
// Package-level commands keep parsed values between in-process runs, and
// slice flags append rather than replace.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		var err error
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			err = sv.Replace(splitDefault(f.DefValue))
		} else {
			err = f.Value.Set(f.DefValue)
		}
		require.NoError(t, err, "reset --%s", f.Name)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

func splitDefault(def string) []string {
	def = strings.TrimSuffix(strings.TrimPrefix(def, "["), "]")
	if def == "" {
		return []string{}
	}
	return strings.Split(def, ",")
}

// execute runs the root command in-process and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStoreSelection(t *testing.T) {
	setTestEnv(t)

	_, err := execute(t, "", "--memory=false", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	_, err = execute(t, "", "--memory", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--memory")
}

func TestSubmit(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "", "--memory", "submit", "https://news.test/deal?utm_source=mail", "--title", "Acme raises $10M")
	require.NoError(t, err)
	assert.Equal(t, "Queued item #1: https://news.test/deal\n", out)

	_, err = execute(t, "", "--memory", "submit", "not a url")
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	setTestEnv(t)

	path := filepath.Join(t.TempDir(), "deals.csv")
	csv := "url,title,published\n" +
		"https://news.test/a,Acme raises $10M,2025-03-01\n" +
		"https://news.test/b,Beta acquired,\n" +
		"https://news.test/a?utm_medium=x,Acme again,\n" +
		"ftp://bad,Bad,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	out, err := execute(t, "", "--memory", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "New:       2")
	assert.Contains(t, out, "Duplicate: 1")
	assert.Contains(t, out, "Invalid:   1")

	_, err = execute(t, "", "--memory", "import", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestTriageCommands_EmptyStore(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "", "--memory", "pending")
	require.NoError(t, err)
	assert.Equal(t, "Nothing to triage.\n", out)

	_, err = execute(t, "", "--memory", "accept", "abc")
	assert.ErrorContains(t, err, `invalid item id "abc"`)

	_, err = execute(t, "", "--memory", "reject", "99")
	assert.ErrorContains(t, err, "99")

	_, err = execute(t, "", "--memory", "show", "0")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "", "--memory", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "QUEUE STATUS")
	assert.Contains(t, out, "Pending triage:")
}

func TestRunCycle(t *testing.T) {
	setTestEnv(t)

	t.Run("unknown stage", func(t *testing.T) {
		_, err := execute(t, "", "--memory", "run-cycle", "--stages", "bogus")
		assert.ErrorContains(t, err, "unknown stage: bogus")
	})

	t.Run("empty digest", func(t *testing.T) {
		out, err := execute(t, "", "--memory", "run-cycle", "--stages", "digest", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "[digest] complete")
		assert.Contains(t, out, "Cycle ")
	})
}

func TestResetFlags_ClearsSliceFlags(t *testing.T) {
	setTestEnv(t)

	_, err := execute(t, "", "--memory", "run-cycle", "--stages", "bogus,digest")
	assert.ErrorContains(t, err, "unknown stage: bogus")
	assert.Equal(t, []string{"bogus", "digest"}, cycleStages)

	resetFlags(t, rootCmd)
	assert.Empty(t, cycleStages)
	assert.False(t, runCycleCmd.Flags().Changed("stages"))
	memory, err := rootCmd.PersistentFlags().GetBool("memory")
	require.NoError(t, err)
	assert.False(t, memory)
}

func TestHashPassword(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "hunter22\n", "hash-password", "--cost", "10")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2a$10$"), hash)
	assert.True(t, (&config.PasswordConfig{BcryptCost: 10}).VerifyPassword("hunter22", hash))

	_, err = execute(t, "", "hash-password", "--cost", "10")
	assert.Error(t, err)

	_, err = execute(t, "x\n", "hash-password", "--cost", "4")
	assert.ErrorContains(t, err, "bcrypt cost out of range")
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, []string{"fetch_feeds", "scrape", "extract", "digest", "publish"}, stageNames())
}

func TestParseItemID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"seven", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseItemID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
