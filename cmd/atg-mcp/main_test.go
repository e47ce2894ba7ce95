// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func runCLI(t *testing.T, env func(string) (string, bool), args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, env)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	fused := writeFile(t, dir, "fused.txt", "06 17 28 39 410 512 614")
	paired := writeFile(t, dir, "paired.txt", "MM LITRES\n0 5\n10 60\n20 130\n30 210\n")

	code, out, stderr := runCLI(t, noEnv, "parse", "--summary", fused, paired)
	require.Equal(t, 0, code, stderr)

	var reports []parseReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "fused.txt", reports[0].File)
	assert.Equal(t, "split", string(reports[0].Method))
	assert.Equal(t, 7, reports[0].Entries)
	assert.Empty(t, reports[0].Table)
	assert.Equal(t, "paired", string(reports[1].Method))
	assert.Equal(t, 5, reports[1].Entries)
}

func TestParseCommand_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "blank.txt", "no numbers")

	code, out, stderr := runCLI(t, noEnv, "parse", empty, filepath.Join(dir, "missing.pdf"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "2 of 2 charts produced no table")
	assert.Contains(t, out, "missing.pdf")
}

func TestUploadCalibrateVolume(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	chart := writeFile(t, dir, "chart.txt", "MM LITRES\n0 5\n10 60\n20 130\n30 210\n")

	code, out, stderr := runCLI(t, noEnv, "--data-dir", data, "upload", "--tank", "T1", chart)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "T1: 5 entries (paired)")

	code, out, stderr = runCLI(t, noEnv, "--data-dir", data, "volume", "--tank", "T1", "--depth", "15")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "95.00\n", out)

	code, _, stderr = runCLI(t, noEnv, "--data-dir", data, "calibrate", "--tank", "T1", "--product", "5")
	require.Equal(t, 0, code, stderr)

	code, out, stderr = runCLI(t, noEnv, "--data-dir", data, "volume", "--tank", "T1", "--depth", "15")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "60.00\n", out)

	// only the water offset changes; the product offset is kept
	code, out, stderr = runCLI(t, noEnv, "--data-dir", data, "calibrate", "--tank", "T1", "--water", "2")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "T1: product offset 5 mm, water offset 2 mm\n", out)

	code, out, stderr = runCLI(t, noEnv, "--data-dir", data, "volume", "--tank", "T1", "--depth", "15")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "60.00\n", out)
}

func TestVolume_UnknownTank(t *testing.T) {
	code, _, stderr := runCLI(t, noEnv, "--data-dir", t.TempDir(), "volume", "--tank", "T1", "--depth", "15")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no strapping table")
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "atg.yaml", "logging:\n  level: warn\n")
	env := func(k string) (string, bool) {
		if k == "ATG_LOG_LEVEL" {
			return "shout", true
		}
		return "", false
	}

	code, _, stderr := runCLI(t, env, "--config", cfgFile, "volume", "--tank", "T1", "--depth", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid configuration")

	// a flag beats the bad environment value
	code, _, stderr = runCLI(t, env, "--config", cfgFile, "--log-level", "error", "--data-dir", dir, "volume", "--tank", "T1", "--depth", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no strapping table")
}
