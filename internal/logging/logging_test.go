// SPDX-License-Identifier: Apache-2.0

package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	old := logging.Logger()
	defer logging.SetLogger(old)

	var buf bytes.Buffer
	logging.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logging.Logger().Debug("chart stored", slog.String("tank", "T1"))

	assert.Contains(t, buf.String(), "chart stored")
	assert.Contains(t, buf.String(), "tank=T1")
}

func TestSetLogger_NilDiscards(t *testing.T) {
	old := logging.Logger()
	defer logging.SetLogger(old)

	logging.SetLogger(nil)
	l := logging.Logger()
	require.NotNil(t, l)
	assert.Equal(t, slog.DiscardHandler, l.Handler())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name:   "json at debug",
			level:  "debug",
			format: "json",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"msg":"hello"`)
			},
		},
		{
			name:   "text defaults to info",
			level:  "",
			format: "",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hello")
			},
		},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := logging.New(&buf, tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			l.Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
