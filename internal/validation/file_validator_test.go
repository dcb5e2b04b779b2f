package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/shared/testutil"
)

func TestFileValidator_ValidateSourceFile(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		maxBytes int64
		wantErr  bool
	}{
		{
			name: "readable csv",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "tenders.csv")
				require.NoError(t, os.WriteFile(path, []byte("header\nrow\n"), 0644))
				return path
			},
		},
		{
			name:    "missing file",
			setup:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			wantErr: true,
		},
		{
			name:    "directory",
			setup:   func(t *testing.T) string { return t.TempDir() },
			wantErr: true,
		},
		{
			name: "empty file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "empty.csv")
				require.NoError(t, os.WriteFile(path, nil, 0644))
				return path
			},
			wantErr: true,
		},
		{
			name: "over the size limit",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "big.csv")
				require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))
				return path
			},
			maxBytes: 5,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			err := NewFileValidator(logger).ValidateSourceFile(tt.setup(t), tt.maxBytes)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apierrors.IsType(err, apierrors.ErrTypeLoad))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)

	dir := filepath.Join(t.TempDir(), "reports", "2024")
	require.NoError(t, v.ValidateOutputDirectory(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe must be removed")
	testutil.AssertLogAttr(t, logs, "component", "file_validator")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	err = v.ValidateOutputDirectory(filepath.Join(blocker, "sub"))
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeExport))
}

func TestFileValidator_ResolveOutput(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		want     OutputFormat
		wantType apierrors.ErrorType
	}{
		{name: "stdout", path: "", want: FormatJSON},
		{name: "json file", path: filepath.Join(dir, "snap.json"), want: FormatJSON},
		{name: "upper case xlsx", path: filepath.Join(dir, "snap.XLSX"), want: FormatXLSX},
		{name: "new directory", path: filepath.Join(dir, "out", "snap.xlsx"), want: FormatXLSX},
		{name: "csv rejected", path: filepath.Join(dir, "snap.csv"), wantType: apierrors.ErrTypeValidation},
		{name: "lock file rejected", path: filepath.Join(dir, "~$snap.xlsx"), wantType: apierrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFileValidator(nil).ResolveOutput(tt.path)
			if tt.wantType != "" {
				require.Error(t, err)
				assert.True(t, apierrors.IsType(err, tt.wantType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
