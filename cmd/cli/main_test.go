package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetConfigString(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("fileContent"), 0o644))

	tests := []struct {
		name               string
		configFileName     string
		configBody         string
		expectedConfigBody string
	}{
		{"nothing", "", "", ""},
		{"body only", "", "configBody", "configBody"},
		{"body wins over file", file, "configBody", "configBody"},
		{"file", file, "", "fileContent"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			configBody, err := getConfigString(test.configFileName, test.configBody)
			require.NoError(t, err)
			require.Equal(t, test.expectedConfigBody, configBody)
		})
	}
}

func TestShouldReturnErrorIfConfigFileDoesNotExist(t *testing.T) {
	configBody, err := getConfigString(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
	require.Empty(t, configBody)
}
