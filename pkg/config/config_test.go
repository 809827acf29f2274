package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Level string `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("CASEDESK_TEST_NAME", "casedesk")
	path := writeFile(t, "name: ${CASEDESK_TEST_NAME}\nport: ${CASEDESK_TEST_PORT:-8080}\nlevel: ${CASEDESK_TEST_UNSET}\n")

	var s sample
	require.NoError(t, Load(path, &s))
	assert.Equal(t, "casedesk", s.Name)
	assert.Equal(t, 8080, s.Port)
	assert.Empty(t, s.Level)
}

func TestLoadEmptyEnvUsesDefault(t *testing.T) {
	t.Setenv("CASEDESK_TEST_PORT", "")
	path := writeFile(t, "port: ${CASEDESK_TEST_PORT:-9090}\n")

	var s sample
	require.NoError(t, Load(path, &s))
	assert.Equal(t, 9090, s.Port)
}

func TestLoadKeepsPresetValues(t *testing.T) {
	path := writeFile(t, "port: 1\n")

	s := sample{Name: "preset"}
	require.NoError(t, Load(path, &s))
	assert.Equal(t, "preset", s.Name)
	assert.Equal(t, 1, s.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field": "port: 1\nhost: x\n",
		"bad type":      "port: abc\n",
		"validation":    "name: x\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			var s sample
			assert.Error(t, Load(writeFile(t, content), &s))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	var s sample
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &s)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeEmptyDocument(t *testing.T) {
	s := sample{Port: 3}
	require.NoError(t, Decode([]byte(""), &s))
	assert.Equal(t, 3, s.Port)
}
