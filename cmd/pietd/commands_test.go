package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterArtifact = `{
  "contractName": "Counter",
  "abi": [
    {"type":"function","name":"count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
    {"type":"function","name":"add","stateMutability":"nonpayable","inputs":[{"name":"n","type":"uint256"}],"outputs":[]}
  ],
  "bytecode": "0x6080"
}`

func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--home", home}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestContractCommands(t *testing.T) {
	home := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "Counter.json")
	require.NoError(t, os.WriteFile(artifact, []byte(counterArtifact), 0o600))

	out, err := run(t, home, "contract", "add", "counter", artifact, "--address", "0x0000000000000000000000000000000000000c0c")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered counter")

	out, err = run(t, home, "signature", "counter", "add")
	require.NoError(t, err)
	assert.Equal(t, "0x1003e2d2", strings.TrimSpace(out))

	_, err = run(t, home, "signature", "counter", "reset")
	assert.Error(t, err)

	out, err = run(t, home, "contract", "remove", "counter")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed counter")

	_, err = run(t, home, "contract", "remove", "counter")
	assert.Error(t, err)
}

func TestContractAddRejectsBadInput(t *testing.T) {
	home := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "Counter.json")
	require.NoError(t, os.WriteFile(artifact, []byte(counterArtifact), 0o600))

	_, err := run(t, home, "contract", "add", "counter", artifact, "--address", "0x123")
	assert.Error(t, err)

	_, err = run(t, home, "contract", "add", "counter", filepath.Join(home, "missing.json"))
	assert.Error(t, err)
}

func TestInitWritesConfig(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, home, "init")
	require.NoError(t, err)
	assert.Contains(t, out, home)

	_, err = os.Stat(filepath.Join(home, "config", "pietd_config.json"))
	assert.NoError(t, err)
}

func TestDeployFlagValidation(t *testing.T) {
	home := t.TempDir()

	_, err := run(t, home, "deploy", "counter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--gas-limit")

	_, err = run(t, home, "deploy", "--gas-limit", "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract name or --data")

	_, err = run(t, home, "deploy", "counter", "--data", "0x6080", "--gas-limit", "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestPrintOutputRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, printOutput(map[string]string{"a": "b"}, "xml"))
}
