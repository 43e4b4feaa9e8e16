package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"name=Alex", "expr=a=b", "name=Sam", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Sam", "expr": "a=b", "empty": ""}, got)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestMergeCommand_TextFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "letter.txt")
	require.NoError(t, os.WriteFile(src, []byte("Dear ${name}, welcome to ${company}."), 0o644))
	values := filepath.Join(dir, "values.yaml")
	require.NoError(t, os.WriteFile(values, []byte("name: Jo\n"), 0o644))

	cmd := newMergeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{src, "--values", values, "--set", "name=Alex", "--preview"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Dear Alex, welcome to ____.", out.String())
}

func TestScanCommand(t *testing.T) {
	src := filepath.Join(t.TempDir(), "letter.txt")
	require.NoError(t, os.WriteFile(src, []byte("${b} ${a} ${b}"), 0o644))

	cmd := newScanCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{src})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "b\na\n", out.String())
}

func TestScanCommand_UnsupportedFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	cmd := newScanCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{src})
	assert.Error(t, cmd.Execute())
}
