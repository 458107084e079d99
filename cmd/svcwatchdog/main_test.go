package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["install"])
	assert.True(t, names["uninstall"])
	assert.True(t, names["status"])
	assert.True(t, names["protect"])
}

func TestProtectCommandRegistersSubcommands(t *testing.T) {
	protect := newProtectCmd()

	names := make(map[string]bool)
	for _, c := range protect.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["seal"])
	assert.True(t, names["verify"])
	assert.True(t, names["encrypt"])
}

func TestEncryptCommandSucceedsWithDefaultPassword(t *testing.T) {
	protect := newProtectCmd()
	protect.SetArgs([]string{"encrypt", "hello world"})
	assert.NoError(t, protect.Execute())
}
