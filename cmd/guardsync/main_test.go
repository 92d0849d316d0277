package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"discover", "sync", "verify", "report", "daemon"}

	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		assert.True(t, registered[name], "missing subcommand %s", name)
	}
}
