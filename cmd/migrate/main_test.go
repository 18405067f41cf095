package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandArgs(t *testing.T) {
	args, err := commandArgs("up", "")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = commandArgs("down-to", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, args)

	_, err = commandArgs("up-to", "")
	assert.Error(t, err)

	_, err = commandArgs("redo-everything", "")
	assert.Error(t, err)
}
