package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageBar(t *testing.T) {
	assert.Nil(t, stageBar("chunk", 10))

	load := stageBar("load", 12)
	require.NotNil(t, load)
	assert.Equal(t, 12, load.GetMax())

	discover := stageBar("discover", 1)
	require.NotNil(t, discover)
	assert.Equal(t, -1, discover.GetMax())

	// an empty embed stage still renders
	empty := stageBar("embed", 0)
	require.NotNil(t, empty)
	assert.Equal(t, -1, empty.GetMax())
}
