package modeldb

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRunsPrimaryWhenFree(t *testing.T) {
	var g reentrancyGate

	ran := false
	err := g.Run(func() error { ran = true; return nil }, func() { t.Fatal("fallback must not run") })
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, g.Busy())
}

func TestGateDivertsNestedRun(t *testing.T) {
	var g reentrancyGate

	nestedPrimary := false
	fallbackRan := false
	err := g.Run(func() error {
		assert.True(t, g.Busy())
		return g.Run(
			func() error { nestedPrimary = true; return nil },
			func() { fallbackRan = true },
		)
	}, nil)

	require.NoError(t, err)
	assert.False(t, nestedPrimary, "nested primary must not run while the gate is held")
	assert.True(t, fallbackRan)
	assert.False(t, g.Busy())
}

func TestGateRestoresSlotOnError(t *testing.T) {
	var g reentrancyGate

	boom := errors.New("boom")
	err := g.Run(func() error { return boom }, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, g.Busy())
}

func TestGateRestoresSlotOnPanic(t *testing.T) {
	var g reentrancyGate

	func() {
		defer func() { _ = recover() }()
		_ = g.Run(func() error { panic("mid-section") }, nil)
	}()

	assert.False(t, g.Busy())
}
