package diag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"jitmanifest/internal/diag"
)

func TestBag(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	bag := diag.NewBag(zap.New(core))

	bag.Add(diag.KindInput, "jit log: line 3: unexpected end of JSON input")
	bag.Addf(diag.KindCorrelation, "FunctionID 0x%X from JIT log not found in metadata log", 0x7ff8)

	require.Equal(t, 2, bag.Len())
	assert.Equal(t, 1, bag.Count(diag.KindInput))
	assert.Equal(t, 0, bag.Count(diag.KindResolution))
	assert.Equal(t, "jit log: line 3: unexpected end of JSON input\nFunctionID 0x7FF8 from JIT log not found in metadata log", bag.Text())
	assert.Equal(t, "correlation: FunctionID 0x7FF8 from JIT log not found in metadata log", bag.Items()[1].String())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "correlation", entries[1].ContextMap()["kind"])
}

func TestBag_Merge(t *testing.T) {
	a := diag.NewBag(nil)
	b := diag.NewBag(nil)
	a.Add(diag.KindInput, "first")
	b.Add(diag.KindResolution, "second")

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, "first\nsecond", a.Text())
	assert.Empty(t, diag.NewBag(nil).Text())
}
