package descriptor_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmanifest/internal/clr"
	"jitmanifest/internal/clr/clrtest"
	"jitmanifest/internal/descriptor"
)

func core(name string) descriptor.TypeNode {
	return descriptor.TypeNode{Name: name, Assembly: clrtest.CoreLibName}
}

func TestEncodeType(t *testing.T) {
	f := clrtest.New()
	int32, str := f.Core("System.Int32"), f.Core("System.String")
	list := f.Core("System.Collections.Generic.List`1")
	dictionary := f.Core("System.Collections.Generic.Dictionary`2")

	tests := []struct {
		name string
		typ  *clr.Type
		want descriptor.TypeNode
	}{
		{
			name: "non-generic",
			typ:  str,
			want: core("System.String"),
		},
		{
			name: "generic definition",
			typ:  list,
			want: core("System.Collections.Generic.List`1"),
		},
		{
			name: "closed generic",
			typ:  clrtest.Generic(dictionary, str, int32),
			want: descriptor.TypeNode{
				Name:             "System.Collections.Generic.Dictionary`2",
				Assembly:         clrtest.CoreLibName,
				GenericArguments: []descriptor.TypeNode{core("System.String"), core("System.Int32")},
			},
		},
		{
			name: "nested type of a closed generic",
			typ:  clrtest.Generic(f.Sample("Samples.Outer`1+Inner`1"), int32, str),
			want: descriptor.TypeNode{
				Name:             "Samples.Outer`1+Inner`1",
				Assembly:         clrtest.SamplesName,
				GenericArguments: []descriptor.TypeNode{core("System.Int32"), core("System.String")},
			},
		},
		{
			name: "array of closed generic",
			typ:  clr.SZArray(clrtest.Generic(list, int32)),
			want: descriptor.TypeNode{
				Name:             "System.Collections.Generic.List`1[]",
				Assembly:         clrtest.CoreLibName,
				GenericArguments: []descriptor.TypeNode{core("System.Int32")},
			},
		},
		{
			name: "by-ref to multi-dimensional array",
			typ:  clr.ByRef(clr.MDArray(int32, 3)),
			want: core("System.Int32[,,]&"),
		},
		{
			name: "pointer",
			typ:  clr.Pointer(int32),
			want: core("System.Int32*"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := descriptor.EncodeType(tt.typ)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EncodeType() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTypeRoundTrip(t *testing.T) {
	f := clrtest.New()
	other := clrtest.New()
	int32, str := f.Core("System.Int32"), f.Core("System.String")
	list := f.Core("System.Collections.Generic.List`1")
	dictionary := f.Core("System.Collections.Generic.Dictionary`2")
	sampleGeneric := f.Sample("Samples.SampleGeneric`1")

	types := []*clr.Type{
		int32,
		str,
		f.Sample("Samples.MethodSample"),
		list,
		dictionary,
		f.Sample("Samples.Outer`1+Inner`1"),
		clrtest.Generic(dictionary, str, int32),
		clrtest.Generic(dictionary, str, clrtest.Generic(list, clrtest.Generic(sampleGeneric, int32))),
		clr.SZArray(str),
		clr.MDArray(int32, 1),
		clr.MDArray(clrtest.Generic(list, str), 2),
		clr.ByRef(clr.SZArray(clrtest.Generic(list, int32))),
		clr.Pointer(clr.Pointer(int32)),
	}
	for _, typ := range types {
		t.Run(typ.FullName(), func(t *testing.T) {
			data, err := descriptor.SerializeType(typ)
			require.NoError(t, err)

			decoded, err := descriptor.DeserializeType(data, other)
			require.NoError(t, err)
			assert.True(t, clr.Identical(typ, decoded), "decoded %s", decoded)
		})
	}
}

func TestTypeRoundTrip_PreservesNestingDepth(t *testing.T) {
	f := clrtest.New()
	int32, str := f.Core("System.Int32"), f.Core("System.String")
	list := f.Core("System.Collections.Generic.List`1")
	dictionary := f.Core("System.Collections.Generic.Dictionary`2")
	typ := clrtest.Generic(dictionary, str, clrtest.Generic(list, clrtest.Generic(f.Sample("Samples.SampleGeneric`1"), int32)))

	node := descriptor.EncodeType(typ)
	depth := 0
	for n := &node; len(n.GenericArguments) > 0; n = &n.GenericArguments[len(n.GenericArguments)-1] {
		depth++
	}
	assert.Equal(t, 3, depth)

	decoded, err := descriptor.DecodeType(node, f)
	require.NoError(t, err)
	inner := decoded.GenericArguments()[1]
	assert.True(t, clr.Identical(clrtest.Generic(list, clrtest.Generic(f.Sample("Samples.SampleGeneric`1"), int32)), inner))
	assert.True(t, clr.Identical(int32, inner.GenericArguments()[0].GenericArguments()[0]))
}

func TestEncodeType_OmitsArgumentsOfDefinitions(t *testing.T) {
	f := clrtest.New()

	data, err := descriptor.SerializeType(f.Core("System.Collections.Generic.Dictionary`2"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "GenericArguments")
	assert.Equal(t, "System.Collections.Generic.Dictionary`2", raw["Name"])
	assert.Equal(t, clrtest.CoreLibName, raw["Assembly"])
}

func TestDecodeType_FollowsForwarders(t *testing.T) {
	f := clrtest.New()

	decoded, err := descriptor.DecodeType(descriptor.TypeNode{Name: "System.Int32", Assembly: clrtest.RuntimeName}, f)
	require.NoError(t, err)
	assert.Equal(t, clrtest.CoreLibName, decoded.Unit().Name())
}

func TestDecodeType_Errors(t *testing.T) {
	f := clrtest.New()

	tests := []struct {
		name string
		node descriptor.TypeNode
		err  error
	}{
		{"blank name", descriptor.TypeNode{Name: " ", Assembly: clrtest.CoreLibName}, descriptor.ErrMalformed},
		{"blank assembly", descriptor.TypeNode{Name: "System.Int32"}, descriptor.ErrMalformed},
		{
			"empty generic arguments",
			descriptor.TypeNode{Name: "System.Collections.Generic.List`1", Assembly: clrtest.CoreLibName, GenericArguments: []descriptor.TypeNode{}},
			descriptor.ErrMalformed,
		},
		{"bad generic parameter", descriptor.TypeNode{Name: "!x", Assembly: clrtest.SamplesName}, descriptor.ErrMalformed},
		{"unknown type", core("System.Missing"), descriptor.ErrNotFound},
		{"unknown assembly", descriptor.TypeNode{Name: "System.Int32", Assembly: "mscorlib"}, descriptor.ErrNotFound},
		{
			"arguments on a non-generic type",
			descriptor.TypeNode{Name: "System.String", Assembly: clrtest.CoreLibName, GenericArguments: []descriptor.TypeNode{core("System.Int32")}},
			descriptor.ErrNotFound,
		},
		{
			"wrong arity",
			descriptor.TypeNode{Name: "System.Collections.Generic.List`1", Assembly: clrtest.CoreLibName, GenericArguments: []descriptor.TypeNode{core("System.Int32"), core("System.Int32")}},
			descriptor.ErrNotFound,
		},
		{
			"malformed argument",
			descriptor.TypeNode{Name: "System.Collections.Generic.List`1", Assembly: clrtest.CoreLibName, GenericArguments: []descriptor.TypeNode{{Name: "System.Int32"}}},
			descriptor.ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := descriptor.DecodeType(tt.node, f)
			assert.Nil(t, decoded)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := descriptor.DecodeType(core("System.Missing"), f)
	assert.ErrorIs(t, err, clr.ErrTypeNotFound)
	assert.NotErrorIs(t, err, descriptor.ErrMalformed)
}

func TestDecodeType_GenericParameters(t *testing.T) {
	f := clrtest.New()

	typeVar, err := descriptor.DecodeType(descriptor.TypeNode{Name: "!1", Assembly: clrtest.SamplesName}, f)
	require.NoError(t, err)
	assert.True(t, clr.Identical(clr.TypeVar(1), typeVar))

	methodVar, err := descriptor.DecodeType(descriptor.TypeNode{Name: "!!0[]&", Assembly: clrtest.SamplesName}, f)
	require.NoError(t, err)
	assert.True(t, clr.Identical(clr.ByRef(clr.SZArray(clr.MethodVar(0))), methodVar))
}
