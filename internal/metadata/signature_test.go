package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmanifest/internal/clr"
	"jitmanifest/internal/clr/clrtest"
)

// Coded TypeRef values used by the blobs below.
const (
	dictionaryRef = 1<<2 | codedTypeRef
	listRef       = 2<<2 | codedTypeRef
)

type fixtureContext struct {
	fixture *clrtest.Fixture
	refs    map[uint32]*clr.Type
}

func newFixtureContext() *fixtureContext {
	f := clrtest.New()
	return &fixtureContext{
		fixture: f,
		refs: map[uint32]*clr.Type{
			dictionaryRef: f.Core("System.Collections.Generic.Dictionary`2"),
			listRef:       f.Core("System.Collections.Generic.List`1"),
		},
	}
}

func (c *fixtureContext) coreType(fullName string) (*clr.Type, error) {
	return clr.CoreType(c.fixture, fullName)
}

func (c *fixtureContext) typeDefOrRef(coded uint32) (*clr.Type, error) {
	t, found := c.refs[coded]
	if !found {
		return nil, fmt.Errorf("%w: coded index 0x%x", clr.ErrTypeNotFound, coded)
	}
	return t, nil
}

func TestDecodeMethodSig(t *testing.T) {
	ctx := newFixtureContext()
	core := ctx.fixture.Core
	int32, int64, str, void := core("System.Int32"), core("System.Int64"), core("System.String"), core("System.Void")
	dictionary, list := ctx.refs[dictionaryRef], ctx.refs[listRef]

	tests := []struct {
		name   string
		blob   []byte
		arity  int
		ret    *clr.Type
		params []*clr.Type
	}{
		{
			name:   "static int32 Compute(int32)",
			blob:   []byte{0x00, 0x01, 0x08, 0x08},
			ret:    int32,
			params: []*clr.Type{int32},
		},
		{
			name:   "instance !!0 GenericMethod<1>(!!0)",
			blob:   []byte{0x30, 0x01, 0x01, 0x1e, 0x00, 0x1e, 0x00},
			arity:  1,
			ret:    clr.MethodVar(0),
			params: []*clr.Type{clr.MethodVar(0)},
		},
		{
			name:   "void MethodWithNestedGeneric(Dictionary<string, List<int32>>)",
			blob:   []byte{0x20, 0x01, 0x01, 0x15, 0x12, dictionaryRef, 0x02, 0x0e, 0x15, 0x12, listRef, 0x01, 0x08},
			ret:    void,
			params: []*clr.Type{clrtest.Generic(dictionary, str, clrtest.Generic(list, int32))},
		},
		{
			name:   "void Fill(ref int32, string[])",
			blob:   []byte{0x20, 0x02, 0x01, 0x10, 0x08, 0x1d, 0x0e},
			ret:    void,
			params: []*clr.Type{clr.ByRef(int32), clr.SZArray(str)},
		},
		{
			name:   "int32[,] Shape(int32*, modopt int64)",
			blob:   []byte{0x00, 0x02, 0x14, 0x08, 0x02, 0x01, 0x03, 0x00, 0x0f, 0x08, 0x20, listRef, 0x0a},
			ret:    clr.MDArray(int32, 2),
			params: []*clr.Type{clr.Pointer(int32), int64},
		},
		{
			name: "!0 Get()",
			blob: []byte{0x20, 0x00, 0x13, 0x00},
			ret:  clr.TypeVar(0),
		},
		{
			name:   "void Callback(fnptr)",
			blob:   []byte{0x00, 0x01, 0x01, 0x1b, 0x00, 0x01, 0x01, 0x08},
			ret:    void,
			params: []*clr.Type{core("System.IntPtr")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arity, err := methodSigArity(tt.blob)
			require.NoError(t, err)
			assert.Equal(t, tt.arity, arity)

			sig, err := decodeMethodSig(tt.blob, ctx)
			require.NoError(t, err)
			assert.True(t, clr.Identical(tt.ret, sig.Return), "return type %s", sig.Return)
			assert.True(t, clr.IdenticalAll(tt.params, sig.Params), "parameters %v", sig.Params)
		})
	}
}

func TestDecodeMethodSig_Errors(t *testing.T) {
	ctx := newFixtureContext()

	tests := []struct {
		name string
		blob []byte
		err  error
	}{
		{"empty", nil, ErrBadSignature},
		{"truncated parameters", []byte{0x20, 0x02, 0x01, 0x08}, ErrBadSignature},
		{"unknown element type", []byte{0x20, 0x01, 0x01, 0x60}, ErrUnsupportedSignature},
		{"generic instance arity", []byte{0x20, 0x01, 0x01, 0x15, 0x12, dictionaryRef, 0x01, 0x08}, clr.ErrArityMismatch},
		{"generic instance of primitive", []byte{0x20, 0x01, 0x01, 0x15, 0x08, 0x01, 0x01, 0x08}, ErrBadSignature},
		{"unresolvable type", []byte{0x20, 0x01, 0x01, 0x12, 0x7d}, clr.ErrTypeNotFound},
		{"array of rank zero", []byte{0x00, 0x00, 0x14, 0x08, 0x00, 0x00, 0x00}, ErrBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeMethodSig(tt.blob, ctx)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCompressedIntegers(t *testing.T) {
	tests := []struct {
		blob []byte
		want uint32
	}{
		{[]byte{0x03}, 0x03},
		{[]byte{0x7f}, 0x7f},
		{[]byte{0x80, 0x80}, 0x80},
		{[]byte{0xae, 0x57}, 0x2e57},
		{[]byte{0xbf, 0xff}, 0x3fff},
		{[]byte{0xc0, 0x00, 0x40, 0x00}, 0x4000},
		{[]byte{0xdf, 0xff, 0xff, 0xff}, 0x1fffffff},
	}
	for _, tt := range tests {
		r := sigReader{blob: tt.blob}
		got, err := r.compressed()
		require.NoError(t, err, "% x", tt.blob)
		assert.Equal(t, tt.want, got, "% x", tt.blob)
		assert.Equal(t, len(tt.blob), r.pos)
	}

	for _, bad := range [][]byte{{0xe0}, {0x80}, {0xc0, 0x00}} {
		r := sigReader{blob: bad}
		_, err := r.compressed()
		assert.ErrorIs(t, err, ErrBadSignature, "% x", bad)
	}
}

func TestSplitTypeDefOrRef(t *testing.T) {
	tag, row := splitTypeDefOrRef(0x49)
	assert.Equal(t, uint32(codedTypeRef), tag)
	assert.Equal(t, uint32(0x12), row)
}
