package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleNameOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"helper", "helper"},
		{"crate::config::parse", "parse"},
		{"<Point as Display>::fmt", "fmt"},
		{"Vec<String>::new", "new"},
		{"HashMap<K, Vec<V>>", "HashMap"},
		{"this.run", "run"},
		{"./utils/helpers", "helpers"},
		{"App\\Models\\User", "User"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SimpleNameOf(tt.in))
		})
	}
}

func TestNewSourceReference(t *testing.T) {
	loc := Location{FilePath: "src/lib.rs", StartLine: 3, StartColumn: 5}
	ref, err := NewSourceReference("  crate::util::helper ", false, loc, RefCall)
	require.NoError(t, err)
	assert.Equal(t, "crate::util::helper", ref.Target)
	assert.Equal(t, "helper", ref.SimpleName)
	assert.Equal(t, "src/lib.rs:3:5", ref.Location.String())

	_, err = NewSourceReference(" ", true, loc, RefCall)
	assert.ErrorIs(t, err, ErrEmptyReference)
}

func TestNewExternalStub(t *testing.T) {
	tests := []struct {
		name string
		id   string
		hint string
	}{
		{"crate::serde::Serialize<T>", "external::serde::Serialize", "serde"},
		{"external::tokio::spawn", "external::tokio::spawn", "tokio"},
		{"Vec", "external::Vec", ""},
		{"lodash.debounce", "external::lodash.debounce", "lodash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := NewExternalStub(tt.name)
			assert.Equal(t, tt.id, stub.ID)
			assert.Equal(t, tt.hint, stub.PackageHint)
		})
	}
}

func TestReciprocal(t *testing.T) {
	assert.Equal(t, RelCalledBy, RelCalls.Reciprocal())
	assert.Equal(t, RelHasSubclass, RelInheritsFrom.Reciprocal())
	assert.Equal(t, RelReexportedBy, RelReexports.Reciprocal())
	assert.Empty(t, RelContains.Reciprocal())
	assert.Empty(t, RelAssociates.Reciprocal())
}

func TestEntityTypeClassification(t *testing.T) {
	et, ok := ParseEntityType("trait")
	require.True(t, ok)
	assert.True(t, et.IsType())
	assert.True(t, et.IsContainer())
	assert.False(t, et.IsCallable())

	_, ok = ParseEntityType("closure")
	assert.False(t, ok)

	assert.Len(t, EntityTypes(), 19)
	v, ok := ParseVisibility("internal")
	require.True(t, ok)
	assert.Equal(t, VisibilityInternal, v)
}

func TestRelationshipRefs(t *testing.T) {
	var refs RelationshipRefs
	assert.True(t, refs.IsEmpty())

	trait := SourceReference{Target: "Display", SimpleName: "Display", Kind: RefImplements}
	refs.ImplementsTrait = &trait
	refs.Implements = []SourceReference{{Target: "Debug", SimpleName: "Debug", Kind: RefImplements}}
	assert.False(t, refs.IsEmpty())

	all := refs.AllImplements()
	require.Len(t, all, 2)
	assert.Equal(t, "Display", all[0].Target)
	assert.Equal(t, "Debug", all[1].Target)
}
