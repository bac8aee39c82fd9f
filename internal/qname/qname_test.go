package qname

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRoundTrip tests that every shape renders back to its input.
func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		shape Shape
	}{
		{"pkg::m::f", ShapeSimplePath},
		{"src.utils.helpers", ShapeSimplePath},
		{"f", ShapeSimplePath},
		{"pkg::impl pkg::Foo", ShapeInherentImpl},
		{"impl Vec<T>", ShapeInherentImpl},
		{"<Type as Trait>", ShapeTraitImpl},
		{"<pkg::Foo as pkg::Bar>::baz", ShapeTraitImplItem},
		{"<Vec<u8> as std::io::Write>::write", ShapeTraitImplItem},
		{`pkg::ffi::extern "C"`, ShapeExternBlock},
		{`extern "C"`, ShapeExternBlock},
		{"pkg::Map<K, V>::get", ShapeSimplePath},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, q.Shape())
			assert.Equal(t, tt.input, q.String())
		})
	}
}

// TestParseErrors tests that malformed names are rejected.
func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "  ", "a::::b", "::a", "a::", "<Foo>", "<Foo as Bar", "<Foo as Bar>x", "<Foo as Bar>::"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

// TestSimpleName tests the per-shape simple name.
func TestSimpleName(t *testing.T) {
	assert.Equal(t, "f", MustParse("pkg::m::f").SimpleName())
	assert.Equal(t, "Foo", MustParse("pkg::impl pkg::Foo<T>").SimpleName())
	assert.Equal(t, "Display", MustParse("<pkg::Foo as std::fmt::Display>").SimpleName())
	assert.Equal(t, "fmt", MustParse("<pkg::Foo as std::fmt::Display>::fmt").SimpleName())
	assert.Equal(t, "C", MustParse(`pkg::extern "C"`).SimpleName())
}

// TestIsChildOf tests the semantic containment predicate.
func TestIsChildOf(t *testing.T) {
	tests := []struct {
		name   string
		child  string
		parent string
		want   bool
	}{
		{"function under module", "pkg::m::f", "pkg::m", true},
		{"nested deeper", "pkg::m::f", "pkg", true},
		{"sibling prefix text", "pkg::mod2::f", "pkg::mod", false},
		{"equal names", "pkg::m", "pkg::m", false},
		{"trait impl item under module by type", "<pkg::Foo as other::Bar>::baz", "pkg", true},
		{"trait impl item under module by trait", "<std::Vec as pkg::Bar>::baz", "pkg", true},
		{"trait impl item not under unrelated", "<std::Vec as core::Bar>::baz", "pkg", false},
		{"trait impl item under its impl", "<pkg::Foo as pkg::Bar>::baz", "<pkg::Foo as pkg::Bar>", true},
		{"trait impl item not under other impl", "<pkg::Foo as pkg::Bar>::baz", "<pkg::Foo as pkg::Qux>", false},
		{"trait impl under module", "<pkg::Foo as pkg::Bar>", "pkg", true},
		{"inherent impl under module", "pkg::impl pkg::Foo", "pkg", true},
		{"method under inherent impl", "pkg::Foo::new", "pkg::impl pkg::Foo", true},
		{"extern fn under extern block", "pkg::puts", `pkg::extern "C"`, true},
		{"root extern fn", "puts", `extern "C"`, true},
		{"extern block under module", `pkg::ffi::extern "C"`, "pkg::ffi", true},
		{"dotted path", "src.utils.helpers.run", "src.utils.helpers", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.child).IsChildOf(MustParse(tt.parent)))
		})
	}
}

// TestParent tests stepping one level up per shape.
func TestParent(t *testing.T) {
	p, ok := MustParse("pkg::m::f").Parent()
	require.True(t, ok)
	assert.Equal(t, "pkg::m", p.String())

	p, ok = MustParse("<A as B>::m").Parent()
	require.True(t, ok)
	assert.Equal(t, ShapeTraitImpl, p.Shape())
	assert.Equal(t, "<A as B>", p.String())

	_, ok = MustParse("f").Parent()
	assert.False(t, ok)
}

// TestChild tests extending names.
func TestChild(t *testing.T) {
	assert.Equal(t, "pkg::m::f", MustParse("pkg::m").Child("f").String())
	assert.Equal(t, "a.b.c", MustParse("a.b").Child("c").String())
	assert.Equal(t, "<A as B>::m", MustParse("<A as B>").Child("m").String())
}

// TestInScope tests attaching a lexical scope to impl names.
func TestInScope(t *testing.T) {
	ti := MustParse("<Type as Trait>").InScope([]string{"m"})
	assert.Equal(t, []string{"m"}, ti.Scope())
	assert.Equal(t, "<Type as Trait>", ti.String())
	assert.True(t, ti.IsChildOf(MustParse("m")))

	impl := InherentImpl(nil, "Foo").InScope([]string{"pkg", "m"})
	assert.Equal(t, "pkg::m::impl Foo", impl.String())

	plain := MustParse("a::b").InScope([]string{"x"})
	assert.Equal(t, "a::b", plain.String())
	assert.Empty(t, plain.Scope())
}

// TestSplitTraitForm tests splitting UFCS-style names.
func TestSplitTraitForm(t *testing.T) {
	typ, trait, rest, ok := SplitTraitForm("<Foo<T> as From<u32>>::from")
	require.True(t, ok)
	assert.Equal(t, "Foo<T>", typ)
	assert.Equal(t, "From<u32>", trait)
	assert.Equal(t, "from", rest)

	_, _, rest, ok = SplitTraitForm("<A as B>")
	require.True(t, ok)
	assert.Empty(t, rest)

	for _, bad := range []string{"Foo::bar", "<Foo>::bar", "<A as B"} {
		_, _, _, ok := SplitTraitForm(bad)
		assert.False(t, ok, bad)
	}
}

// TestJSONRoundTrip tests that the structured form survives serialization.
func TestJSONRoundTrip(t *testing.T) {
	for _, q := range []QualifiedName{
		SimplePath(".", "a", "b"),
		InherentImpl([]string{"pkg"}, "pkg::Foo"),
		TraitImpl([]string{"pkg"}, "pkg::Foo", "pkg::Bar"),
		TraitImplItem("Foo", "Bar", "baz"),
		ExternBlock(nil, "C"),
	} {
		data, err := json.Marshal(q)
		require.NoError(t, err)
		var back QualifiedName
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, q.Equal(back), "round trip of %s", q)
		assert.Equal(t, q.Scope(), back.Scope())
		assert.Equal(t, q.Separator(), back.Separator())
	}
}
