package rules

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/types"
)

func TestEmbeddedTablesLoad(t *testing.T) {
	for _, l := range lang.Names() {
		t.Run(string(l), func(t *testing.T) {
			table, err := Load(l)
			require.NoError(t, err)
			defer table.Close()

			require.NotEmpty(t, table.Rules)
			assert.True(t, sort.SliceIsSorted(table.Rules, func(i, j int) bool {
				return table.Rules[i].Precedence > table.Rules[j].Precedence
			}), "rules must be ordered by precedence, highest first")

			seen := map[int]bool{}
			for _, r := range table.Rules {
				assert.False(t, seen[r.Precedence], "precedence %d reused", r.Precedence)
				seen[r.Precedence] = true
				assert.NotNil(t, r.Query(), r.String())
				assert.Equal(t, l, r.Language)
				assert.NotEmpty(t, r.Name.Strategy, r.String())
			}
		})
	}
}

func TestLoadAllEmbedded(t *testing.T) {
	set, err := LoadAll("")
	require.NoError(t, err)
	defer set.Close()
	assert.Equal(t, lang.Names(), set.Languages())

	rust, ok := set.For(types.LanguageRust)
	require.True(t, ok)
	r, ok := rust.Rule("trait_impl_method")
	require.True(t, ok)
	assert.Equal(t, types.EntityMethod, r.EntityType)
	assert.Equal(t, []string{"{impl_type}::{name}"}, r.Aliases)
}

const validRust = `
language: rust
rules:
  - id: function
    precedence: 10
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
`

func TestParseDefaults(t *testing.T) {
	table, err := Parse(types.LanguageRust, []byte(validRust))
	require.NoError(t, err)
	defer table.Close()

	r := table.Rules[0]
	assert.Equal(t, NameCapture, r.Name.Strategy)
	assert.Equal(t, []string{"name"}, r.NameCaptures())
	assert.Equal(t, MetaNone, r.Metadata)
	assert.Equal(t, RelNone, r.Relationships)
	assert.True(t, r.HasCapture("function"))
	assert.False(t, r.HasCapture("missing"))

	idx, ok := r.CaptureIndex("function")
	require.True(t, ok)
	assert.Equal(t, idx, r.MainCaptureIndex())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name       string
		rule       string
		field      string
		suggestion string
	}{
		{
			name: "main capture missing",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: functon`,
			field:      "capture",
			suggestion: "function",
		},
		{
			name: "unknown metadata extractor",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    metadata: fuction`,
			field:      "metadata",
			suggestion: "function",
		},
		{
			name: "unknown relationship extractor",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    relationships: imp`,
			field:      "relationships",
			suggestion: "impl",
		},
		{
			name: "unknown entity type",
			rule: `
  - id: f
    precedence: 1
    entity_type: fnction
    query: "(function_item name: (identifier) @name) @function"
    capture: function`,
			field:      "entity_type",
			suggestion: "function",
		},
		{
			name: "query does not compile",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(no_such_node) @function"
    capture: function`,
			field: "query",
		},
		{
			name: "unsupported query predicate",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "((function_item name: (identifier) @name) @function (#frobnicate? @name \"x\"))"
    capture: function`,
			field: "query",
		},
		{
			name: "template placeholder unknown",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    qualified_name: "{scop}::{name}"`,
			field:      "qualified_name",
			suggestion: "scope",
		},
		{
			name: "unknown predicate",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    predicates:
      - { name: has-chld, capture: function, args: [block] }`,
			field:      "predicates",
			suggestion: "has-child",
		},
		{
			name: "predicate without kinds",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    predicates:
      - { name: has-child, capture: function }`,
			field: "predicates",
		},
		{
			name: "unknown name strategy",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    name: { strategy: positonal }`,
			field:      "name",
			suggestion: "positional",
		},
		{
			name: "static name without value",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
    name: { strategy: static }`,
			field: "name",
		},
		{
			name: "duplicate precedence",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
  - id: g
    precedence: 1
    entity_type: struct
    query: "(struct_item name: (type_identifier) @name) @struct"
    capture: struct`,
			field: "precedence",
		},
		{
			name: "duplicate id",
			rule: `
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
  - id: f
    precedence: 2
    entity_type: struct
    query: "(struct_item name: (type_identifier) @name) @struct"
    capture: struct`,
			field: "id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(types.LanguageRust, []byte("language: rust\nrules:"+tt.rule+"\n"))
			require.Error(t, err)

			var rde *cgerrors.RuleDefinitionError
			require.True(t, errors.As(err, &rde), "got %T: %v", err, err)
			assert.Equal(t, tt.field, rde.Field)
			assert.Equal(t, "rust", rde.Language)
			if tt.suggestion != "" {
				assert.Equal(t, tt.suggestion, rde.Suggestion)
				assert.Contains(t, err.Error(), "did you mean")
			}
		})
	}
}

func TestParseUnknownLanguage(t *testing.T) {
	_, err := Parse(types.Language("cobol"), []byte(validRust))
	require.Error(t, err)
}

func TestLoadAllOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust.yaml"), []byte(validRust), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python.yaml"), []byte(`
language: python
rules:
  - id: f
    precedence: 1
    entity_type: function
    query: "(function_definition name: (identifier) @name) @function"
    capture: nope
`), 0644))

	set, err := LoadAll(dir, types.LanguageRust, types.LanguagePython, types.LanguageGo)
	require.Error(t, err)
	defer set.Close()

	// The broken python table blocks python only
	assert.Equal(t, []types.Language{types.LanguageGo, types.LanguageRust}, set.Languages())

	rust, ok := set.For(types.LanguageRust)
	require.True(t, ok)
	assert.Len(t, rust.Rules, 1)

	var rde *cgerrors.RuleDefinitionError
	require.True(t, errors.As(err, &rde))
	assert.Equal(t, "python", rde.Language)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"impl_type", "trait", "name"}, Placeholders("<{impl_type} as {trait}>::{name}"))
	assert.Empty(t, Placeholders("plain"))
	assert.Equal(t, []string{"scope"}, Placeholders("{scope}::{unterminated"))
}

func TestSkipsScope(t *testing.T) {
	r := &Rule{SkipScopes: []string{"foreign_mod_item"}}
	assert.True(t, r.SkipsScope("foreign_mod_item"))
	assert.False(t, r.SkipsScope("mod_item"))
}
