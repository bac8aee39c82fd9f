// Package rules holds the declarative per-language rule tables that map
// syntax patterns to entities. Tables are plain YAML data; loading compiles
// the queries and validates every reference so that a broken table fails at
// startup instead of silently extracting less.
package rules

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/types"
)

// NameStrategy selects how an entity's simple name is derived.
type NameStrategy string

const (
	NameCapture    NameStrategy = "capture"    // text of one capture
	NameFallback   NameStrategy = "fallback"   // first capture present
	NameStatic     NameStrategy = "static"     // fixed value
	NameTemplate   NameStrategy = "template"   // template over captures
	NameFilePath   NameStrategy = "file_path"  // last module segment of the file
	NamePackage    NameStrategy = "package"    // package/crate name
	NamePositional NameStrategy = "positional" // index among siblings: 0, 1, ...
	NameAnonymous  NameStrategy = "anonymous"  // synthetic name for unnamed constructs
	NameQualified  NameStrategy = "qualified"  // simple name of the built qualified name
)

var nameStrategies = []NameStrategy{
	NameCapture, NameFallback, NameStatic, NameTemplate, NameFilePath,
	NamePackage, NamePositional, NameAnonymous, NameQualified,
}

// MetadataExtractor names a metadata extraction routine.
type MetadataExtractor string

const (
	MetaNone     MetadataExtractor = "none"
	MetaFunction MetadataExtractor = "function"
	MetaMethod   MetadataExtractor = "method"
	MetaType     MetadataExtractor = "type"
	MetaConstant MetadataExtractor = "constant"
	MetaProperty MetadataExtractor = "property"
	MetaImpl     MetadataExtractor = "impl"
	MetaModule   MetadataExtractor = "module"
)

// MetadataExtractors lists every valid metadata extractor id.
var MetadataExtractors = []MetadataExtractor{
	MetaNone, MetaFunction, MetaMethod, MetaType, MetaConstant, MetaProperty, MetaImpl, MetaModule,
}

// RelationshipExtractor names a reference extraction routine.
type RelationshipExtractor string

const (
	RelNone      RelationshipExtractor = "none"
	RelFunction  RelationshipExtractor = "function"
	RelMethod    RelationshipExtractor = "method"
	RelClass     RelationshipExtractor = "class"
	RelStruct    RelationshipExtractor = "struct"
	RelTrait     RelationshipExtractor = "trait"
	RelInterface RelationshipExtractor = "interface"
	RelImpl      RelationshipExtractor = "impl"
	RelModule    RelationshipExtractor = "module"
	RelType      RelationshipExtractor = "type"
)

// RelationshipExtractors lists every valid relationship extractor id.
var RelationshipExtractors = []RelationshipExtractor{
	RelNone, RelFunction, RelMethod, RelClass, RelStruct, RelTrait, RelInterface, RelImpl, RelModule, RelType,
}

// Predicates lists the structural post-filters the matcher evaluates.
var Predicates = []string{
	"has-child", "not-has-child",
	"has-parent", "not-has-parent",
	"has-ancestor", "not-has-ancestor",
	"has-grandparent", "not-has-grandparent",
	"enclosing-is", "enclosing-is-not",
}

// Builtin template placeholders; every other placeholder must be a capture.
var Builtins = []string{"scope", "name", "package", "module", "module_parent", "anon"}

// NameSpec configures name derivation.
type NameSpec struct {
	Strategy NameStrategy `yaml:"strategy"`
	Captures []string     `yaml:"captures"`
	Value    string       `yaml:"value"`
}

// PredicateSpec is one structural post-filter applied to a capture.
type PredicateSpec struct {
	Name    string   `yaml:"name"`
	Capture string   `yaml:"capture"`
	Args    []string `yaml:"args"`
}

// Rule maps one syntax construct to an entity type.
type Rule struct {
	ID            string                `yaml:"id"`
	Precedence    int                   `yaml:"precedence"`
	EntityType    types.EntityType      `yaml:"entity_type"`
	QueryText     string                `yaml:"query"`
	Capture       string                `yaml:"capture"`
	Name          NameSpec              `yaml:"name"`
	QualifiedName string                `yaml:"qualified_name"`
	ParentScope   string                `yaml:"parent_scope"`
	Aliases       []string              `yaml:"aliases"`
	Predicates    []PredicateSpec       `yaml:"predicates"`
	Metadata      MetadataExtractor     `yaml:"metadata"`
	Relationships RelationshipExtractor `yaml:"relationships"`
	Visibility    types.Visibility      `yaml:"visibility"`
	SkipScopes    []string              `yaml:"skip_scopes"`
	Disjoint      bool                  `yaml:"disjoint"`
	Anonymous     bool                  `yaml:"anonymous"`

	Language types.Language `yaml:"-"`

	query     *tree_sitter.Query
	mainIndex uint
	captures  map[string]uint
}

// Query returns the compiled pattern query.
func (r *Rule) Query() *tree_sitter.Query { return r.query }

// MainCaptureIndex is the query index of the main capture.
func (r *Rule) MainCaptureIndex() uint { return r.mainIndex }

// CaptureIndex returns the query index for a capture name.
func (r *Rule) CaptureIndex(name string) (uint, bool) {
	i, ok := r.captures[name]
	return i, ok
}

// HasCapture reports whether the query declares the capture.
func (r *Rule) HasCapture(name string) bool {
	_, ok := r.captures[name]
	return ok
}

// NameCaptures returns the captures consulted by capture/fallback naming.
func (r *Rule) NameCaptures() []string {
	if len(r.Name.Captures) > 0 {
		return r.Name.Captures
	}
	return []string{"name"}
}

// SkipsScope reports whether the scope walk passes over kind.
func (r *Rule) SkipsScope(kind string) bool {
	for _, k := range r.SkipScopes {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *Rule) String() string {
	return string(r.Language) + "/" + r.ID
}

// Placeholders lists the {name} placeholders of a template in order.
func Placeholders(tmpl string) []string {
	var out []string
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			return out
		}
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			return out
		}
		out = append(out, tmpl[open+1:open+end])
		tmpl = tmpl[open+end+1:]
	}
}
