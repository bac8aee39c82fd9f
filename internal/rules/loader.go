package rules

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/codegraph/internal/debug"
	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/types"
)

//go:embed tables/*.yaml
var tables embed.FS

// tableFiles maps languages to their embedded table; tsx shares the
// typescript table and compiles it against the TSX grammar.
var tableFiles = map[types.Language]string{
	types.LanguageRust:       "rust.yaml",
	types.LanguageTypeScript: "typescript.yaml",
	types.LanguageTSX:        "typescript.yaml",
	types.LanguageJavaScript: "javascript.yaml",
	types.LanguagePython:     "python.yaml",
	types.LanguageGo:         "go.yaml",
	types.LanguageJava:       "java.yaml",
	types.LanguageCSharp:     "csharp.yaml",
	types.LanguageCPP:        "cpp.yaml",
	types.LanguagePHP:        "php.yaml",
	types.LanguageZig:        "zig.yaml",
}

type document struct {
	Language string  `yaml:"language"`
	Rules    []*Rule `yaml:"rules"`
}

// Table is the validated rule set of one language, ordered by precedence,
// highest first.
type Table struct {
	Language types.Language
	Rules    []*Rule
	byID     map[string]*Rule
}

// Rule looks a rule up by id.
func (t *Table) Rule(id string) (*Rule, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// Close releases the compiled queries.
func (t *Table) Close() {
	for _, r := range t.Rules {
		if r.query != nil {
			r.query.Close()
			r.query = nil
		}
	}
}

// Load reads the embedded table for one language.
func Load(language types.Language) (*Table, error) {
	file, ok := tableFiles[language]
	if !ok {
		return nil, cgerrors.NewRuleDefinitionError(string(language), "", "language", "no rule table for language")
	}
	data, err := tables.ReadFile("tables/" + file)
	if err != nil {
		return nil, cgerrors.NewRuleDefinitionError(string(language), "", "table", "embedded table missing").WithUnderlying(err)
	}
	return Parse(language, data)
}

// Parse decodes and validates a YAML rule table for language.
func Parse(language types.Language, data []byte) (*Table, error) {
	spec, ok := lang.Get(language)
	if !ok {
		return nil, cgerrors.NewRuleDefinitionError(string(language), "", "language", "language not registered")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cgerrors.NewRuleDefinitionError(string(language), "", "table", "invalid YAML").WithUnderlying(err)
	}
	if len(doc.Rules) == 0 {
		return nil, cgerrors.NewRuleDefinitionError(string(language), "", "rules", "table has no rules")
	}

	t := &Table{Language: language, byID: make(map[string]*Rule, len(doc.Rules))}
	precedences := make(map[int]string, len(doc.Rules))
	for i, r := range doc.Rules {
		r.Language = language
		if r.ID == "" {
			t.Close()
			return nil, cgerrors.NewRuleDefinitionError(string(language), "#"+strconv.Itoa(i), "id", "rule has no id")
		}
		if _, dup := t.byID[r.ID]; dup {
			t.Close()
			return nil, cgerrors.NewRuleDefinitionError(string(language), r.ID, "id", "duplicate rule id")
		}
		if other, dup := precedences[r.Precedence]; dup {
			t.Close()
			return nil, cgerrors.NewRuleDefinitionError(string(language), r.ID, "precedence",
				fmt.Sprintf("precedence %d already used by rule %q", r.Precedence, other))
		}
		if err := validate(spec, r); err != nil {
			if r.query != nil {
				r.query.Close()
			}
			t.Close()
			return nil, err
		}
		precedences[r.Precedence] = r.ID
		t.byID[r.ID] = r
		t.Rules = append(t.Rules, r)
	}

	// Total order fixed once, here; table position never breaks ties
	sort.Slice(t.Rules, func(i, j int) bool { return t.Rules[i].Precedence > t.Rules[j].Precedence })

	debug.LogRules("loaded %d rules for %s\n", len(t.Rules), language)
	return t, nil
}

// Set holds the tables of every loaded language.
type Set struct {
	tables map[types.Language]*Table
}

// NewSet groups already parsed tables. A later table replaces an earlier one
// of the same language.
func NewSet(tables ...*Table) *Set {
	s := &Set{tables: make(map[types.Language]*Table, len(tables))}
	for _, t := range tables {
		s.tables[t.Language] = t
	}
	return s
}

// For returns the table of a language.
func (s *Set) For(language types.Language) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tables[language]
	return t, ok
}

// Languages lists the loaded languages in a stable order.
func (s *Set) Languages() []types.Language {
	out := make([]types.Language, 0, len(s.tables))
	for l := range s.tables {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close releases every table.
func (s *Set) Close() {
	for _, t := range s.tables {
		t.Close()
	}
}

// LoadAll loads the tables of the given languages (all registered ones when
// none are given). A table in overrideDir named <language>.yaml replaces the
// embedded one. A broken table blocks only its own language: the returned
// Set holds every language that loaded, and the error lists the rest.
func LoadAll(overrideDir string, languages ...types.Language) (*Set, error) {
	if len(languages) == 0 {
		languages = lang.Names()
	}
	set := &Set{tables: make(map[types.Language]*Table, len(languages))}
	var errs []error
	for _, l := range languages {
		t, err := loadOne(overrideDir, l)
		if err != nil {
			debug.LogRules("rule table for %s rejected: %v\n", l, err)
			errs = append(errs, err)
			continue
		}
		set.tables[l] = t
	}
	return set, cgerrors.NewMultiError(errs).ErrorOrNil()
}

func loadOne(overrideDir string, language types.Language) (*Table, error) {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, string(language)+".yaml")
		data, err := os.ReadFile(path)
		if err == nil {
			debug.LogRules("using override table %s\n", path)
			return Parse(language, data)
		}
		if !os.IsNotExist(err) {
			return nil, cgerrors.NewRuleDefinitionError(string(language), "", "table", "cannot read override").WithUnderlying(err)
		}
	}
	return Load(language)
}

func validate(spec *lang.Spec, r *Rule) error {
	fail := func(field, reason string) *cgerrors.RuleDefinitionError {
		return cgerrors.NewRuleDefinitionError(string(r.Language), r.ID, field, reason)
	}

	if _, ok := types.ParseEntityType(string(r.EntityType)); !ok {
		known := make([]string, 0)
		for _, et := range types.EntityTypes() {
			known = append(known, string(et))
		}
		return fail("entity_type", fmt.Sprintf("unknown entity type %q", r.EntityType)).WithSuggestion(string(r.EntityType), known)
	}
	if r.Visibility != "" {
		if _, ok := types.ParseVisibility(string(r.Visibility)); !ok {
			return fail("visibility", fmt.Sprintf("unknown visibility %q", r.Visibility)).
				WithSuggestion(string(r.Visibility), []string{"public", "private", "protected", "internal"})
		}
	}

	if r.QueryText == "" {
		return fail("query", "empty query")
	}
	q, qerr := tree_sitter.NewQuery(spec.Language(), r.QueryText)
	if q == nil {
		// The binding can hand back a typed nil error; the query is what counts
		return fail("query", "query does not compile").WithUnderlying(queryError(qerr))
	}
	r.query = q

	// Predicates the query engine cannot evaluate would be silently ignored
	for i := uint(0); i < q.PatternCount(); i++ {
		if preds := q.GeneralPredicates(i); len(preds) > 0 {
			return fail("query", fmt.Sprintf("unsupported query predicate #%s; use a rule predicate instead", preds[0].Operator))
		}
	}

	names := q.CaptureNames()
	r.captures = make(map[string]uint, len(names))
	for i, n := range names {
		r.captures[n] = uint(i)
	}

	if r.Capture == "" {
		return fail("capture", "main capture not set")
	}
	idx, ok := r.captures[r.Capture]
	if !ok {
		return fail("capture", fmt.Sprintf("main capture @%s not in query", r.Capture)).WithSuggestion(r.Capture, names)
	}
	r.mainIndex = idx

	if err := validateName(r, names, fail); err != nil {
		return err
	}

	if err := validateTemplate(r, "qualified_name", r.QualifiedName, names, fail); err != nil {
		return err
	}
	if err := validateTemplate(r, "parent_scope", r.ParentScope, names, fail); err != nil {
		return err
	}
	for _, alias := range r.Aliases {
		if err := validateTemplate(r, "aliases", alias, names, fail); err != nil {
			return err
		}
	}

	known := make([]string, len(Predicates))
	copy(known, Predicates)
	for _, p := range r.Predicates {
		if !contains(known, p.Name) {
			return fail("predicates", fmt.Sprintf("unknown predicate %q", p.Name)).WithSuggestion(p.Name, known)
		}
		if _, ok := r.captures[p.Capture]; !ok {
			return fail("predicates", fmt.Sprintf("predicate %s refers to missing capture @%s", p.Name, p.Capture)).WithSuggestion(p.Capture, names)
		}
		if len(p.Args) == 0 {
			return fail("predicates", fmt.Sprintf("predicate %s needs at least one node kind", p.Name))
		}
	}

	if r.Metadata == "" {
		r.Metadata = MetaNone
	}
	if !containsMeta(r.Metadata) {
		known := make([]string, 0, len(MetadataExtractors))
		for _, m := range MetadataExtractors {
			known = append(known, string(m))
		}
		return fail("metadata", fmt.Sprintf("unknown metadata extractor %q", r.Metadata)).WithSuggestion(string(r.Metadata), known)
	}
	if r.Relationships == "" {
		r.Relationships = RelNone
	}
	if !containsRel(r.Relationships) {
		known := make([]string, 0, len(RelationshipExtractors))
		for _, m := range RelationshipExtractors {
			known = append(known, string(m))
		}
		return fail("relationships", fmt.Sprintf("unknown relationship extractor %q", r.Relationships)).WithSuggestion(string(r.Relationships), known)
	}
	return nil
}

func validateName(r *Rule, names []string, fail func(string, string) *cgerrors.RuleDefinitionError) error {
	if r.Anonymous {
		if r.Name.Strategy != "" && r.Name.Strategy != NameAnonymous {
			return fail("name", fmt.Sprintf("anonymous rule cannot use strategy %q", r.Name.Strategy))
		}
		r.Name.Strategy = NameAnonymous
	}
	if r.Name.Strategy == "" {
		r.Name.Strategy = NameCapture
	}

	switch r.Name.Strategy {
	case NameCapture, NameFallback:
		captures := r.NameCaptures()
		if r.Name.Strategy == NameCapture && len(captures) != 1 {
			return fail("name", "capture strategy takes exactly one capture")
		}
		for _, c := range captures {
			if _, ok := r.captures[c]; !ok {
				return fail("name", fmt.Sprintf("name capture @%s not in query", c)).WithSuggestion(c, names)
			}
		}
	case NameStatic:
		if r.Name.Value == "" {
			return fail("name", "static strategy needs a value")
		}
	case NameTemplate:
		if r.Name.Value == "" {
			return fail("name", "template strategy needs a value")
		}
		return validateTemplate(r, "name", r.Name.Value, names, fail)
	case NameFilePath, NamePackage, NamePositional, NameAnonymous, NameQualified:
	default:
		known := make([]string, 0, len(nameStrategies))
		for _, s := range nameStrategies {
			known = append(known, string(s))
		}
		return fail("name", fmt.Sprintf("unknown name strategy %q", r.Name.Strategy)).WithSuggestion(string(r.Name.Strategy), known)
	}
	return nil
}

func validateTemplate(r *Rule, field, tmpl string, names []string, fail func(string, string) *cgerrors.RuleDefinitionError) error {
	for _, ph := range Placeholders(tmpl) {
		if contains(Builtins, ph) {
			continue
		}
		if _, ok := r.captures[ph]; !ok {
			known := append(append([]string{}, Builtins...), names...)
			return fail(field, fmt.Sprintf("template placeholder {%s} is neither builtin nor a query capture", ph)).WithSuggestion(ph, known)
		}
	}
	return nil
}

func queryError(err *tree_sitter.QueryError) error {
	if err == nil {
		return nil
	}
	return err
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsMeta(m MetadataExtractor) bool {
	for _, x := range MetadataExtractors {
		if x == m {
			return true
		}
	}
	return false
}

func containsRel(m RelationshipExtractor) bool {
	for _, x := range RelationshipExtractors {
		if x == m {
			return true
		}
	}
	return false
}
