package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/names"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	set, err := rules.LoadAll("", types.LanguageRust, types.LanguageTypeScript, types.LanguagePython, types.LanguageGo)
	require.NoError(t, err)
	t.Cleanup(set.Close)
	e := NewEngine(set)
	t.Cleanup(e.Close)
	return e
}

func extractSource(t *testing.T, e *Engine, path, src string, fc names.FileContext) *FileResult {
	t.Helper()
	res, err := e.ExtractFile(context.Background(), path, []byte(src), fc)
	require.NoError(t, err)
	return res
}

func find(entities []*types.Entity, et types.EntityType, qn string) *types.Entity {
	for _, e := range entities {
		if e.EntityType == et && e.QualifiedName.String() == qn {
			return e
		}
	}
	return nil
}

func ofType(entities []*types.Entity, et types.EntityType) []*types.Entity {
	var out []*types.Entity
	for _, e := range entities {
		if e.EntityType == et {
			out = append(out, e)
		}
	}
	return out
}

func simpleNames(refs []types.SourceReference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.SimpleName)
	}
	return out
}

// TestExtractModuleAndFunction tests a nested module and its function
func TestExtractModuleAndFunction(t *testing.T) {
	e := newTestEngine(t)
	res := extractSource(t, e, "src/lib.rs", "mod m { pub fn f() {} }", names.FileContext{RepositoryID: "repo"})

	require.Len(t, res.Entities, 2)
	m, f := res.Entities[0], res.Entities[1]

	assert.Equal(t, types.EntityModule, m.EntityType)
	assert.Equal(t, "m", m.QualifiedName.String())
	assert.Equal(t, types.VisibilityPrivate, m.Visibility)

	assert.Equal(t, types.EntityFunction, f.EntityType)
	assert.Equal(t, "m::f", f.QualifiedName.String())
	assert.Equal(t, "m", f.ParentScope)
	assert.Equal(t, types.VisibilityPublic, f.Visibility)
	assert.Equal(t, "pub fn f() {}", f.Content)
	assert.Equal(t, types.Location{
		FilePath: "src/lib.rs", StartLine: 1, StartColumn: 9, EndLine: 1, EndColumn: 22, StartByte: 8, EndByte: 21,
	}, f.Location)
	assert.Equal(t, EntityID("repo", f.QualifiedName, types.EntityFunction), f.ID)
	assert.Equal(t, "repo", f.RepositoryID)
	assert.Equal(t, "function", f.RuleID)
}

// TestExtractForeignTraitImpl tests that an impl of a foreign trait for a
// foreign type renders without a module prefix and that the lower
// precedence inherent impl rule never claims the same block
func TestExtractForeignTraitImpl(t *testing.T) {
	e := newTestEngine(t)
	src := "impl Trait for Type { fn method(&self) {} }"
	res := extractSource(t, e, "src/lib.rs", src, names.FileContext{PackageName: "mycrate"})

	impls := ofType(res.Entities, types.EntityImpl)
	require.Len(t, impls, 1)
	impl := impls[0]
	assert.Equal(t, "<Type as Trait>", impl.QualifiedName.String())
	assert.Equal(t, "trait_impl", impl.RuleID)
	assert.GreaterOrEqual(t, res.Overridden, 1)

	require.NotNil(t, impl.Relationships.ImplementsTrait)
	assert.Equal(t, "Trait", impl.Relationships.ImplementsTrait.SimpleName)
	require.NotNil(t, impl.Relationships.ForType)
	assert.Equal(t, "Type", impl.Relationships.ForType.SimpleName)

	methods := ofType(res.Entities, types.EntityMethod)
	require.Len(t, methods, 1)
	m := methods[0]
	assert.Equal(t, "<Type as Trait>::method", m.QualifiedName.String())
	assert.Equal(t, "method", m.Name)
	assert.Equal(t, types.VisibilityPublic, m.Visibility)
	assert.Equal(t, []string{"Type::method"}, m.Relationships.CallAliases)
	assert.False(t, m.Metadata.IsStatic)
}

// TestExtractPropertyAndMethodShareName tests that a field and a method with
// one qualified name are separate entities
func TestExtractPropertyAndMethodShareName(t *testing.T) {
	e := newTestEngine(t)
	src := `
pub struct Foo { name: String }
impl Foo {
    pub fn name(&self) -> &str { &self.name }
    pub fn new() -> Self { Foo { name: String::new() } }
}
`
	res := extractSource(t, e, "src/lib.rs", src, names.FileContext{})

	prop := find(res.Entities, types.EntityProperty, "Foo::name")
	method := find(res.Entities, types.EntityMethod, "Foo::name")
	require.NotNil(t, prop)
	require.NotNil(t, method)
	assert.NotEqual(t, prop.ID, method.ID)
	assert.Equal(t, types.VisibilityPrivate, prop.Visibility)
	assert.Equal(t, "String", prop.Metadata.Attributes["type"])

	ctor := find(res.Entities, types.EntityMethod, "Foo::new")
	require.NotNil(t, ctor)
	assert.True(t, ctor.Metadata.IsStatic)
	require.NotNil(t, ctor.Signature)
	assert.Equal(t, "Self", ctor.Signature.ReturnType)
}

// TestExtractPrecedenceIgnoresTableOrder tests that the higher precedence
// rule wins a shared node even when the table lists it last
func TestExtractPrecedenceIgnoresTableOrder(t *testing.T) {
	table, err := rules.Parse(types.LanguageRust, []byte(`
language: rust
rules:
  - id: plain_function
    precedence: 10
    entity_type: function
    query: "(function_item name: (identifier) @name) @function"
    capture: function
  - id: macro_function
    precedence: 20
    entity_type: macro
    query: "(function_item name: (identifier) @name) @function"
    capture: function
`))
	require.NoError(t, err)
	require.Len(t, table.Rules, 2)
	assert.Equal(t, "macro_function", table.Rules[0].ID)

	set := rules.NewSet(table)
	defer set.Close()
	e := NewEngine(set)
	defer e.Close()

	res := extractSource(t, e, "src/lib.rs", "fn f() {}\n", names.FileContext{})
	require.Len(t, res.Entities, 1)
	assert.Equal(t, types.EntityMacro, res.Entities[0].EntityType)
	assert.Equal(t, "f", res.Entities[0].Name)
	assert.Equal(t, 1, res.Overridden)
	assert.Empty(t, res.Skipped)
}

// TestExtractIdempotent tests that extracting the same input twice yields
// identical entities
func TestExtractIdempotent(t *testing.T) {
	e := newTestEngine(t)
	src := `
/// Adds things.
pub fn add(a: u32, b: u32) -> u32 { let f = |x: u32| x + 1; f(a) + b }
pub struct Pair(u32, pub u32);
impl std::fmt::Display for Pair {
    fn fmt(&self, f: &mut std::fmt::Formatter) -> std::fmt::Result { Ok(()) }
}
`
	fc := names.FileContext{RepositoryID: "r", PackageName: "p"}
	first := extractSource(t, e, "src/lib.rs", src, fc)
	second := extractSource(t, e, "src/lib.rs", src, fc)
	require.NotEmpty(t, first.Entities)
	assert.Equal(t, first.Entities, second.Entities)
}

// TestExtractMoveKeepsID tests that ids do not depend on the file path
func TestExtractMoveKeepsID(t *testing.T) {
	e := newTestEngine(t)
	src := "mod m { pub fn f() {} }"
	before := extractSource(t, e, "src/lib.rs", src, names.FileContext{RepositoryID: "r"})
	after := extractSource(t, e, "src/main.rs", src, names.FileContext{RepositoryID: "r"})

	f1 := find(before.Entities, types.EntityFunction, "m::f")
	f2 := find(after.Entities, types.EntityFunction, "m::f")
	require.NotNil(t, f1)
	require.NotNil(t, f2)
	assert.Equal(t, f1.ID, f2.ID)
	assert.NotEqual(t, f1.FilePath(), f2.FilePath())
}

// TestRustVisibility tests modifier mapping, including pub(self)
func TestRustVisibility(t *testing.T) {
	e := newTestEngine(t)
	src := `
pub fn a() {}
pub(crate) fn b() {}
pub(self) fn c() {}
fn d() {}
`
	res := extractSource(t, e, "src/lib.rs", src, names.FileContext{})

	tests := []struct {
		qn   string
		want types.Visibility
	}{
		{"a", types.VisibilityPublic},
		{"b", types.VisibilityInternal},
		{"c", types.VisibilityPrivate},
		{"d", types.VisibilityPrivate},
	}
	for _, tt := range tests {
		t.Run(tt.qn, func(t *testing.T) {
			fn := find(res.Entities, types.EntityFunction, tt.qn)
			require.NotNil(t, fn)
			assert.Equal(t, tt.want, fn.Visibility)
		})
	}
}

// TestRustDocsAndMetadata tests doc comments across attributes, derives
// and signatures
func TestRustDocsAndMetadata(t *testing.T) {
	e := newTestEngine(t)
	src := `/// A point.
#[derive(Debug, Clone)]
pub struct Point { x: i32 }

/// Loads a file.
pub async fn load(path: &str, n: u32) -> Result<String, Error> { todo!() }
`
	res := extractSource(t, e, "src/lib.rs", src, names.FileContext{})

	point := find(res.Entities, types.EntityStruct, "Point")
	require.NotNil(t, point)
	assert.Equal(t, "A point.", point.Documentation)
	assert.Equal(t, "Debug,Clone", point.Metadata.Attributes["derives"])
	assert.Equal(t, []string{"derive(Debug, Clone)"}, point.Metadata.Decorators)

	load := find(res.Entities, types.EntityFunction, "load")
	require.NotNil(t, load)
	assert.Equal(t, "Loads a file.", load.Documentation)
	assert.True(t, load.Metadata.IsAsync)
	require.NotNil(t, load.Signature)
	assert.Equal(t, []types.Parameter{{Name: "path", Type: "&str"}, {Name: "n", Type: "u32"}}, load.Signature.Parameters)
	assert.Equal(t, "Result<String, Error>", load.Signature.ReturnType)
	assert.Equal(t, "pub async fn load(path: &str, n: u32) -> Result<String, Error>", load.Signature.Text)
}

// TestRustReferences tests call and type usage attribution
func TestRustReferences(t *testing.T) {
	e := newTestEngine(t)
	src := `
struct Config;
fn helper(c: &Config) {}
fn run() { let c = Config; helper(&c); }
`
	res := extractSource(t, e, "src/lib.rs", src, names.FileContext{})

	helper := find(res.Entities, types.EntityFunction, "helper")
	require.NotNil(t, helper)
	assert.Equal(t, []string{"Config"}, simpleNames(helper.Relationships.UsesTypes))
	assert.Empty(t, helper.Relationships.Calls)

	run := find(res.Entities, types.EntityFunction, "run")
	require.NotNil(t, run)
	require.Len(t, run.Relationships.Calls, 1)
	call := run.Relationships.Calls[0]
	assert.Equal(t, "helper", call.SimpleName)
	assert.Equal(t, types.RefCall, call.Kind)
	assert.False(t, call.IsExternal)
	assert.Equal(t, 4, call.Location.StartLine)
}

// TestTypeScriptClass tests heritage clauses, method calls and imports
func TestTypeScriptClass(t *testing.T) {
	e := newTestEngine(t)
	src := `import { Animal } from './animal';

export class Dog extends Animal implements Pet {
  bark(): void { this.wag(); }
  wag() {}
}
`
	res := extractSource(t, e, "src/dog.ts", src, names.FileContext{LocalRoots: map[string]bool{"src": true}})

	mod := find(res.Entities, types.EntityModule, "src.dog")
	require.NotNil(t, mod)
	require.Len(t, mod.Relationships.Imports, 1)
	assert.Equal(t, "Animal", mod.Relationships.Imports[0].SimpleName)
	assert.False(t, mod.Relationships.Imports[0].IsExternal)

	dog := find(res.Entities, types.EntityClass, "src.dog.Dog")
	require.NotNil(t, dog)
	assert.Equal(t, types.VisibilityPublic, dog.Visibility)
	assert.Equal(t, []string{"Animal"}, simpleNames(dog.Relationships.Extends))
	assert.Equal(t, []string{"Pet"}, simpleNames(dog.Relationships.Implements))

	bark := find(res.Entities, types.EntityMethod, "src.dog.Dog.bark")
	require.NotNil(t, bark)
	assert.Equal(t, types.VisibilityPublic, bark.Visibility)
	require.Len(t, bark.Relationships.Calls, 1)
	assert.Equal(t, "wag", bark.Relationships.Calls[0].SimpleName)
}

// TestPythonDocstringAndVisibility tests docstrings and underscore privacy
func TestPythonDocstringAndVisibility(t *testing.T) {
	e := newTestEngine(t)
	src := `def _private():
    """Hidden helper."""
    pass


def test_private():
    _private()
`
	res := extractSource(t, e, "app/util.py", src, names.FileContext{})

	priv := find(res.Entities, types.EntityFunction, "app.util._private")
	require.NotNil(t, priv)
	assert.Equal(t, "Hidden helper.", priv.Documentation)
	assert.Equal(t, types.VisibilityPrivate, priv.Visibility)

	test := find(res.Entities, types.EntityFunction, "app.util.test_private")
	require.NotNil(t, test)
	assert.True(t, test.Metadata.IsTest)
	assert.Equal(t, []string{"_private"}, simpleNames(test.Relationships.Calls))
}

// TestExtractPartialTree tests that a syntax error skips only its region
func TestExtractPartialTree(t *testing.T) {
	e := newTestEngine(t)
	res := extractSource(t, e, "src/lib.rs", "fn ok() {}\n\nfn broken( {\n", names.FileContext{})

	assert.True(t, res.Partial)
	assert.NotNil(t, find(res.Entities, types.EntityFunction, "ok"))
}

// TestExtractUnparseable tests that a file with no usable syntax fails as a
// whole instead of yielding an empty partial result
func TestExtractUnparseable(t *testing.T) {
	e := newTestEngine(t)
	for _, src := range []string{"}}}} ))) @@@ ###", "\x00\x01\x02 $$$"} {
		res, err := e.ExtractFile(context.Background(), "src/lib.rs", []byte(src), names.FileContext{})
		require.Error(t, err, "%q", src)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrUnparseable)
		var perr *cgerrors.ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "src/lib.rs", perr.FilePath)
		assert.Equal(t, "rust", perr.Language)
		assert.Positive(t, perr.Line)
	}
}

// TestRepositoryRecordsUnparseable tests that an unparseable file is a
// recorded failure and the other files are still extracted
func TestRepositoryRecordsUnparseable(t *testing.T) {
	x, err := NewExtractor(newTestEngine(t), Options{RepositoryID: "r", CacheSize: -1})
	require.NoError(t, err)

	store, err := x.Repository(context.Background(), []File{
		{Path: "src/lib.rs", Content: []byte("pub fn ok() {}\n")},
		{Path: "src/junk.rs", Content: []byte("}}}} ))) @@@ ###")},
	})
	require.NoError(t, err)

	require.Len(t, store.Failures, 1)
	assert.Equal(t, "src/junk.rs", store.Failures[0].Path)
	assert.ErrorIs(t, store.Failures[0].Err, ErrUnparseable)
	fns := ofType(store.Entities(), types.EntityFunction)
	require.Len(t, fns, 1)
	assert.Equal(t, "ok", fns[0].Name)
	assert.Equal(t, 1, store.Summary().Failed)
}

// TestExtractUnsupported tests files no language claims
func TestExtractUnsupported(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ExtractFile(context.Background(), "README.md", []byte("# hi"), names.FileContext{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

// TestRepositoryDeduplicatesPackages tests that a package entity produced by
// every file of the package is kept once
func TestRepositoryDeduplicatesPackages(t *testing.T) {
	x, err := NewExtractor(newTestEngine(t), Options{RepositoryID: "r", Workers: 2})
	require.NoError(t, err)

	store, err := x.Repository(context.Background(), []File{
		{Path: "pkg/util/b.go", Content: []byte("package util\n\nfunc B() { A() }\n")},
		{Path: "pkg/util/a.go", Content: []byte("package util\n\nfunc A() {}\n")},
		{Path: "notes.txt", Content: []byte("ignored")},
	})
	require.NoError(t, err)

	require.Len(t, store.Files, 2)
	assert.Equal(t, "pkg/util/a.go", store.Files[0].Path)
	assert.Empty(t, store.Failures)
	assert.Equal(t, 1, store.Duplicates)

	pkgs := ofType(store.Entities(), types.EntityPackage)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "pkg/util/a.go", pkgs[0].FilePath())

	b := find(store.Entities(), types.EntityFunction, "pkg.util.B")
	require.NotNil(t, b)
	assert.Equal(t, []string{"A"}, simpleNames(b.Relationships.Calls))

	got, ok := store.Entity(b.ID)
	require.True(t, ok)
	assert.Same(t, b, got)

	sum := store.Summary()
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, store.Len(), sum.Entities)
	assert.Equal(t, 1, sum.Duplicates)
}

// TestExtractorMemo tests that unchanged files are served from the memo
func TestExtractorMemo(t *testing.T) {
	x, err := NewExtractor(newTestEngine(t), Options{RepositoryID: "r"})
	require.NoError(t, err)

	f := File{Path: "src/lib.rs", Content: []byte("fn a() {}")}
	first, err := x.ExtractFile(context.Background(), f)
	require.NoError(t, err)
	second, err := x.ExtractFile(context.Background(), f)
	require.NoError(t, err)
	assert.Same(t, first, second)

	f.Content = []byte("fn b() {}")
	third, err := x.ExtractFile(context.Background(), f)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

// TestRepositoryCancelled tests that cancellation aborts the whole run
func TestRepositoryCancelled(t *testing.T) {
	x, err := NewExtractor(newTestEngine(t), Options{CacheSize: -1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = x.Repository(ctx, []File{{Path: "src/lib.rs", Content: []byte("fn a() {}")}})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestPathIdentifier tests path identities of nested entities
func TestPathIdentifier(t *testing.T) {
	e := newTestEngine(t)
	res := extractSource(t, e, "src/utils/helpers.ts", "export function slugify(s: string) { return s; }", names.FileContext{})

	mod := find(res.Entities, types.EntityModule, "src.utils.helpers")
	require.NotNil(t, mod)
	assert.Equal(t, "src.utils.helpers", mod.PathEntityIdentifier)

	fn := find(res.Entities, types.EntityFunction, "src.utils.helpers.slugify")
	require.NotNil(t, fn)
	assert.Equal(t, "src.utils.helpers.slugify", fn.PathEntityIdentifier)
	require.NotNil(t, fn.Signature)
	assert.Equal(t, []types.Parameter{{Name: "s", Type: "string"}}, fn.Signature.Parameters)
}
