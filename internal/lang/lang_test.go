package lang

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/types"
)

// TestForPath tests extension based language detection
func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		want types.Language
	}{
		{"src/lib.rs", types.LanguageRust},
		{"web/app.ts", types.LanguageTypeScript},
		{"web/App.tsx", types.LanguageTSX},
		{"web/legacy.jsx", types.LanguageJavaScript},
		{"pkg/mod.py", types.LanguagePython},
		{"cmd/main.go", types.LanguageGo},
		{"src/main/java/A.java", types.LanguageJava},
		{"Program.cs", types.LanguageCSharp},
		{"engine/core.hpp", types.LanguageCPP},
		{"app/Models/User.php", types.LanguagePHP},
		{"src/main.zig", types.LanguageZig},
		{"README.MD", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			spec, ok := ForPath(tt.path)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, spec.Name)
		})
	}
}

// TestNames tests that every language is registered once
func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 11)
	assert.IsIncreasing(t, names)
}

// TestModulePath tests per-language module derivation
func TestModulePath(t *testing.T) {
	tests := []struct {
		lang types.Language
		path string
		want []string
	}{
		{types.LanguageRust, "src/lib.rs", nil},
		{types.LanguageRust, "src/main.rs", nil},
		{types.LanguageRust, "src/utils/helpers.rs", []string{"utils", "helpers"}},
		{types.LanguageRust, "src/utils/mod.rs", []string{"utils"}},
		{types.LanguageTypeScript, "src/utils/helpers.ts", []string{"src", "utils", "helpers"}},
		{types.LanguageTypeScript, "src/utils/index.ts", []string{"src", "utils"}},
		{types.LanguageTypeScript, "index.ts", []string{"index"}},
		{types.LanguagePython, "src/pkg/__init__.py", []string{"pkg"}},
		{types.LanguagePython, "pkg/sub/mod.py", []string{"pkg", "sub", "mod"}},
		{types.LanguageGo, "internal/store/sqlite.go", []string{"internal", "store"}},
		{types.LanguageGo, "main.go", nil},
		{types.LanguageJava, "src/main/java/com/acme/App.java", []string{"com", "acme"}},
		{types.LanguageZig, "src/mem/alloc.zig", []string{"mem", "alloc"}},
		{types.LanguageCPP, "engine/core.cpp", nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+tt.path, func(t *testing.T) {
			spec, ok := Get(tt.lang)
			require.True(t, ok)
			assert.Equal(t, tt.want, spec.ModulePath(tt.path))
		})
	}
}

// TestPathEntityIdentifier tests the file path identity format
func TestPathEntityIdentifier(t *testing.T) {
	assert.Equal(t, "src.utils.helpers", PathEntityIdentifier("src/utils/helpers.ts"))
	assert.Equal(t, "types.api", PathEntityIdentifier("types/api.d.ts"))
	assert.Equal(t, "lib", PathEntityIdentifier("./lib.rs"))
	assert.Equal(t, "a.b", PathEntityIdentifier(`a\b.py`))
}

// TestParse tests pooled parsing across goroutines
func TestParse(t *testing.T) {
	spec, ok := Get(types.LanguageRust)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := spec.Parse(context.Background(), []byte("mod m { pub fn f() {} }"))
			if !assert.NoError(t, err) {
				return
			}
			defer tree.Close()
			assert.Equal(t, "source_file", tree.RootNode().Kind())
			assert.False(t, tree.RootNode().HasError())
		}()
	}
	wg.Wait()
}

// TestParseCancelled tests that a cancelled context is honoured before parsing
func TestParseCancelled(t *testing.T) {
	spec, _ := Get(types.LanguagePython)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := spec.Parse(ctx, []byte("x = 1"))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestSupportQueriesCompile tests the call and type queries of every language
func TestSupportQueriesCompile(t *testing.T) {
	for _, name := range Names() {
		spec, _ := Get(name)
		t.Run(string(name), func(t *testing.T) {
			for _, src := range []string{spec.CallQuery, spec.TypeQuery} {
				if src == "" {
					continue
				}
				q, qerr := tree_sitter.NewQuery(spec.Language(), src)
				if q == nil {
					t.Fatalf("query failed to compile: %v", qerr)
				}
				q.Close()
			}
		})
	}
}

// TestModuleDeclarations tests in-file package and namespace detection
func TestModuleDeclarations(t *testing.T) {
	tests := []struct {
		lang types.Language
		src  string
		want []string
	}{
		{types.LanguageJava, "package com.acme.app;\nclass A {}", []string{"com", "acme", "app"}},
		{types.LanguageCSharp, "namespace Acme.Core;\nclass A {}", []string{"Acme", "Core"}},
		{types.LanguagePHP, "<?php\nnamespace App\\Models;\nclass User {}", []string{"App", "Models"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			spec, _ := Get(tt.lang)
			tree, err := spec.Parse(context.Background(), []byte(tt.src))
			require.NoError(t, err)
			defer tree.Close()
			assert.Equal(t, tt.want, spec.ModuleDeclaration(tree.RootNode(), []byte(tt.src)))
		})
	}
}

// TestSpecHelpers tests the kind classification helpers
func TestSpecHelpers(t *testing.T) {
	spec, _ := Get(types.LanguageRust)
	assert.True(t, spec.IsBoundary("impl_item"))
	assert.True(t, spec.IsBoundary("closure_expression"))
	assert.False(t, spec.IsBoundary("block"))
	assert.True(t, spec.IsDecoration("attribute_item"))
	assert.True(t, spec.IsDecoration("line_comment"))
	assert.True(t, spec.IsExternalRoot("std"))
	assert.True(t, spec.IsSelfReceiver("self"))
	assert.Equal(t, "a::b", spec.JoinPath("a", "", "b"))
}
