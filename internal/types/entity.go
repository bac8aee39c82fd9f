package types

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/codegraph/internal/qname"
)

// EntityType is the closed set of constructs the extractor can produce.
type EntityType string

const (
	EntityFunction    EntityType = "function"
	EntityMethod      EntityType = "method"
	EntityProperty    EntityType = "property"
	EntityStruct      EntityType = "struct"
	EntityClass       EntityType = "class"
	EntityEnum        EntityType = "enum"
	EntityEnumVariant EntityType = "enum_variant"
	EntityTrait       EntityType = "trait"
	EntityInterface   EntityType = "interface"
	EntityImpl        EntityType = "impl"
	EntityModule      EntityType = "module"
	EntityPackage     EntityType = "package"
	EntityConstant    EntityType = "constant"
	EntityStatic      EntityType = "static"
	EntityVariable    EntityType = "variable"
	EntityTypeAlias   EntityType = "type_alias"
	EntityUnion       EntityType = "union"
	EntityMacro       EntityType = "macro"
	EntityExternBlock EntityType = "extern_block"
)

var allEntityTypes = []EntityType{
	EntityFunction, EntityMethod, EntityProperty, EntityStruct, EntityClass,
	EntityEnum, EntityEnumVariant, EntityTrait, EntityInterface, EntityImpl,
	EntityModule, EntityPackage, EntityConstant, EntityStatic, EntityVariable,
	EntityTypeAlias, EntityUnion, EntityMacro, EntityExternBlock,
}

// EntityTypes returns every known entity type in declaration order.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(allEntityTypes))
	copy(out, allEntityTypes)
	return out
}

// ParseEntityType validates a textual entity type.
func ParseEntityType(s string) (EntityType, bool) {
	for _, t := range allEntityTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// IsCallable reports whether entities of this type can be call targets.
func (t EntityType) IsCallable() bool {
	switch t {
	case EntityFunction, EntityMethod, EntityMacro:
		return true
	}
	return false
}

// IsType reports whether entities of this type name a type.
func (t EntityType) IsType() bool {
	switch t {
	case EntityStruct, EntityClass, EntityEnum, EntityTrait, EntityInterface,
		EntityTypeAlias, EntityUnion:
		return true
	}
	return false
}

// IsContainer reports whether entities of this type can own other entities.
func (t EntityType) IsContainer() bool {
	switch t {
	case EntityModule, EntityPackage, EntityStruct, EntityClass, EntityEnum,
		EntityTrait, EntityInterface, EntityImpl, EntityUnion, EntityExternBlock,
		EntityFunction, EntityMethod:
		return true
	}
	return false
}

// Visibility is the access level of an entity.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
)

// ParseVisibility validates a textual visibility.
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityPrivate, VisibilityProtected, VisibilityInternal:
		return Visibility(s), true
	}
	return "", false
}

// Location is a 1-based line/column span inside one file.
type Location struct {
	FilePath    string `json:"file_path"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
	StartByte   int    `json:"start_byte"`
	EndByte     int    `json:"end_byte"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.StartLine, l.StartColumn)
}

// Parameter is one declared parameter of a callable.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Signature describes a callable's declared interface.
type Signature struct {
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`
	Generics   []string    `json:"generics,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// Metadata holds the flags and free-form attributes metadata extractors fill.
type Metadata struct {
	IsAsync     bool              `json:"is_async,omitempty"`
	IsConst     bool              `json:"is_const,omitempty"`
	IsStatic    bool              `json:"is_static,omitempty"`
	IsAbstract  bool              `json:"is_abstract,omitempty"`
	IsGeneric   bool              `json:"is_generic,omitempty"`
	IsAnonymous bool              `json:"is_anonymous,omitempty"`
	IsTest      bool              `json:"is_test,omitempty"`
	Decorators  []string          `json:"decorators,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Entity is a named, typed unit of code produced by one extraction run.
// Entities are immutable once built; resolution addresses them by ID.
type Entity struct {
	ID                   string              `json:"entity_id"`
	RepositoryID         string              `json:"repository_id"`
	Name                 string              `json:"name"`
	QualifiedName        qname.QualifiedName `json:"qualified_name"`
	PathEntityIdentifier string              `json:"path_entity_identifier"`
	ParentScope          string              `json:"parent_scope,omitempty"`
	EntityType           EntityType          `json:"entity_type"`
	Language             Language            `json:"language"`
	Visibility           Visibility          `json:"visibility"`
	Location             Location            `json:"location"`
	Documentation        string              `json:"documentation,omitempty"`
	Content              string              `json:"content,omitempty"`
	Signature            *Signature          `json:"signature,omitempty"`
	Metadata             Metadata            `json:"metadata"`
	Relationships        RelationshipRefs    `json:"relationships"`
	RuleID               string              `json:"rule_id"`
}

// SimpleName is the last segment of the qualified name.
func (e *Entity) SimpleName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.QualifiedName.SimpleName()
}

// FilePath returns the repository-relative file the entity belongs to.
func (e *Entity) FilePath() string {
	return e.Location.FilePath
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s %s (%s)", e.EntityType, e.QualifiedName.String(), e.ID)
}

// Language identifies a source language by its registry key.
type Language string

const (
	LanguageRust       Language = "rust"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageCSharp     Language = "csharp"
	LanguageCPP        Language = "cpp"
	LanguagePHP        Language = "php"
	LanguageZig        Language = "zig"
)

// NormalizeExternalName strips generics and crate prefixes from a rendered
// external target so equivalent spellings share one stub.
func NormalizeExternalName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "crate::")
	name = strings.TrimPrefix(name, "external::")
	if i := strings.IndexByte(name, '<'); i > 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(name, "::")
}
