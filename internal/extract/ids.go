package extract

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/qname"
	"github.com/standardbeagle/codegraph/internal/types"
)

// EntityID derives the stable id of an entity. The file path is not part
// of it, so moving an entity between files keeps its id; the entity type
// is, so a field and a method sharing a qualified name stay distinct.
func EntityID(repositoryID string, qn qname.QualifiedName, entityType types.EntityType) string {
	d := xxhash.New()
	_, _ = d.WriteString(repositoryID)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(qn.String())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(entityType))
	return fmt.Sprintf("%016x", d.Sum64())
}

// pathIdentifier is the file's path identity followed by the entity's
// qualified name relative to the file module.
func pathIdentifier(spec *lang.Spec, relPath, module string, qn qname.QualifiedName) string {
	file := lang.PathEntityIdentifier(relPath)
	rendered := qn.String()
	if rendered == module {
		return file
	}
	suffix := rendered
	if module != "" && strings.HasPrefix(rendered, module+spec.Separator) {
		suffix = rendered[len(module)+len(spec.Separator):]
	}
	if qn.Shape() == qname.ShapeSimplePath {
		suffix = strings.ReplaceAll(suffix, spec.Separator, ".")
	}
	if file == "" {
		return suffix
	}
	return file + "." + suffix
}

// contentHash keys the extraction memo.
func contentHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}
