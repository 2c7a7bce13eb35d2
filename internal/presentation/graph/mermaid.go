package graph

import (
	"fmt"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart syntax string from a recipe
// call graph. It applies semantic styling:
// - Recipe: ((Circle))
// - Primitive: [Rectangle]
// - Engine: [[Subroutine]], reached by a dotted arrow
// Primitives that could not be resolved are styled as errors.
func GenerateMermaid(nodes []domain.CallNode) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var missing []string
	declared := make(map[string]bool)
	for _, node := range nodes {
		// Sanitize ID for Mermaid
		safeID := sanitizeMermaidID(node.Name)

		// Node shape based on kind
		opener, closer := "[", "]"
		if node.Kind == domain.CallRecipe {
			opener, closer = "((", "))" // Circle
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, node.Name, closer))

		if node.Missing {
			missing = append(missing, safeID)
			continue
		}

		for _, child := range node.Children {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(child)))
		}

		// Engine calls are drawn dotted so the primitive chain stays readable.
		for _, engine := range node.Engines {
			engID := "eng_" + sanitizeMermaidID(engine)
			if !declared[engID] {
				declared[engID] = true
				sb.WriteString(fmt.Sprintf("    %s[[\"%s\"]]\n", engID, engine))
			}
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", safeID, engID))
		}
	}

	if len(missing) > 0 {
		// Force black text (color:#000) for high-contrast on light backgrounds
		sb.WriteString("\n    classDef missing fill:#fee2e2,stroke:#b91c1c,stroke-width:2px,color:#000;\n")
		for _, id := range missing {
			sb.WriteString(fmt.Sprintf("    class %s missing;\n", id))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
