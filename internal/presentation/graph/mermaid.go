package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Overlay highlights the nodes touched by a change on the rendered tree.
type Overlay struct {
	Added   []string
	Updated []string
	Current string
}

// OverlayFromDiff highlights the nodes a FormDiff added or changed.
func OverlayFromDiff(d domain.FormDiff) *Overlay {
	return &Overlay{
		Added:   d.Added,
		Updated: append(append([]string(nil), d.Updated...), d.Reordered...),
	}
}

// GenerateMermaid produces a Mermaid flowchart of a service tree.
// It applies semantic styling:
// - Start: ((Circle))
// - Group: [Rectangle]
// - Service: [[Subroutine]], annotated with its duration
func GenerateMermaid(root domain.FlowNode, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	root.Walk(func(node domain.FlowNode, parent *domain.FlowNode) bool {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Type {
		case domain.NodeTypeStart:
			opener, closer = "((", "))"
		case domain.NodeTypeService:
			opener, closer = "[[", "]]"
		}

		label := escapeLabel(node.Label)
		if label == "" {
			label = node.ID
		}
		if node.Service != nil && node.Service.DurationMinutes > 0 {
			label = fmt.Sprintf("%s <br/> ⏱️ %d min", label, node.Service.DurationMinutes)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		if parent != nil {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(parent.ID), safeID)
		}
		return true
	})

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef added fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef updated fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		writeClass(&sb, "added", overlay.Added, root)
		writeClass(&sb, "updated", overlay.Updated, root)
		if overlay.Current != "" && root.Contains(overlay.Current) {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

// writeClass styles the listed nodes still present in the tree, once each.
func writeClass(sb *strings.Builder, class string, ids []string, root domain.FlowNode) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] || !root.Contains(id) {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
