package graph

import (
	"sort"
	"strconv"
	"strings"
)

// MermaidOptions configure Mermaid.
type MermaidOptions struct {
	// Direction is TD (default) or LR.
	Direction string
}

// Mermaid renders g as a Mermaid flowchart with one subgraph per node role.
// Mermaid ids are positional (n0, n1, ...) since graph ids contain
// characters Mermaid does not accept.
func Mermaid(g Graph, opts MermaidOptions) string {
	dir := "TD"
	if strings.EqualFold(opts.Direction, "LR") {
		dir = "LR"
	}
	nodes := append([]Node(nil), g.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	edges := append([]Edge(nil), g.Edges...)
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	alias := make(map[string]string, len(nodes))
	byRole := make(map[string][]Node)
	for i, n := range nodes {
		alias[n.ID] = "n" + strconv.Itoa(i)
		role := n.Role
		if n.ID == g.RootID {
			role = "root"
		}
		if role == "" {
			role = "other"
		}
		byRole[role] = append(byRole[role], n)
	}
	roles := make([]string, 0, len(byRole))
	for r := range byRole {
		roles = append(roles, r)
	}
	sort.Strings(roles)

	var sb strings.Builder
	sb.WriteString("graph " + dir + "\n")
	for _, role := range roles {
		sb.WriteString("  subgraph " + subgraphName(role) + "\n")
		for _, n := range byRole[role] {
			sb.WriteString("    " + alias[n.ID] + "[\"" + mermaidEscape(label(n)) + "\"]\n")
		}
		sb.WriteString("  end\n")
	}
	for _, e := range edges {
		from, okFrom := alias[e.From]
		to, okTo := alias[e.To]
		if !okFrom || !okTo {
			continue
		}
		sb.WriteString("  " + from + " -- \"" + mermaidEscape(e.Type) + "\" --> " + to + "\n")
	}
	return sb.String()
}

func label(n Node) string {
	if n.Type == "" {
		return n.Name
	}
	return n.Type + " " + n.Name
}

func subgraphName(role string) string {
	var sb strings.Builder
	for _, r := range role {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
