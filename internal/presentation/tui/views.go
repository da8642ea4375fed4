package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/availability"
	"github.com/aretw0/arbor/pkg/domain"
)

// FormListMarkdown renders forms as a markdown table.
func FormListMarkdown(forms []*domain.Form) string {
	if len(forms) == 0 {
		return "_No forms._\n"
	}
	var sb strings.Builder
	sb.WriteString("| ID | Name | Services | Updated |\n|---|---|---|---|\n")
	for _, f := range forms {
		updated := f.UpdatedAt.Format(time.DateTime)
		if f.Deleted() {
			updated = "deleted " + f.DeletedAt.Format(time.DateTime)
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %d | %s |\n", f.ID, cell(f.Data.InternalName), len(f.Data.ServiceTree.Services()), updated)
	}
	return sb.String()
}

// FormMarkdown renders the settings and service tree of a form.
func FormMarkdown(f *domain.Form) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", f.Data.InternalName)
	fmt.Fprintf(&sb, "- **ID**: `%s`\n", f.ID)
	if f.Data.Theme != "" {
		fmt.Fprintf(&sb, "- **Theme**: %s\n", f.Data.Theme)
	}
	if f.Data.PrimaryColor != "" {
		fmt.Fprintf(&sb, "- **Color**: `%s`\n", f.Data.PrimaryColor)
	}
	fmt.Fprintf(&sb, "- **Updated**: %s\n", f.UpdatedAt.Format(time.DateTime))

	sb.WriteString("\n## Services\n\n")
	if len(f.Data.ServiceTree.Children) == 0 {
		sb.WriteString("_Empty tree._\n")
	}
	writeTree(&sb, f.Data.ServiceTree.Children, 0)

	if len(f.Data.BaseQuestions) > 0 {
		sb.WriteString("\n## Questions\n\n")
		for _, q := range f.Data.BaseQuestions {
			req := ""
			if q.Required {
				req = " *(required)*"
			}
			fmt.Fprintf(&sb, "- %s `%s`%s\n", q.Label, q.Type, req)
		}
	}
	return sb.String()
}

func writeTree(sb *strings.Builder, nodes []domain.FlowNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		label := n.Label
		if label == "" {
			label = "_untitled_"
		}
		switch n.Type {
		case domain.NodeTypeService:
			fmt.Fprintf(sb, "%s- %s `%s`", indent, label, n.ID)
			if n.Service != nil {
				fmt.Fprintf(sb, " (%d min", n.Service.DurationMinutes)
				if n.Service.Price > 0 {
					fmt.Fprintf(sb, ", %s", price(n.Service.Price, n.Service.Currency))
				}
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		default:
			fmt.Fprintf(sb, "%s- **%s** `%s`\n", indent, label, n.ID)
			writeTree(sb, n.Children, depth+1)
		}
	}
}

func price(minor int64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency))
}

// AvailabilityMarkdown renders free slots grouped by date.
func AvailabilityMarkdown(res availability.Result) string {
	var sb strings.Builder
	if len(res.Dates) == 0 {
		sb.WriteString("_No free slots._\n")
	}
	dates := make([]string, 0, len(res.Dates))
	for d := range res.Dates {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		fmt.Fprintf(&sb, "## %s\n\n", d)
		for _, s := range res.Dates[d] {
			fmt.Fprintf(&sb, "- %s (%s)\n", s.Time, strings.Join(s.EmployeeIDs, ", "))
		}
		sb.WriteString("\n")
	}
	if len(res.Failures) > 0 {
		sb.WriteString("> Some calendars could not be read:\n")
		ids := make([]string, 0, len(res.Failures))
		for id := range res.Failures {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&sb, "> - `%s`: %s\n", id, res.Failures[id])
		}
	}
	return sb.String()
}

// EmployeesMarkdown renders employees as a markdown table.
func EmployeesMarkdown(staff []domain.Employee) string {
	if len(staff) == 0 {
		return "_No employees._\n"
	}
	var sb strings.Builder
	sb.WriteString("| ID | Name | Provider ID | Active |\n|---|---|---|---|\n")
	for _, e := range staff {
		active := "no"
		if e.Active {
			active = "yes"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | `%s` | %s |\n", e.ID, cell(e.Name), e.ProviderID, active)
	}
	return sb.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// TemplatesMarkdown renders the template catalogue as a markdown table.
func TemplatesMarkdown(templates []domain.Template) string {
	if len(templates) == 0 {
		return "_No templates._\n"
	}
	var sb strings.Builder
	sb.WriteString("| ID | Name | Services | Tags |\n|---|---|---|---|\n")
	for _, t := range templates {
		fmt.Fprintf(&sb, "| `%s` | %s | %d | %s |\n", t.ID, cell(t.Name), len(t.Data.ServiceTree.Services()), strings.Join(t.Tags, ", "))
	}
	return sb.String()
}
