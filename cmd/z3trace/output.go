package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/smt-log-parser/internal/application/service"
	"github.com/garyjia/smt-log-parser/internal/models"
)

// Theme defines the styles of the text report
type Theme struct {
	Heading lipgloss.Style
	Good    lipgloss.Style
	Bad     lipgloss.Style
	Dim     lipgloss.Style
}

// newTheme builds the report styles for w. Writers that are not terminals
// get plain text.
func newTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		Heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Good:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
		Bad:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (t Theme) status(status string) string {
	switch status {
	case models.RunStatusCompleted:
		return t.Good.Render(status)
	case models.RunStatusRunning:
		return t.Dim.Render(status)
	default:
		return t.Bad.Render(status)
	}
}

// writeReports prints reports in format. JSON and YAML print a list when
// asList is set and a single object otherwise.
func writeReports(w io.Writer, format string, reports []*service.Report, asList bool) error {
	var doc interface{} = reports
	if !asList {
		if len(reports) == 0 {
			doc = nil
		} else {
			doc = reports[0]
		}
	}

	switch format {
	case "json":
		if doc == nil {
			return nil
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		if doc == nil {
			return nil
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		theme := newTheme(w)
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := writeText(w, theme, r); err != nil {
				return err
			}
		}
		return nil
	}
}

// writeText prints one report. Styled values only ever end a line so the
// escape codes never reach an aligned column.
func writeText(w io.Writer, theme Theme, r *service.Report) error {
	fmt.Fprintln(w, theme.Heading.Render(r.Source))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	s := r.Summary

	fmt.Fprintf(tw, "status:\t%s\n", theme.status(r.Status))
	fmt.Fprintf(tw, "solver:\t%s\n", s.Version)
	fmt.Fprintf(tw, "lines:\t%d\n", r.Lines)
	fmt.Fprintf(tw, "diagnostics:\t%d\n", r.DiagnosticCount)
	fmt.Fprintf(tw, "terms:\t%d (quantifiers %d, vars %d, apps %d)\n", s.Terms, s.Quantifiers, s.Vars, s.Apps)
	fmt.Fprintf(tw, "enodes:\t%d\n", s.Enodes)
	fmt.Fprintf(tw, "matches:\t%d (discovered %d)\n", s.Matches, s.Discovered)
	fmt.Fprintf(tw, "instances:\t%d\n", s.Instances)
	fmt.Fprintf(tw, "checks:\t%d (push %d, pop %d, max scope %d)\n", s.Checks, s.Pushes, s.Pops, s.MaxScope)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.TopQuantifiers) > 0 {
		fmt.Fprintln(w, theme.Heading.Render("Top quantifiers"))
		fmt.Fprintln(tw, "id\tname\tmatches\tinstances")
		for _, q := range s.TopQuantifiers {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", q.ID, q.Name, q.Matches, q.Instances)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, theme.Heading.Render("Diagnostics"))
		fmt.Fprintln(tw, "line\topcode\tmessage")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", d.LineNo, d.Opcode, d.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if hidden := r.DiagnosticCount - len(r.Diagnostics); hidden > 0 {
			fmt.Fprintln(w, theme.Dim.Render(fmt.Sprintf("... %d more", hidden)))
		}
	}

	return nil
}
