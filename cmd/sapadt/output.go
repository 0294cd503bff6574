package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"pkt.systems/sapadt/adterr"
)

var (
	colorError   = lipgloss.Color("#E74C3C")
	colorWarning = lipgloss.Color("#F4D03F")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorMuted   = lipgloss.Color("#2C4A54")
)

type styles struct {
	errLabel lipgloss.Style
	bold     lipgloss.Style
	dim      lipgloss.Style
	hint     lipgloss.Style
	ok       lipgloss.Style
	header   lipgloss.Style
	border   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		errLabel: r.NewStyle().Bold(true).Foreground(colorError),
		bold:     r.NewStyle().Bold(true),
		dim:      r.NewStyle().Faint(true),
		hint:     r.NewStyle().Foreground(colorWarning),
		ok:       r.NewStyle().Foreground(colorSuccess),
		header:   r.NewStyle().Bold(true).Padding(0, 1),
		border:   r.NewStyle().Foreground(colorMuted),
	}
}

// printer renders results to stdout and errors to stderr, as JSON, plain
// text or colored text.
type printer struct {
	stdout io.Writer
	stderr io.Writer
	json   bool
	color  bool
	quiet  bool
	out    styles
	err    styles
}

func newPrinter(stdout, stderr io.Writer, jsonMode, color, quiet bool) *printer {
	return &printer{
		stdout: stdout,
		stderr: stderr,
		json:   jsonMode,
		color:  color,
		quiet:  quiet,
		out:    newStyles(lipgloss.NewRenderer(stdout)),
		err:    newStyles(lipgloss.NewRenderer(stderr)),
	}
}

// colorEnabled resolves --color, --no-color and NO_COLOR; otherwise color
// follows whether stdout is a terminal.
func (a *app) colorEnabled() bool {
	if a.v.GetBool(keyNoColor) || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if a.v.GetBool(keyColor) {
		return true
	}
	f, ok := a.stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// printError renders err. JSON mode prints the error record on one line;
// text mode prints "Error: <operation> (HTTP n)", the message, the server
// message dimmed and the hint in yellow.
func (p *printer) printError(err error) {
	var ae *adterr.Error
	isADT := errors.As(err, &ae)
	if p.json {
		if !isADT {
			ae = adterr.New("", "", adterr.Internal, err.Error())
		}
		fmt.Fprintln(p.stderr, ae.JSON())
		return
	}
	label := p.paint(p.err.errLabel, "Error:")
	if !isADT {
		fmt.Fprintf(p.stderr, "%s %s\n", label, err)
		return
	}
	head := ae.Operation
	if head == "" {
		head = ae.Category.String()
	}
	head = p.paint(p.err.bold, head)
	if ae.HTTPStatus != nil {
		head += p.paint(p.err.dim, fmt.Sprintf(" (HTTP %d)", *ae.HTTPStatus))
	}
	fmt.Fprintf(p.stderr, "%s %s\n", label, head)
	if ae.Message != "" {
		fmt.Fprintf(p.stderr, "  %s\n", ae.Message)
	}
	if ae.SAPError != nil && *ae.SAPError != "" && !strings.Contains(ae.Message, *ae.SAPError) {
		fmt.Fprintf(p.stderr, "  %s\n", p.paint(p.err.dim, "SAP: "+*ae.SAPError))
	}
	if ae.Hint != nil && *ae.Hint != "" {
		fmt.Fprintf(p.stderr, "  %s\n", p.paint(p.err.hint, "Hint: "+*ae.Hint))
	}
}

// emit prints v as indented JSON in JSON mode and calls human otherwise.
func (p *printer) emit(v any, human func(w io.Writer) error) error {
	if p.json || human == nil {
		return p.printJSON(v)
	}
	return human(p.stdout)
}

func (p *printer) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.stdout, "%s\n", data)
	return err
}

// success reports a completed action. Quiet mode suppresses it in text
// output.
func (p *printer) success(msg string, fields map[string]any) error {
	if p.json {
		out := map[string]any{"success": true, "message": msg}
		for k, v := range fields {
			out[k] = v
		}
		return p.printJSON(out)
	}
	if p.quiet {
		return nil
	}
	_, err := fmt.Fprintf(p.stdout, "%s %s\n", p.paint(p.out.ok, "OK"), msg)
	return err
}

// table prints rows under headers. JSON mode prints an array of objects
// keyed by header.
func (p *printer) table(headers []string, rows [][]string) error {
	if p.json {
		out := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			rec := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(row) {
					rec[h] = row[i]
				}
			}
			out = append(out, rec)
		}
		return p.printJSON(out)
	}
	if p.color {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(p.out.border).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return p.out.header
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		_, err := fmt.Fprintln(p.stdout, t.Render())
		return err
	}
	return writePlainTable(p.stdout, headers, rows)
}

func writePlainTable(w io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if n := len(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	line := func(cells []string) {
		for i := range headers {
			if i > 0 {
				b.WriteString("  ")
			}
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(headers)-1 {
				b.WriteString(cell)
				continue
			}
			fmt.Fprintf(&b, "%-*s", widths[i], cell)
		}
		b.WriteByte('\n')
	}
	line(headers)
	dashes := make([]string, len(headers))
	for i, n := range widths {
		dashes[i] = strings.Repeat("-", n)
	}
	line(dashes)
	for _, row := range rows {
		line(row)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func humanBytes(n int) string {
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

func humanDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func humanCount(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return humanize.Comma(int64(n)) + " " + unit + "s"
}
