package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter renders Diagnostics as GitHub-flavored Markdown, suitable
// for pasting into a bug report.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write renders d as Markdown.
func (w *MarkdownWriter) Write(d *Diagnostics) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("torkeeper diagnostics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", d.GeneratedAt.Format(timeLayout)},
			{"Mode", d.Mode},
			{"Environment", d.Environment},
			{"Endpoint", "`" + d.Endpoint + "`"},
			{"Connected", yesNo(d.Connected)},
			{"State", d.State},
			{"Start attempts", strconv.Itoa(d.RestartCount)},
			{"Tor version", orDash(d.TorVersion)},
			{"SOCKS5 check", orDash(d.ProxyStatus)},
			{"Log bytes evicted", strconv.FormatInt(d.LogDropped, 10)},
			{"Journal events", journalSize(d.JournalSize)},
		},
	})
	md.PlainText("")

	w.writeStatus(md, d)
	w.writeHistory(md, d)

	if d.LogTail != "" {
		md.Details("Tor log", d.LogTail)
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, d *Diagnostics) {
	problems := d.Problems()
	switch {
	case d.State == "failed":
		md.Cautionf("Tor could not be started: %s", orDash(d.LastError))
	case len(problems) > 0:
		md.Warningf("%d problem(s) found.", len(problems))
	default:
		md.Tip("The anonymizing transport is usable.")
	}
	md.PlainText("")

	if len(problems) > 0 {
		md.H2("Problems")
		md.PlainText("")
		md.BulletList(problems...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeHistory(md *markdown.Markdown, d *Diagnostics) {
	md.H2("Recent events")
	md.PlainText("")

	if len(d.History) == 0 {
		md.Note("The event journal is empty.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(d.History))
	kinds := map[string]uint64{}
	var order []string
	for i, e := range d.History {
		rows[i] = []string{e.Timestamp.Format(timeLayout), e.Kind, e.State, yesNo(e.Connected), orDash(e.Message)}
		if kinds[e.Kind] == 0 {
			order = append(order, e.Kind)
		}
		kinds[e.Kind]++
	}
	md.Table(markdown.TableSet{
		Header: []string{"Time", "Kind", "State", "Connected", "Message"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Event kinds"),
		piechart.WithShowData(true),
	)
	for _, k := range order {
		chart.LabelAndIntValue(k, kinds[k])
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func journalSize(n int64) string {
	if n < 0 {
		return "-"
	}
	return strconv.FormatInt(n, 10)
}
