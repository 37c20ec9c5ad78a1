package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// summaryBoxWidth is the width of the styled summary box.
const summaryBoxWidth = 52

// bytesPerMiB converts byte counts for display.
const bytesPerMiB = 1024 * 1024

// isWriterTerminal reports whether w is an interactive terminal.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// renderSummaries writes the end-of-run summary. Terminals get a styled
// box; everything else gets plain lines so the output stays greppable.
func renderSummaries(w io.Writer, repoID string, rows []SplitSummary) error {
	if len(rows) == 0 {
		return nil
	}

	if isWriterTerminal(w) {
		return renderStyledSummary(w, repoID, rows)
	}
	return renderPlainSummary(w, repoID, rows)
}

// renderPlainSummary writes one line per split plus a total line.
func renderPlainSummary(w io.Writer, repoID string, rows []SplitSummary) error {
	printer := message.NewPrinter(language.English)

	var totalRecords, totalShards int
	var totalBytes int64
	for _, row := range rows {
		if _, err := printer.Fprintf(w, "%s: %d records in %d shards (%.1f MiB)\n",
			row.Split, row.Records, row.Shards, float64(row.Bytes)/bytesPerMiB); err != nil {
			return err
		}
		totalRecords += row.Records
		totalShards += row.Shards
		totalBytes += row.Bytes
	}

	if _, err := printer.Fprintf(w, "total: %d records in %d shards (%.1f MiB)\n",
		totalRecords, totalShards, float64(totalBytes)/bytesPerMiB); err != nil {
		return err
	}

	if repoID != "" {
		if _, err := fmt.Fprintf(w, "view at: https://huggingface.co/datasets/%s\n", repoID); err != nil {
			return err
		}
	}
	return nil
}

// renderStyledSummary writes a boxed representation using Lip Gloss.
func renderStyledSummary(w io.Writer, repoID string, rows []SplitSummary) error {
	printer := message.NewPrinter(language.English)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("33"))

	labelStyle := lipgloss.NewStyle().Bold(true)

	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(summaryBoxWidth)

	var content strings.Builder
	content.WriteString(titleStyle.Render("SHARD SUMMARY"))
	content.WriteString("\n\n")

	var totalRecords, totalShards int
	var totalBytes int64
	for _, row := range rows {
		content.WriteString(labelStyle.Render(row.Split))
		content.WriteString(printer.Sprintf(": %d records in %d shards (%.1f MiB)\n",
			row.Records, row.Shards, float64(row.Bytes)/bytesPerMiB))
		totalRecords += row.Records
		totalShards += row.Shards
		totalBytes += row.Bytes
	}

	content.WriteString("\n")
	content.WriteString(labelStyle.Render("total"))
	content.WriteString(printer.Sprintf(": %d records in %d shards (%.1f MiB)",
		totalRecords, totalShards, float64(totalBytes)/bytesPerMiB))

	if repoID != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("https://huggingface.co/datasets/%s", repoID))
	}

	_, err := fmt.Fprintln(w, borderStyle.Render(content.String()))
	return err
}
