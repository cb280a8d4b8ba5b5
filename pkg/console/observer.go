// Package console renders research progress in a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mikeboe/deep-research/pkg/research"
)

const previewLength = 300

// Observer prints progress as markdown-flavoured text. Headings are bold when
// the output is a terminal.
type Observer struct {
	out   io.Writer
	color bool
}

func NewObserver(out io.Writer) *Observer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Observer{out: out, color: color}
}

var _ research.Observer = (*Observer)(nil)

func (o *Observer) heading(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if o.color {
		text = "\033[1m" + text + "\033[0m"
	}
	fmt.Fprintf(o.out, "\n%s\n\n", text)
}

func (o *Observer) ResearchStarted(topic string) {
	o.heading("# Deep Research: %s", topic)
}

func (o *Observer) QueriesPlanned(batch research.QueryBatch) {
	o.heading("#### Query Agent Thoughts")
	fmt.Fprintln(o.out, batch.Thoughts)
}

func (o *Observer) Searching(iteration int, query string) {
	o.heading("##### Searching (round %d): %s", iteration, query)
}

func (o *Observer) ResultSummarized(result research.SearchResult) {
	fmt.Fprintf(o.out, "**%s**\n", result.Title)
	fmt.Fprintf(o.out, "[Visit Website](%s)\n", result.URL)
	fmt.Fprintf(o.out, "> %s\n\n", Preview(result.Summary))
}

func (o *Observer) FollowUpDecided(iteration int, decision research.FollowUpDecision) {
	o.heading("#### Follow-up Evaluation (round %d)", iteration)
	status := "Complete"
	if decision.ShouldFollowUp {
		status = "Continue"
	}
	fmt.Fprintf(o.out, "**Decision:** %s\n", status)
	fmt.Fprintf(o.out, "**Reasoning:** %s\n", decision.Reasoning)
	if decision.ShouldFollowUp && len(decision.Queries) > 0 {
		fmt.Fprintln(o.out, "**Next Queries:**")
		for _, q := range decision.Queries {
			fmt.Fprintf(o.out, "- %s\n", q)
		}
	}
}

func (o *Observer) Synthesizing() {
	o.heading("#### Synthesizing Final Report")
}

func (o *Observer) ReportReady(report string) {
	o.heading("### Final Research Report")
	fmt.Fprintln(o.out, report)
}

func (o *Observer) Warning(message string) {
	fmt.Fprintf(o.out, "WARNING: %s\n", message)
}

func (o *Observer) ResearchFailed(err error) {
	fmt.Fprintf(o.out, "\nERROR: research failed: %v\n", err)
}

// Preview shortens a summary to previewLength runes, adding an ellipsis when cut.
func Preview(summary string) string {
	summary = strings.Join(strings.Fields(summary), " ")
	runes := []rune(summary)
	if len(runes) <= previewLength {
		return summary
	}
	return string(runes[:previewLength]) + "..."
}
