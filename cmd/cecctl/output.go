package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

const dateLayout = "2006-01-02"

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func renderSweep(w io.Writer, resp *dto.SchedulerRunResponse) error {
	elapsed := resp.FinishedAt.Sub(resp.StartedAt)
	switch result := resp.Result.(type) {
	case *dto.LifecycleSweepResult:
		fmt.Fprintf(w, "%s: promoted %d activities in %s\n", resp.Job, result.Promoted, elapsed)
		if len(result.ActivityIDs) > 0 {
			tw := newTable(w, table.Row{"Activity"})
			for _, id := range result.ActivityIDs {
				tw.AppendRow(table.Row{id})
			}
			tw.Render()
		}
	case *dto.EscalationSweepResult:
		fmt.Fprintf(w, "%s: scanned %d, reminded %d, failed %d in %s\n", resp.Job, result.Scanned, result.Reminded, result.Failed, elapsed)
		if len(result.Items) > 0 {
			tw := newTable(w, table.Row{"Proposal", "Step", "Recipients", "Emailed", "Error"})
			for _, item := range result.Items {
				tw.AppendRow(table.Row{item.ProposalID, item.Step, item.Recipients, item.Emailed, item.Error})
			}
			tw.Render()
		}
	default:
		return printJSON(w, resp)
	}
	return nil
}

func renderSchoolYears(w io.Writer, years []models.SchoolYear) {
	tw := newTable(w, table.Row{"ID", "Year", "Start", "End", "Current"})
	for _, y := range years {
		current := ""
		if y.IsCurrent {
			current = "*"
		}
		tw.AppendRow(table.Row{y.ID, y.Year, y.StartDate.Format(dateLayout), y.EndDate.Format(dateLayout), current})
	}
	tw.Render()
}

func renderProposals(w io.Writer, proposals []models.Proposal) {
	if len(proposals) == 0 {
		fmt.Fprintln(w, "nothing pending")
		return
	}
	tw := newTable(w, table.Row{"ID", "Title", "Target", "Step", "Waiting Since"})
	for _, p := range proposals {
		step := ""
		if p.CurrentApprovalStep != nil {
			step = strings.ReplaceAll(string(*p.CurrentApprovalStep), "_", " ")
		}
		tw.AppendRow(table.Row{p.ID, p.Title, p.TargetDate.Format(dateLayout), step, p.UpdatedAt.Format("2006-01-02 15:04")})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", len(proposals)})
	tw.Render()
}
