package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ayushsreejith06/max/internal/client"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func statusText(s string) string {
	if !ui.ShouldUseColor() {
		return s
	}
	return ui.RenderStatus(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func printSectorTable(s *model.Sector) {
	fmt.Printf("ID:           %s\n", s.ID)
	fmt.Printf("Name:         %s\n", s.Name)
	fmt.Printf("Symbol:       %s\n", s.Symbol)
	if s.Description != "" {
		fmt.Printf("Description:  %s\n", s.Description)
	}
	if len(s.AllowedSymbols) > 0 {
		fmt.Printf("Symbols:      %s\n", strings.Join(s.AllowedSymbols, ", "))
	}
	fmt.Printf("Balance:      %.2f\n", s.Balance)
	fmt.Printf("Base Risk:    %.0f\n", s.BaseRisk)
	if s.MaxTradeAmount > 0 {
		fmt.Printf("Max Trade:    %.2f\n", s.MaxTradeAmount)
	}
	fmt.Printf("Price:        %.2f (%+.2f%%)\n", s.CurrentPrice, s.ChangePercent)
	if s.LastDiscussionAt != nil {
		fmt.Printf("Last Discuss: %s\n", formatTime(*s.LastDiscussionAt))
	}
	fmt.Printf("Updated At:   %s\n", formatTime(s.UpdatedAt))
}

func printSectorListTable(sectors []*model.Sector) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tNAME\tBALANCE\tRISK\tPRICE")
	for _, s := range sectors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.0f\t%.2f\n",
			s.ID, s.Symbol, truncate(s.Name, 30), s.Balance, s.BaseRisk, s.CurrentPrice)
	}
	w.Flush()
	fmt.Printf("\n%d sectors\n", len(sectors))
}

func printAgentTable(a *model.Agent) {
	fmt.Printf("ID:          %s\n", a.ID)
	fmt.Printf("Name:        %s\n", a.Name)
	fmt.Printf("Sector:      %s\n", a.SectorID)
	fmt.Printf("Role:        %s\n", a.Role)
	fmt.Printf("Status:      %s\n", a.Status)
	fmt.Printf("Confidence:  %.0f\n", a.Confidence)
	if a.Personality.RiskTolerance != "" {
		fmt.Printf("Risk:        %s\n", a.Personality.RiskTolerance)
	}
	if a.Personality.DecisionStyle != "" {
		fmt.Printf("Style:       %s\n", a.Personality.DecisionStyle)
	}
	fmt.Printf("Trades:      %d\n", a.Trades)
}

func printAgentListTable(agents []*model.Agent) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSECTOR\tROLE\tSTATUS\tCONFIDENCE\tNAME")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%s\n",
			a.ID, a.SectorID, a.Role, a.Status, a.Confidence, truncate(a.Name, 30))
	}
	w.Flush()
	fmt.Printf("\n%d agents\n", len(agents))
}

func printRosterTable(entries []client.RosterEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tNAME\tLAST\tIDLE\tACTIVITY\tFALLBACKS\tDETAIL")
	for _, e := range entries {
		last := e.LastKind
		if e.Offline {
			last = "offline"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.AgentID, e.Name, last,
			(time.Duration(e.IdleSecs) * time.Second).String(),
			e.ActivityCount, e.FallbackCount, e.Detail)
	}
	w.Flush()
}

func printDiscussionListTable(resp *client.ListDiscussionsResponse) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSECTOR\tSTATUS\tROUND\tITEMS\tMESSAGES\tUPDATED")
	for _, d := range resp.Discussions {
		sector := d.SectorSymbol
		if sector == "" {
			sector = d.SectorID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			d.ID, sector, d.Status, d.CurrentRound, d.ItemCount, d.MessagesCount, formatTime(d.UpdatedAt))
	}
	w.Flush()
	fmt.Printf("\n%d discussions (%d total)\n", len(resp.Discussions), resp.Total)
}

func printDiscussionTable(d *model.Discussion) {
	fmt.Printf("ID:          %s\n", d.ID)
	if d.Title != "" {
		fmt.Printf("Title:       %s\n", d.Title)
	}
	fmt.Printf("Sector:      %s\n", d.SectorID)
	fmt.Printf("Status:      %s\n", statusText(string(d.Status)))
	fmt.Printf("Round:       %d (%d run)\n", d.CurrentRound, d.RoundsRun)
	fmt.Printf("Agents:      %s\n", strings.Join(d.Participants, ", "))
	fmt.Printf("Created At:  %s\n", formatTime(d.CreatedAt))
	if d.ClosedAt != nil {
		fmt.Printf("Closed At:   %s\n", formatTime(*d.ClosedAt))
	}

	if len(d.Checklist) > 0 {
		fmt.Println()
		printChecklistTable(d)
	}
	if len(d.FinalizedChecklist) > 0 {
		fmt.Printf("\nApproved:\n")
		for _, s := range d.FinalizedChecklist {
			fmt.Printf("  %s %s %.2f (score %.1f)\n", s.Action, s.Symbol, s.Amount, s.Score)
		}
	}
	if len(d.Messages) > 0 {
		fmt.Printf("\nMessages:\n")
		for _, m := range d.Messages {
			who := m.AgentName
			if who == "" {
				who = m.AgentID
			}
			if who == "" {
				who = "system"
			}
			fmt.Printf("  [%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), who, m.Content)
		}
	}
}

func printChecklistTable(d *model.Discussion) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tAGENT\tACTION\tSYMBOL\tAMOUNT\tCONF\tSTATUS\tSCORE\tREASON")
	for _, it := range d.Checklist {
		score := "-"
		if dec, ok := d.LatestDecision(it.ID); ok {
			score = fmt.Sprintf("%.1f", dec.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.0f\t%s\t%s\t%s\n",
			it.ID, it.AgentID, it.Action, it.Symbol, it.Amount, it.Confidence,
			it.Status, score, truncate(it.StatusReason, 40))
	}
	w.Flush()
}

func printPassReport(r *client.PassReport) {
	fmt.Printf("Evaluated %d: %d approved, %d rejected, %d revise, %d gave up, %d timed out, %d skipped\n",
		r.Evaluated, r.Approved, r.Rejected, r.Revised, r.GaveUp, r.TimedOut, r.Skipped)
	if r.Closed {
		fmt.Println(statusText("CLOSED"))
	}
	if r.Discussion != nil {
		fmt.Println()
		printDiscussionTable(r.Discussion)
	}
}

func printExecutionListTable(entries []*model.ExecutionEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSECTOR\tDISCUSSION\tACTION\tSYMBOL\tAMOUNT\tSCORE\tSTATUS\tSUBMITTED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.1f\t%s\t%s\n",
			e.ID, e.SectorID, e.DiscussionID, e.Action, e.Symbol, e.Amount, e.Score, e.Status, formatTime(e.SubmittedAt))
	}
	w.Flush()
	fmt.Printf("\n%d executions\n", len(entries))
}

func printEventListTable(evs []*model.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOPIC\tPAYLOAD")
	for _, e := range evs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", formatTime(e.CreatedAt), e.Topic, truncate(string(e.Payload), 80))
	}
	w.Flush()
}

func printCandleTable(candles []*model.Candle) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tVALUE\tCHANGE")
	var prev float64
	for i, c := range candles {
		change := "-"
		if i > 0 && prev != 0 {
			change = fmt.Sprintf("%+.2f%%", (c.Value-prev)/prev*100)
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\n", formatTime(c.Timestamp), c.Value, change)
		prev = c.Value
	}
	w.Flush()
	fmt.Printf("\n%d candles\n", len(candles))
}
