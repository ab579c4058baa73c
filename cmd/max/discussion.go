package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayushsreejith06/max/internal/client"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/spf13/cobra"
)

var discussionCmd = &cobra.Command{
	Use:     "discussion",
	Aliases: []string{"d"},
	Short:   "Inspect and drive discussions",
	GroupID: "discussions",
}

var discussionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discussions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		sectorID, _ := f.GetString("sector")
		status, _ := f.GetStringSlice("status")
		limit, _ := f.GetInt("limit")
		offset, _ := f.GetInt("offset")

		resp, err := maxClient.ListDiscussions(context.Background(), &client.ListDiscussionsRequest{
			SectorID: sectorID,
			Status:   status,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return fmt.Errorf("listing discussions: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
		} else {
			printDiscussionListTable(resp)
		}
		return nil
	},
}

// discussionStep builds a command that applies one engine step to a
// discussion and prints the result.
func discussionStep(use, short string, step func(context.Context, string) (*model.Discussion, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := step(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("%s discussion: %w", use, err)
			}
			if jsonOutput {
				printJSON(d)
			} else {
				printDiscussionTable(d)
			}
			return nil
		},
	}
}

var discussionEvaluateCmd = &cobra.Command{
	Use:   "evaluate <id>",
	Short: "Run one manager evaluation pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := maxClient.Evaluate(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("evaluating discussion: %w", err)
		}
		if jsonOutput {
			printJSON(r)
		} else {
			printPassReport(r)
		}
		return nil
	},
}

var discussionMessageCmd = &cobra.Command{
	Use:   "message <id> <text>...",
	Short: "Post a message to a discussion",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, _ := cmd.Flags().GetString("agent")
		m, err := maxClient.AddMessage(context.Background(), args[0], agentID, strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("posting message: %w", err)
		}
		if jsonOutput {
			printJSON(m)
		} else {
			fmt.Printf("Posted message %s\n", m.ID)
		}
		return nil
	},
}

var discussionItemCmd = &cobra.Command{
	Use:   "item <id> <action>",
	Short: "Submit a checklist item on behalf of an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		agentID, _ := f.GetString("agent")
		symbol, _ := f.GetString("symbol")
		alloc, _ := f.GetFloat64("allocation")
		reasoning, _ := f.GetString("reasoning")

		req := &client.SubmitItemRequest{
			AgentID:           agentID,
			Action:            strings.ToUpper(args[1]),
			Symbol:            symbol,
			AllocationPercent: alloc,
			Reasoning:         reasoning,
		}
		if f.Changed("confidence") {
			confidence, _ := f.GetFloat64("confidence")
			req.Confidence = &confidence
		}
		it, err := maxClient.SubmitItem(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("submitting item: %w", err)
		}
		if jsonOutput {
			printJSON(it)
		} else {
			fmt.Printf("Submitted item %s: %s %s %.2f\n", it.ID, it.Action, it.Symbol, it.Amount)
		}
		return nil
	},
}

var discussionEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Show the event history of a discussion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := maxClient.GetEvents(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting events: %w", err)
		}
		if jsonOutput {
			printJSON(evs)
		} else {
			printEventListTable(evs)
		}
		return nil
	},
}

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Short:   "List approved trades handed to execution",
	GroupID: "discussions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sectorID, _ := cmd.Flags().GetString("sector")
		entries, err := maxClient.ListExecutions(context.Background(), sectorID)
		if err != nil {
			return fmt.Errorf("listing executions: %w", err)
		}
		if jsonOutput {
			printJSON(entries)
		} else {
			printExecutionListTable(entries)
		}
		return nil
	},
}

func init() {
	discussionListCmd.Flags().String("sector", "", "only discussions in this sector")
	discussionListCmd.Flags().StringSlice("status", nil, "filter by status (repeatable)")
	discussionListCmd.Flags().Int("limit", 50, "maximum results")
	discussionListCmd.Flags().Int("offset", 0, "results to skip")

	discussionMessageCmd.Flags().String("agent", "", "author agent ID (required)")
	_ = discussionMessageCmd.MarkFlagRequired("agent")

	discussionItemCmd.Flags().String("agent", "", "proposing agent ID (required)")
	discussionItemCmd.Flags().String("symbol", "", "symbol to trade (defaults to the sector symbol)")
	discussionItemCmd.Flags().Float64("allocation", 0, "percent of the sector balance")
	discussionItemCmd.Flags().Float64("confidence", 50, "agent confidence (0-100); the server default applies when unset")
	discussionItemCmd.Flags().String("reasoning", "", "why the agent proposes it")
	_ = discussionItemCmd.MarkFlagRequired("agent")

	executionsCmd.Flags().String("sector", "", "only executions for this sector")

	discussionCmd.AddCommand(
		discussionListCmd,
		discussionStep("show", "Show a discussion", func(ctx context.Context, id string) (*model.Discussion, error) {
			return maxClient.GetDiscussion(ctx, id)
		}),
		discussionStep("round", "Collect one round of proposals", func(ctx context.Context, id string) (*model.Discussion, error) {
			return maxClient.RunRound(ctx, id)
		}),
		discussionEvaluateCmd,
		discussionStep("advance", "Start the next round or close", func(ctx context.Context, id string) (*model.Discussion, error) {
			return maxClient.Advance(ctx, id)
		}),
		discussionStep("run", "Drive a discussion until it closes", func(ctx context.Context, id string) (*model.Discussion, error) {
			return maxClient.Run(ctx, id)
		}),
		discussionStep("close", "Close a discussion", func(ctx context.Context, id string) (*model.Discussion, error) {
			return maxClient.CloseDiscussion(ctx, id)
		}),
		discussionMessageCmd,
		discussionItemCmd,
		discussionEventsCmd,
	)
}
