package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ayushsreejith06/max/internal/client"
	"github.com/spf13/cobra"
)

var sectorCmd = &cobra.Command{
	Use:     "sector",
	Short:   "Manage sectors",
	GroupID: "market",
}

var sectorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sectors, err := maxClient.ListSectors(context.Background())
		if err != nil {
			return fmt.Errorf("listing sectors: %w", err)
		}
		if jsonOutput {
			printJSON(sectors)
		} else {
			printSectorListTable(sectors)
		}
		return nil
	},
}

var sectorShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := maxClient.GetSector(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting sector: %w", err)
		}
		if jsonOutput {
			printJSON(s)
		} else {
			printSectorTable(s)
		}
		return nil
	},
}

var sectorCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := sectorRequestFromFlags(cmd)
		name := args[0]
		req.Name = &name
		s, err := maxClient.CreateSector(context.Background(), req)
		if err != nil {
			return fmt.Errorf("creating sector: %w", err)
		}
		if jsonOutput {
			printJSON(s)
		} else {
			fmt.Printf("Created sector %s (%s)\n", s.ID, s.Symbol)
		}
		return nil
	},
}

var sectorUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update sector fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := sectorRequestFromFlags(cmd)
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			req.Name = &v
		}
		s, err := maxClient.UpdateSector(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating sector: %w", err)
		}
		if jsonOutput {
			printJSON(s)
		} else {
			printSectorTable(s)
		}
		return nil
	},
}

var sectorStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Try to open a discussion in a sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := maxClient.StartDiscussion(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("starting discussion: %w", err)
		}
		if jsonOutput {
			printJSON(res)
		} else if res.Started {
			fmt.Printf("Started discussion %s\n", res.DiscussionID)
		} else {
			fmt.Printf("Not started: %s (%s)\n", res.Reason, res.Detail)
		}
		if !res.Started {
			return fmt.Errorf("discussion not started: %s", res.Reason)
		}
		return nil
	},
}

// sectorRequestFromFlags copies every explicitly set flag into a request.
func sectorRequestFromFlags(cmd *cobra.Command) *client.SectorRequest {
	req := &client.SectorRequest{}
	f := cmd.Flags()
	if f.Changed("symbol") {
		v, _ := f.GetString("symbol")
		req.Symbol = &v
	}
	if f.Changed("description") {
		v, _ := f.GetString("description")
		req.Description = &v
	}
	if f.Changed("symbols") {
		req.AllowedSymbols, _ = f.GetStringSlice("symbols")
	}
	for name, dst := range map[string]**float64{
		"balance":          &req.Balance,
		"base-risk":        &req.BaseRisk,
		"risk-appetite":    &req.RiskAppetite,
		"max-trade-amount": &req.MaxTradeAmount,
		"price":            &req.CurrentPrice,
	} {
		if f.Changed(name) {
			v, _ := f.GetFloat64(name)
			*dst = &v
		}
	}
	return req
}

var sectorCandlesCmd = &cobra.Command{
	Use:   "candles <id>",
	Short: "Show a sector's simulated price history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.CandlesRequest{}
		req.Limit, _ = cmd.Flags().GetInt("limit")
		if window, _ := cmd.Flags().GetDuration("since"); window > 0 {
			req.Since = time.Now().Add(-window)
		}
		candles, err := maxClient.Candles(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("listing candles: %w", err)
		}
		if jsonOutput {
			printJSON(candles)
		} else {
			printCandleTable(candles)
		}
		return nil
	},
}

func addSectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("symbol", "", "sector ticker symbol")
	cmd.Flags().String("description", "", "sector description")
	cmd.Flags().StringSlice("symbols", nil, "symbols agents may trade (defaults to the sector symbol)")
	cmd.Flags().Float64("balance", 0, "capital available to the sector")
	cmd.Flags().Float64("base-risk", 0, "base risk score (0-100)")
	cmd.Flags().Float64("risk-appetite", 0, "risk appetite (0-100)")
	cmd.Flags().Float64("max-trade-amount", 0, "largest single trade amount")
	cmd.Flags().Float64("price", 0, "current price")
}

func init() {
	addSectorFlags(sectorCreateCmd)
	addSectorFlags(sectorUpdateCmd)
	sectorUpdateCmd.Flags().String("name", "", "sector name")

	sectorCandlesCmd.Flags().Int("limit", 24, "most recent candles to show (0 for all)")
	sectorCandlesCmd.Flags().Duration("since", 0, "only candles from this far back, e.g. 2h")

	sectorCmd.AddCommand(sectorListCmd, sectorShowCmd, sectorCreateCmd, sectorUpdateCmd, sectorStartCmd, sectorCandlesCmd)
}
