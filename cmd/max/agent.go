package main

import (
	"context"
	"fmt"

	"github.com/ayushsreejith06/max/internal/client"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:     "agent",
	Short:   "Manage agents",
	GroupID: "market",
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sectorID, _ := cmd.Flags().GetString("sector")
		agents, err := maxClient.ListAgents(context.Background(), sectorID)
		if err != nil {
			return fmt.Errorf("listing agents: %w", err)
		}
		if jsonOutput {
			printJSON(agents)
		} else {
			printAgentListTable(agents)
		}
		return nil
	},
}

var agentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := maxClient.GetAgent(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting agent: %w", err)
		}
		if jsonOutput {
			printJSON(a)
		} else {
			printAgentTable(a)
		}
		return nil
	},
}

var agentCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an agent in a sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		sectorID, _ := f.GetString("sector")
		role, _ := f.GetString("role")
		confidence, _ := f.GetFloat64("confidence")
		risk, _ := f.GetString("risk")
		style, _ := f.GetString("style")

		a, err := maxClient.CreateAgent(context.Background(), &client.CreateAgentRequest{
			SectorID:   sectorID,
			Name:       args[0],
			Role:       role,
			Confidence: confidence,
			Personality: model.Personality{
				RiskTolerance: model.RiskTolerance(risk),
				DecisionStyle: style,
			},
		})
		if err != nil {
			return fmt.Errorf("creating agent: %w", err)
		}
		if jsonOutput {
			printJSON(a)
		} else {
			fmt.Printf("Created agent %s (%s)\n", a.ID, a.Role)
		}
		return nil
	},
}

var agentRosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Show live agent presence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sectorID, _ := cmd.Flags().GetString("sector")
		entries, err := maxClient.Roster(context.Background(), sectorID)
		if err != nil {
			return fmt.Errorf("getting roster: %w", err)
		}
		if jsonOutput {
			printJSON(entries)
		} else if len(entries) == 0 {
			fmt.Println("No active agents")
		} else {
			printRosterTable(entries)
		}
		return nil
	},
}

func init() {
	agentListCmd.Flags().String("sector", "", "only agents in this sector")
	agentRosterCmd.Flags().String("sector", "", "only agents in this sector")

	agentCreateCmd.Flags().String("sector", "", "sector ID (required)")
	agentCreateCmd.Flags().String("role", string(model.RoleGeneral), "agent role")
	agentCreateCmd.Flags().Float64("confidence", 0, "starting confidence (0-100)")
	agentCreateCmd.Flags().String("risk", "", "risk tolerance (low, medium, high, aggressive)")
	agentCreateCmd.Flags().String("style", "", "decision style")
	_ = agentCreateCmd.MarkFlagRequired("sector")

	agentCmd.AddCommand(agentListCmd, agentShowCmd, agentCreateCmd, agentRosterCmd)
}
