package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestColorizeHelpOutput(t *testing.T) {
	in := "Market:\n  sector      Manage sectors\n\nFlags:\n      --http-url string   HTTP server URL (default \"http://localhost:8080\")\n"
	out := colorizeHelpOutput(in)

	for _, want := range []string{
		"\x1b[38;5;74mMarket:\x1b[0m",
		"  \x1b[38;5;250msector\x1b[0m  ",
		"--http-url \x1b[38;5;245mstring\x1b[0m",
		"\x1b[38;5;245m(default \"http://localhost:8080\")\x1b[0m",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestColorizeHelpOutput_TopicsAndEnv(t *testing.T) {
	out := colorizeHelpOutput(`Patterns such as "max.item.>" match.` + "\nEnvironment:\n  MAX_NATS_URL\n")
	for _, want := range []string{
		`"` + "\x1b[38;5;250mmax.item.>\x1b[0m" + `"`,
		"\x1b[38;5;74mEnvironment:\x1b[0m",
		"  \x1b[38;5;245mMAX_NATS_URL\x1b[0m",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEnvSection(t *testing.T) {
	serve, _, err := rootCmd.Find([]string{"serve"})
	if err != nil {
		t.Fatal(err)
	}
	got := envSection(serve)
	if !strings.HasPrefix(got, "\nEnvironment:\n") || !strings.Contains(got, "  MAX_MARKET_INTERVAL\n") {
		t.Errorf("serve env section = %q", got)
	}

	list, _, err := rootCmd.Find([]string{"sector", "list"})
	if err != nil {
		t.Fatal(err)
	}
	if got := envSection(list); got != "" {
		t.Errorf("sector list env section = %q, want none", got)
	}
}

func TestSectorRequestFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	addSectorFlags(cmd)
	for name, val := range map[string]string{
		"symbol":    "tech",
		"balance":   "500",
		"base-risk": "30",
		"symbols":   "TECH,NVDA",
	} {
		if err := cmd.Flags().Set(name, val); err != nil {
			t.Fatalf("Set(%s): %v", name, err)
		}
	}

	req := sectorRequestFromFlags(cmd)
	if req.Symbol == nil || *req.Symbol != "tech" {
		t.Errorf("Symbol = %v", req.Symbol)
	}
	if req.Balance == nil || *req.Balance != 500 {
		t.Errorf("Balance = %v", req.Balance)
	}
	if req.BaseRisk == nil || *req.BaseRisk != 30 {
		t.Errorf("BaseRisk = %v", req.BaseRisk)
	}
	if len(req.AllowedSymbols) != 2 {
		t.Errorf("AllowedSymbols = %v", req.AllowedSymbols)
	}
	if req.Description != nil || req.CurrentPrice != nil || req.MaxTradeAmount != nil {
		t.Errorf("unset flags leaked into request: %+v", req)
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is far too long", 10, "this is..."},
	} {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"sector", "start"},
		{"sector", "candles"},
		{"agent", "roster"},
		{"discussion", "evaluate"},
		{"discussion", "run"},
		{"discussion", "item"},
		{"serve"},
		{"seed"},
		{"export"},
		{"watch"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %v, %v", path, cmd, err)
		}
	}
}
