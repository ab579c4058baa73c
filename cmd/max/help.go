package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ayushsreejith06/max/internal/ui"
	"github.com/spf13/cobra"
)

// commandEnv lists the environment each command reads, keyed by command
// path without the root name. Help prints it as an "Environment:" section.
var commandEnv = map[string][]string{
	"serve": {
		"MAX_DATABASE_URL", "MAX_HTTP_ADDR", "MAX_AUTH_TOKEN", "MAX_NATS_URL",
		"MAX_TUNING_FILE", "MAX_PROPOSAL_PROVIDER", "MAX_SWEEP_INTERVAL",
		"MAX_MARKET_INTERVAL", "MAX_MARKET_BACKFILL", "MAX_EXECUTION_HOOK",
		"MAX_EXPORT_INTERVAL", "MAX_EXPORT_S3_BUCKET", "MAX_EXPORT_GIT_REPO",
	},
	"seed":   {"MAX_DATABASE_URL"},
	"export": {"MAX_DATABASE_URL", "MAX_EXPORT_S3_BUCKET", "MAX_EXPORT_GIT_REPO"},
	"watch":  {"MAX_HTTP_URL", "MAX_AUTH_TOKEN", "MAX_NATS_URL"},
}

// helpStyle is one colorizing pass over the help text. Each pass sees the
// output of the one before it.
type helpStyle struct {
	re     *regexp.Regexp
	render func(groups []string) string
}

var helpStyles = []helpStyle{
	// Group titles such as "Market:" or "Flags:" on their own line.
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), func(g []string) string {
		return ui.RenderAccent(g[1])
	}},
	// Command names in a listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(g []string) string {
		return g[1] + ui.RenderCommand(g[2]) + g[3]
	}},
	// Flag value types, e.g. "--balance float".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|float|duration|strings|stringSlice)\b`), func(g []string) string {
		return g[1] + ui.RenderMuted(g[2])
	}},
	// Quoted defaults only, so [command] and [flags] stay plain.
	{regexp.MustCompile(`\(default "[^"]*"\)`), func(g []string) string {
		return ui.RenderMuted(g[0])
	}},
	// Event topics and patterns in long descriptions.
	{regexp.MustCompile(`"(max\.[a-z.*>]+)"`), func(g []string) string {
		return `"` + ui.RenderCommand(g[1]) + `"`
	}},
	// Environment variable names.
	{regexp.MustCompile(`\bMAX_[A-Z0-9_]+\b`), func(g []string) string {
		return ui.RenderMuted(g[0])
	}},
}

// colorizedHelpFunc returns a Cobra help function that appends the command's
// environment and colors the result when the terminal allows it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		orig := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)

		text := buf.String() + envSection(cmd)
		if ui.ShouldUseColor() {
			text = colorizeHelpOutput(text)
		}
		fmt.Fprint(orig, text)
	}
}

// envSection renders the environment variables cmd reads, or "" for
// commands that read none.
func envSection(cmd *cobra.Command) string {
	path := strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name())
	vars := commandEnv[strings.TrimSpace(path)]
	if len(vars) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nEnvironment:\n")
	for _, v := range vars {
		fmt.Fprintf(&b, "  %s\n", v)
	}
	return b.String()
}

// colorizeHelpOutput applies ANSI styling to Cobra's plain-text help.
func colorizeHelpOutput(s string) string {
	for _, st := range helpStyles {
		s = st.re.ReplaceAllStringFunc(s, func(match string) string {
			return st.render(st.re.FindStringSubmatch(match))
		})
	}
	return s
}
