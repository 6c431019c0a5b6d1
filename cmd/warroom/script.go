package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kingrea/warroom/internal/script"
	"github.com/kingrea/warroom/internal/warroom"
)

// scriptCmd prints the embedded catalog
var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the scripted catalog",
	Long: `Print the embedded script: phases, roster, stakeholders, pipeline nodes and
timings. Useful when editing script.yaml or checking a playback speed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := script.Default()
		if err != nil {
			return err
		}
		return printCatalog(cmd.OutOrStdout(), catalog)
	},
}

func printCatalog(w io.Writer, c *script.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "Script v%d · deploy marker %s\n\n", c.Version, c.DeployMarker)

	var phases []string
	for _, p := range warroom.Phases() {
		phases = append(phases, p.String())
	}
	fmt.Fprintf(tw, "Phases\n  %s\n\n", strings.Join(phases, " → "))

	fmt.Fprintln(tw, "Roster")
	for _, sp := range c.Speakers {
		marker := ""
		switch {
		case sp.ID == c.Operator:
			marker = "(you)"
		case sp.Agent:
			marker = "(agent)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", sp.Name, sp.Role, marker)
	}

	fmt.Fprintln(tw, "\nStakeholders")
	for _, sh := range c.Stakeholders {
		fmt.Fprintf(tw, "  %s\t%s\n", sh.Name, sh.Role)
	}

	fmt.Fprintln(tw, "\nPipeline")
	for _, n := range c.Nodes {
		marker := ""
		if n.ID == c.DesignatedNode {
			marker = "(designated)"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", n.Label, marker)
	}

	t := c.Timing
	fmt.Fprintln(tw, "\nTiming")
	for _, row := range []struct {
		name  string
		value fmt.Stringer
	}{
		{"typing", t.Typing},
		{"pause", t.Pause},
		{"intro start", t.IntroStart},
		{"rebuttal start", t.RebuttalStart},
		{"lock failure", t.LockFailureAt},
		{"review opens", t.ReviewAt},
		{"operational", t.OperationalAt},
	} {
		fmt.Fprintf(tw, "  %s\t%s\n", row.name, row.value)
	}
	return tw.Flush()
}
