package cmd

import (
	"github.com/spf13/cobra"

	"github.com/milad-o/agenticflow-sub002/internal/output"
	"github.com/milad-o/agenticflow-sub002/pkg/factory"
)

type typeInfo struct {
	Type      string `json:"type"`
	Composite bool   `json:"composite"`
}

// newTypesCmd creates the types command.
func newTypesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List registered retriever types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := factory.DefaultRegistry()
			var infos []typeInfo
			for _, kind := range registry.Types() {
				reg, _ := registry.Lookup(kind)
				infos = append(infos, typeInfo{Type: kind, Composite: reg.Composite})
			}

			if jsonOutput {
				return writeJSON(cmd, infos)
			}

			out := output.New(cmd.OutOrStdout())
			out.Heading("Strategies")
			for _, info := range infos {
				if !info.Composite {
					out.Status("", info.Type)
				}
			}
			out.Heading("Composites")
			for _, info := range infos {
				if info.Composite {
					out.Status("", info.Type)
				}
			}
			out.Newline()
			out.Status("", factory.Auto+" picks a strategy from the data source's capabilities")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
