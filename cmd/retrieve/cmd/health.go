package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/milad-o/agenticflow-sub002/internal/output"
	"github.com/milad-o/agenticflow-sub002/pkg/factory"
)

type healthReport struct {
	Type    string `json:"type"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// newHealthCmd creates the health command.
func newHealthCmd(root *rootOptions) *cobra.Command {
	var (
		src        sourceFlags
		all        bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that retrievers can answer a query",
		Long: `Build the configured retriever over the loaded documents and run its
health check. With --all, every non-composite registered type is checked
instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := src.apply(cmd, root.cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, root.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			var reports []healthReport
			if all {
				registry := factory.DefaultRegistry()
				for _, kind := range registry.Types() {
					if reg, _ := registry.Lookup(kind); reg.Composite {
						continue
					}
					ret, err := s.Create(kind)
					if err != nil {
						reports = append(reports, healthReport{Type: kind, Error: err.Error()})
						continue
					}
					reports = append(reports, healthReport{Type: kind, Healthy: ret.HealthCheck(ctx)})
				}
			} else {
				ret, err := s.Build(cfg.Retriever)
				if err != nil {
					return err
				}
				reports = append(reports, healthReport{Type: ret.Type(), Healthy: ret.HealthCheck(ctx)})
			}

			if jsonOutput {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				out := output.New(cmd.OutOrStdout())
				for _, r := range reports {
					switch {
					case r.Error != "":
						out.Errorf("%s: %s", r.Type, r.Error)
					case r.Healthy:
						out.Successf("%s healthy", r.Type)
					default:
						out.Warningf("%s unhealthy", r.Type)
					}
				}
			}

			unhealthy := 0
			for _, r := range reports {
				if !r.Healthy {
					unhealthy++
				}
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d of %d retrievers unhealthy", unhealthy, len(reports))
			}
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Check every non-composite type")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}
