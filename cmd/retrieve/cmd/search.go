package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/milad-o/agenticflow-sub002/internal/config"
	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/internal/output"
	"github.com/milad-o/agenticflow-sub002/pkg/factory"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

const snippetRunes = 120

// sourceFlags are shared by commands that open a session.
type sourceFlags struct {
	strategy string
	specPath string
	docs     []string
	backend  string
	dbPath   string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.strategy, "strategy", "s", "", "Retriever type (see 'retrieve types'); overrides the config")
	flags.StringVar(&f.specPath, "spec", "", "YAML file describing a retriever tree; overrides the config")
	flags.StringSliceVarP(&f.docs, "docs", "d", nil, "Document files to load (JSONL, JSON, YAML or text)")
	flags.StringVar(&f.backend, "backend", "", "Data source: memory, sqlite, bleve or vector")
	flags.StringVar(&f.dbPath, "db", "", "SQLite database file for the sqlite backend")
}

// apply returns a copy of base with the flags applied.
func (f *sourceFlags) apply(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	cfg := *base
	cfg.Source.Documents = append(append([]string(nil), base.Source.Documents...), f.docs...)

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Source.Backend = f.backend
	}
	if flags.Changed("db") {
		cfg.Source.Path = f.dbPath
	}
	if f.specPath != "" {
		data, err := os.ReadFile(f.specPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec %s: %w", f.specPath, err)
		}
		spec, err := factory.ParseSpec(data)
		if err != nil {
			return nil, err
		}
		cfg.Retriever = spec
	}
	if f.strategy != "" {
		cfg.Retriever = factory.Spec{Type: f.strategy}
	}

	if err := cfg.Validate(); err != nil {
		return nil, aerrors.New(aerrors.ErrCodeConfigInvalid, "invalid configuration", err)
	}
	return &cfg, nil
}

// searchOutput is the JSON shape of a search.
type searchOutput struct {
	Query     string             `json:"query"`
	Retriever string             `json:"retriever"`
	Took      string             `json:"took"`
	Results   []retriever.Result `json:"results"`
}

// newSearchCmd creates the search command.
func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		src        sourceFlags
		limit      int
		threshold  float64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank documents for a query",
		Long: `Load documents, build the configured retriever and print the ranked
results. Scores are strategy-specific; composites fuse them.`,
		Example: `  retrieve search "machine learning" --docs corpus.jsonl --strategy bm25
  retrieve search "vector db" --docs notes.md,faq.yaml --spec hybrid.yaml --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg, err := src.apply(cmd, root.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("limit") {
				cfg.Search.Limit = limit
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Search.Threshold = &threshold
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, root.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			ret, err := s.Build(cfg.Retriever)
			if err != nil {
				return err
			}

			var opts []retriever.RetrieveOption
			if cfg.Search.Limit > 0 {
				opts = append(opts, retriever.WithLimit(cfg.Search.Limit))
			}
			if cfg.Search.Threshold != nil {
				opts = append(opts, retriever.WithThreshold(*cfg.Search.Threshold))
			}

			start := time.Now()
			results, err := ret.Retrieve(ctx, query, opts...)
			if err != nil {
				return err
			}
			took := time.Since(start)

			if jsonOutput {
				return writeJSON(cmd, searchOutput{
					Query:     query,
					Retriever: ret.Type(),
					Took:      took.String(),
					Results:   stripEmbeddings(results),
				})
			}
			printResults(output.New(cmd.OutOrStdout()), query, ret.Type(), results, took)
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Minimum score; unset uses the strategy's default")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func printResults(out *output.Writer, query, kind string, results []retriever.Result, took time.Duration) {
	out.Heading(fmt.Sprintf("%d results for %q (%s, %s)", len(results), query, kind, took.Round(time.Microsecond)))
	if len(results) == 0 {
		out.Warning("no documents scored above the threshold")
		return
	}
	for _, r := range results {
		out.Result(r.Rank, r.Document.ID, r.Score, output.Snippet(r.Document.Content, snippetRunes))
	}
}

// stripEmbeddings drops vectors from JSON output.
func stripEmbeddings(results []retriever.Result) []retriever.Result {
	out := retriever.CloneResults(results)
	for i := range out {
		out[i].Document.Embedding = nil
	}
	if out == nil {
		out = []retriever.Result{}
	}
	return out
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
