package composite

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// childOutcome is one child's contribution to a composite search.
type childOutcome struct {
	kind    string
	results []retriever.Result
	err     error
}

// childOptions passes the composite's over-fetch limit and extras down.
// Children apply no threshold of their own; the composite thresholds the
// fused score.
func childOptions(q retriever.Query) []retriever.RetrieveOption {
	return []retriever.RetrieveOption{
		retriever.WithLimit(q.Limit),
		retriever.WithThreshold(0),
		retriever.WithExtra(q.Extra),
	}
}

// runChildren queries every child concurrently and waits for all of them.
// Child errors are recorded per child, never propagated through the group,
// so one failure does not cancel its siblings.
func runChildren(ctx context.Context, logger *slog.Logger, children []retriever.Retriever, query string, opts []retriever.RetrieveOption) []childOutcome {
	outcomes := make([]childOutcome, len(children))

	var g errgroup.Group
	for i, child := range children {
		g.Go(func() error {
			results, err := child.Retrieve(ctx, query, opts...)
			outcomes[i] = childOutcome{kind: child.Type(), results: results, err: err}
			if err != nil {
				logger.Warn("child_retriever_failed",
					slog.String("child", child.Type()),
					slog.Int("index", i),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// succeeded returns the outcomes without errors.
func succeeded(outcomes []childOutcome) []childOutcome {
	ok := make([]childOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err == nil {
			ok = append(ok, o)
		}
	}
	return ok
}

// allFailed joins every child error into one retrieval error.
func allFailed(kind string, outcomes []childOutcome) error {
	errs := make([]error, 0, len(outcomes))
	for _, o := range outcomes {
		errs = append(errs, o.err)
	}
	return aerrors.New(aerrors.ErrCodeRetrievalFailed, "all child retrievers failed", errors.Join(errs...)).
		WithDetail("retriever", kind)
}

func missingChildren(kind string) error {
	return aerrors.New(aerrors.ErrCodeMissingRetriever, kind+" needs at least one child retriever", nil).
		WithSuggestion("Pass child retrievers when constructing the composite")
}
