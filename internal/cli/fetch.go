package cli

import (
	"context"
	"log"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"trivia-quiz/internal/config"
	"trivia-quiz/internal/domain"
)

type fetchOutput struct {
	Outcome   string            `json:"outcome"`
	Source    string            `json:"source"`
	Message   string            `json:"message,omitempty"`
	Attempts  int               `json:"attempts"`
	Questions []domain.Question `json:"questions"`
}

// NewFetchCmd runs the question pipeline once and prints the result as JSON.
func NewFetchCmd(configPath *string) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a question set through the cache and retry pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			out, err := runFetch(cmd.Context(), cfg, reset)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the cached question set first")
	return cmd
}

func runFetch(ctx context.Context, cfg config.Config, reset bool) (fetchOutput, error) {
	deps, err := buildComponents(ctx, cfg)
	if err != nil {
		return fetchOutput{}, err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Printf("close resources: %v", err)
		}
	}()

	if reset {
		if err := deps.cache.Clear(ctx); err != nil {
			log.Printf("clear question cache: %v", err)
		}
	}
	result, err := deps.fetcher.Fetch(ctx)
	if err != nil {
		return fetchOutput{}, err
	}
	return fetchOutput{
		Outcome:   string(result.Outcome),
		Source:    string(result.Source),
		Message:   result.Message,
		Attempts:  result.Attempts,
		Questions: result.Questions,
	}, nil
}
