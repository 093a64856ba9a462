package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/officeflow/attendance/internal/database"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Build the candidate index from the directory",
	Long: `Build the in-memory HNSW candidate index from all enrolled embeddings
and report the result. The serve command builds the same index on
startup; this command verifies the build against the current directory
(for example after a bulk import) without starting the API.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	directory, pool, err := openDirectory()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	total, err := directory.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting employees: %w", err)
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Indexing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("employees"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	population, err := directory.Population(ctx)
	if err != nil {
		return fmt.Errorf("loading population: %w", err)
	}

	index := database.NewCandidateIndex()
	indexed := 0
	for {
		identity, err := population.Next(ctx)
		if err != nil {
			return fmt.Errorf("reading population: %w", err)
		}
		if identity == nil {
			break
		}
		index.Add(*identity)
		indexed++
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nIndexed %d of %d employees (%d without embeddings)\n",
		indexed, total, total-indexed)
	return nil
}
