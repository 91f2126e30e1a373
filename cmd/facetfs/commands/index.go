package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/facetfs/internal/cli/prompt"
	"github.com/marmos91/facetfs/pkg/facet"
)

var (
	indexPartial  bool
	indexMaxDepth int
	indexDelay    time.Duration

	reindexForce bool
	clearForce   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the configured tree and store its metadata",
	Long: `Scan the configured tree and store extracted metadata.

The scanner walks the tree rooted at scanner.root (or the configured S3
bucket prefix), analyzes every file it finds, and persists one metadata
batch per directory. Already-indexed paths are merged: classification bits
only ever widen and metadata values are replaced.

Examples:
  # Full index of the configured root
  facetfs index

  # Fast pass using name-only extraction
  facetfs index --partial

  # Only the top two directory levels
  facetfs index --max-depth 2`,
	RunE: runIndex,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Wipe the index and rebuild it from scratch",
	Long: `Wipe the index and rebuild it with a full scan of the configured tree.

The wipe and rebuild run inside one store transaction, so concurrent readers
never observe a half-rebuilt index.`,
	RunE: runReindex,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every indexed node and metadata entry",
	RunE:  runClear,
}

func init() {
	indexCmd.Flags().BoolVar(&indexPartial, "partial", false, "Name-only extraction (no file content reads)")
	indexCmd.Flags().IntVar(&indexMaxDepth, "max-depth", 0, "Bound recursion depth (0 = unbounded)")
	indexCmd.Flags().DurationVar(&indexDelay, "delay", 0, "Per-sibling scheduling delay (overrides scanner.delay)")

	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "Skip the confirmation prompt")
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "Skip the confirmation prompt")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("max-depth") {
		indexMaxDepth = cfg.Scanner.MaxDepth
	}
	if !cmd.Flags().Changed("delay") {
		indexDelay = cfg.Scanner.Delay
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	serveMetrics(ctx, cfg)

	opts := facet.ScanOptions{
		Partial:  indexPartial,
		MaxDepth: indexMaxDepth,
		Delay:    indexDelay,
	}

	var files, batches int
	for batch, err := range eng.archive.Scan(ctx, "", opts) {
		if err != nil {
			return err
		}
		if err := eng.archive.SaveAll(ctx, batch); err != nil {
			return err
		}
		files += len(batch)
		batches++
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	fmt.Printf("Indexed %d files in %d directories\n", files, batches)
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !reindexForce {
		ok, err := prompt.ConfirmDanger("This wipes the entire index and rebuilds it", "reindex")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	serveMetrics(ctx, cfg)

	if err := eng.archive.Reindex(ctx, ""); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	fmt.Println("Reindex completed")
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !clearForce {
		ok, err := prompt.ConfirmDanger("This deletes every indexed node and metadata entry", "clear")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.archive.Clear(ctx); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	fmt.Println("Index cleared")
	return nil
}
