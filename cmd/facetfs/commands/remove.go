package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/facetfs/internal/cli/prompt"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <path>...",
	Short: "Remove paths from the index",
	Long: `Remove the given paths' nodes and metadata from the index.

Ancestor directories stay indexed; only the named paths are deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeForce, "force", false, "Skip the confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove %d path(s) from the index?", len(args)), removeForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.archive.Remove(ctx, args); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	fmt.Printf("Removed %d path(s)\n", len(args))
	return nil
}
