package commands

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/facetfs/internal/cli/output"
	"github.com/marmos91/facetfs/pkg/facet"
)

var (
	getContentType   string
	getPartial       bool
	getIgnoreMissing bool

	parentRefresh bool
)

var getCmd = &cobra.Command{
	Use:   "get <path>...",
	Short: "Show stored metadata for paths",
	Long: `Show the metadata views for one or more paths.

Paths missing from the store are analyzed and persisted on the fly, so the
command always answers. With --partial, missing paths are served from a
cheap name-only pass while the full analysis is backfilled in the
background; with --ignore-missing, only what storage already has is shown.

Examples:
  facetfs get docs/guide.md
  facetfs get --content-type image gallery/cat.png
  facetfs get --ignore-missing docs/guide.md docs/missing.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

var parentCmd = &cobra.Command{
	Use:   "parent <dir>",
	Short: "Show a directory's aggregated metadata view",
	Long: `Show the metadata view of the directory itself.

An existing record is preferred; with --refresh the directory's immediate
files are re-analyzed and its classification recomputed as their union.`,
	Args: cobra.ExactArgs(1),
	RunE: runParent,
}

func init() {
	getCmd.Flags().StringVar(&getContentType, "content-type", "", "Only show nodes carrying this content type")
	getCmd.Flags().BoolVar(&getPartial, "partial", false, "Serve missing paths from name-only analysis")
	getCmd.Flags().BoolVar(&getIgnoreMissing, "ignore-missing", false, "Only show what storage already has")

	parentCmd.Flags().BoolVar(&parentRefresh, "refresh", false, "Recompute from the directory's files")
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	metas, err := eng.archive.Get(ctx, args, facet.GetOptions{
		ContentType:   getContentType,
		Partial:       getPartial,
		IgnoreMissing: getIgnoreMissing,
	})
	if err != nil {
		return err
	}

	for i, p := range slices.Sorted(maps.Keys(metas)) {
		if i > 0 {
			fmt.Println()
		}
		printMeta(metas[p])
	}
	return nil
}

func runParent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	meta, err := eng.archive.Parent(ctx, args[0], parentRefresh)
	if err != nil {
		return err
	}

	printMeta(meta)
	return nil
}

// printMeta renders one metadata view: the node summary as key-value pairs
// followed by a table of its metadata entries.
func printMeta(m *facet.Meta) {
	path := m.Path
	if path == "" {
		path = "(root)"
	}
	_ = output.SimpleTable(os.Stdout, [][2]string{
		{"Path", path},
		{"Type", m.Type.String()},
		{"ID", strconv.FormatInt(m.ID, 10)},
		{"Content types", tagList(m.ContentTypes)},
	})

	if len(m.Metadata) == 0 {
		return
	}

	table := output.NewTableData("Language", "Key", "Value")
	for _, language := range slices.Sorted(maps.Keys(m.Metadata)) {
		kv := m.Metadata[language]
		lang := language
		if lang == "" {
			lang = "-"
		}
		for _, key := range slices.Sorted(maps.Keys(kv)) {
			table.AddRow(lang, key, kv[key])
		}
	}
	_ = output.PrintTable(os.Stdout, table)
}
