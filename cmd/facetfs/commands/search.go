package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/facetfs/internal/cli/output"
)

var (
	searchContentType string
	searchLanguage    string
)

var searchCmd = &cobra.Command{
	Use:   "search <terms>...",
	Short: "Search metadata values",
	Long: `Search the index for nodes whose metadata contains the given terms,
case-insensitively.

By default every searchable key is matched; --content-type restricts the
match to the keys and nodes of one classification, --language to entries in
one language.

Examples:
  facetfs search summer report
  facetfs search --content-type html --language en welcome`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchContentType, "content-type", "", "Restrict the match to one content type")
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", "Restrict the match to one language")
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	metas, err := eng.archive.Search(ctx, strings.Join(args, " "), searchContentType, searchLanguage)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	table := output.NewTableData("Path", "Type", "Content Types", "Title")
	for _, m := range metas {
		table.AddRow(m.Path, m.Type.String(), tagList(m.ContentTypes), m.Metadata.Get(searchLanguage, "title"))
	}
	return output.PrintTable(os.Stdout, table)
}
