package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"ragchat/internal/domain"
	"ragchat/internal/service"
	"ragchat/internal/summarizer"
	"ragchat/internal/tui"
)

// overviewChunks bounds the text fed to the search browser's summary line.
const overviewChunks = 50

// QueryAction prints the top results for the query arguments, or opens the
// search browser when asked to or when no query is given.
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	interactive := cmd.Bool("interactive") || query == ""

	appCtx, err := NewAppContext(cmd, interactive)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	store, err := appCtx.LoadStore()
	if err != nil {
		return err
	}
	k := appCtx.Config.Retrieval.TopK
	if cmd.IsSet("k") {
		k = cmd.Int("k")
	}

	svc := service.NewSearchService(store, summarizer.NewFrequency(), appCtx.Config.Summarizer.MaxSentences)

	if !interactive {
		results, err := svc.Query(ctx, query, k)
		if err != nil {
			return err
		}
		printResults(os.Stdout, results)
		return nil
	}

	chunks := store.Chunks()
	overview, err := svc.Overview(chunks[:min(len(chunks), overviewChunks)])
	if err != nil {
		appCtx.Logger.Warn("overview failed", "error", err)
	}
	header := fmt.Sprintf("%d chunks, model %s. %s", store.Len(), store.ModelName(), overview)
	m := tui.NewSearch(ctx, svc, header, k)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func printResults(w io.Writer, results []domain.RetrievalResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.3f] %s (%s)\n", i+1, r.Score, r.ChunkID, r.Meta.SourcePath)
		fmt.Fprintf(w, "   %s\n", r.Text)
	}
}
