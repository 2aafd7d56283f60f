package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"ragchat/internal/kb"
)

// BuildAction builds the knowledge base from the corpus and saves it.
func BuildAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd, false)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	corpusDir := cfg.KB.CorpusDir
	if cmd.IsSet("corpus") {
		corpusDir = cmd.String("corpus")
	}
	outDir := cfg.KB.IndexDir
	if cmd.IsSet("out") {
		outDir = cmd.String("out")
	}
	chunkSize := cfg.Chunker.ChunkSize
	if cmd.IsSet("chunk-size") {
		chunkSize = cmd.Int("chunk-size")
	}
	overlap := cfg.Chunker.ChunkOverlap
	if cmd.IsSet("chunk-overlap") {
		overlap = cmd.Int("chunk-overlap")
	}

	appCtx.Logger.Info("building knowledge base",
		"corpus", corpusDir, "out", outDir,
		"chunk_size", chunkSize, "chunk_overlap", overlap,
		"embedder", appCtx.Embedder.Name())

	store := kb.New(appCtx.Embedder, appCtx.StoreOptions()...)
	if err := store.BuildFromCorpus(ctx, corpusDir, chunkSize, overlap); err != nil {
		return err
	}
	if err := store.Save(outDir); err != nil {
		return err
	}

	fmt.Printf("Saved %d chunks to %s (model %s)\n", store.Len(), outDir, store.ModelName())
	return nil
}
