package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/indexer"
	"github.com/ziadkadry99/ctxpack/internal/progress"
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index a directory of documents",
	Long: `Walks the directory, stores every matching document and writes its chunks
to the semantic index. Unchanged files are skipped and deleted files are
removed. With --watch, keeps running and re-indexes on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("scope", "", "scope id stamped on every indexed document")
	indexCmd.Flags().String("owner", "", "restrict the documents to this requester (empty means public)")
	indexCmd.Flags().Bool("force", false, "re-index files even when unchanged")
	indexCmd.Flags().Bool("watch", false, "re-index whenever files change")
	indexCmd.Flags().Int("concurrency", 0, "files indexed in parallel (0 uses the configured value)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, appOptions{requireVectors: true})
	if err != nil {
		return err
	}
	defer a.Close()

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	scope, _ := cmd.Flags().GetString("scope")
	owner, _ := cmd.Flags().GetString("owner")
	force, _ := cmd.Flags().GetBool("force")
	watch, _ := cmd.Flags().GetBool("watch")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = a.cfg.Index.Concurrency
	}

	opts := indexer.Options{
		RootDir:     dir,
		Include:     a.cfg.Include,
		Exclude:     a.cfg.Exclude,
		ScopeID:     scope,
		Owner:       owner,
		ChunkTokens: a.cfg.Index.ChunkTokens,
		Concurrency: concurrency,
		Force:       force,
	}

	ix := a.newIndexer(progress.NewReporter())
	res, err := ix.IndexDir(ctx, opts)
	if err != nil {
		return err
	}
	printIndexResult(res)

	if !watch {
		return nil
	}

	opts.Force = false
	w, err := ix.NewWatcher(opts, a.cfg.Index.Debounce)
	if err != nil {
		return err
	}
	w.OnRun = func(res *indexer.Result, err error) {
		if err == nil && (res.Indexed > 0 || res.Removed > 0) {
			printIndexResult(res)
		}
	}
	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)\n", dir)
	return w.Run(ctx)
}

func printIndexResult(res *indexer.Result) {
	fmt.Printf("Indexed %d files (%d chunks), skipped %d unchanged, removed %d in %s\n",
		res.Indexed, res.Chunks, res.Skipped, res.Removed, res.Duration.Round(time.Millisecond))
	for _, err := range res.Errors {
		fmt.Fprintf(os.Stderr, "  error: %v\n", err)
	}
}
