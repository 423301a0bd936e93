package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nbed-digital/continuum/internal/content"
	"github.com/nbed-digital/continuum/internal/index"
	"github.com/nbed-digital/continuum/internal/server"
	"github.com/nbed-digital/continuum/internal/userdata"
)

var (
	serveAddr  string
	serveIndex string
	serveWatch bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveIndex, "index", "", "Serve a prebuilt index artifact instead of building from content")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Rebuild the index when content files change")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [content-dir]",
	Short: "Serve the search index and consideration counts over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var contentDir string
		if len(args) > 0 {
			contentDir = args[0]
		}
		if contentDir == "" && serveIndex == "" {
			return fmt.Errorf("need a content directory or --index artifact")
		}
		if serveWatch && contentDir == "" {
			return fmt.Errorf("--watch needs a content directory")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// The index artifact and the user data file load independently.
		var (
			store *index.MemoryStore
			users *userdata.Store
		)
		store = index.NewMemoryStore()
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			if serveIndex != "" {
				loaded, err := index.OpenSQLite(serveIndex)
				if err != nil {
					return fmt.Errorf("opening %s: %w", serveIndex, err)
				}
				store.Swap(loaded.Entries(), loaded.Counts())
				return nil
			}
			entries, counts, err := content.NewEngine(contentDir).Build()
			if err != nil {
				return fmt.Errorf("building index from %s: %w", contentDir, err)
			}
			store.Swap(entries, counts)
			return nil
		})
		g.Go(func() error {
			path, err := resolveUserDataPath()
			if err != nil {
				return err
			}
			users, err = userdata.Open(osfs.New(filepath.Dir(path)), filepath.Base(path), store)
			if err != nil {
				return fmt.Errorf("opening user data: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}
		log.Printf("serve: %d index entries, %d assessments",
			len(store.Entries()), len(users.Assessments()))

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           server.New(store).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		run, runCtx := errgroup.WithContext(ctx)
		if serveWatch {
			watcher := content.NewWatcher(content.NewEngine(contentDir), store)
			run.Go(func() error {
				return watcher.Run(runCtx)
			})
		}
		run.Go(func() error {
			log.Printf("serve: listening on %s", serveAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		run.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return run.Wait()
	},
}
