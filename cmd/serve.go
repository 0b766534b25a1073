package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/catalog-admin/internal/fakeapi"
)

func newServeCmd() *cobra.Command {
	var port string
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory catalog API for local testing",
		Long: `Starts an in-memory implementation of the catalog API on the given port.
Nothing is persisted; stopping the server discards all data.

The built-in account is admin@example.com / admin123.`,
		Example: `  # Start on the default port and point the client at it
  catalog-admin serve --seed &
  catalog-admin login --email admin@example.com --password admin123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := fakeapi.New()
			if seed {
				seedCatalog(api)
			}

			mux := http.NewServeMux()
			mux.Handle("/", api)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Catalog API available", "addr", addr, "url", "http://localhost"+addr+"/api")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8000", "Port to listen on")
	cmd.Flags().BoolVar(&seed, "seed", false, "Start with a few sample products")

	return cmd
}

func seedCatalog(api *fakeapi.Server) {
	for _, p := range []fakeapi.Product{
		{Name: "Desk Lamp", Description: "Adjustable LED desk lamp", Price: 29.99, Category: "Lighting", Brand: "Lumo", Stock: 14, Rating: 4.5},
		{Name: "Floor Lamp", Description: "Tall arc floor lamp", Price: 89, Category: "Lighting", Brand: "Lumo", Stock: 3, Rating: 4.1},
		{Name: "Office Chair", Description: "Mesh back office chair", Price: 149.5, Category: "Furniture", Brand: "Sitwell", Stock: 6, Rating: 4.2},
		{Name: "Standing Desk", Description: "Electric sit-stand desk", Price: 399, Category: "Furniture", Brand: "Sitwell", Stock: 0, Rating: 4.7},
	} {
		api.AddProduct(p)
	}
}
