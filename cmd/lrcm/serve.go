package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rgehrsitz/lrcm/internal/api"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [portfolio-file]",
	Short: "Serve the measurement engines over HTTP",
	Long: "Starts the HTTP API. When a portfolio file is given it is loaded into the configured " +
		"store before the server starts accepting requests.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openApp(cmd, firstArg(args))
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := rt.settings.Server.Addr
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}

		handler := api.NewHandler(rt.measure, rt.incurred)
		handler.Store = rt.backend.Driver
		server := &http.Server{
			Addr:         addr,
			Handler:      api.NewRouter(handler, rt.settings.Server.AllowedOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			log.Printf("lrcm listening on %s (store: %s)", addr, rt.backend.Driver)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Println("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides the settings value)")
}
