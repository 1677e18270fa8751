package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"emt-madrid/internal/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "poll in the background and serve the readings over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Value:   ":8080",
				Usage:   "listen target for the web server",
				EnvVars: []string{"EMT_LISTEN"},
			},
		},
		Action: func(c *cli.Context) error {
			collector, store, err := newCollector(c)
			if err != nil {
				return err
			}

			handler, err := web.NewHandler(store, collector)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)

			server := &http.Server{
				Addr:              c.String("listen"),
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				if err := collector.Run(c.Context); err != nil {
					log.Error().Err(err).Msg("Collector stopped")
				}
			}()

			go func() {
				<-c.Context.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Server shutdown failed")
				}
			}()

			log.Info().Str("listen", server.Addr).Msg("Starting server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
