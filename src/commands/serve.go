package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"hbnb/src/amenities"
	"hbnb/src/config"
	"hbnb/src/db"
	"hbnb/src/events"
	"hbnb/src/handlers"
	"hbnb/src/token"
	"hbnb/src/types"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default $HBNB_API_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default $HBNB_API_PORT)")
	return cmd
}

func serve(ctx context.Context) error {
	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()
	repo := db.NewRepository(engine)

	var lookup types.AmenityLister = amenities.StorageLister{Store: repo}
	if cfg.AmenityLookup == config.LookupHTTP {
		lookup = amenities.NewClient(cfg.AmenityBaseURL(), cfg.AmenityTimeout)
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		lggr.Infow("Publishing place events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer pub.Close()

	issuer := token.NewIssuer(cfg.SigningKey, repo, lggr)
	if !issuer.Enabled() {
		lggr.Warnw("HBNB_API_SIGNING_KEY is not set; place mutations are unauthenticated")
	}

	h := handlers.New(repo, lookup, pub, lggr).WithPublishTimeout(cfg.EventTimeout)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(h, issuer, lggr),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lggr.Infow("Server started", "addr", srv.Addr, "amenity_lookup", cfg.AmenityLookup)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	lggr.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
