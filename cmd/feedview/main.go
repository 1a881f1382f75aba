package main

import (
	"context"
	"fmt"
	"log/slog"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/bluesky-social/feedview/appview"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/util/cliutil"

	_ "github.com/joho/godotenv/autoload"
	_ "go.uber.org/automaxprocs"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "feedview",
		Usage:   "hydrated feed and thread views over an indexed social graph",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string for the index database",
			Value:   "sqlite://./data/feedview/index.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"FEEDVIEW_MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			EnvVars: []string{"FEEDVIEW_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "env",
			Value:   "dev",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "otel-exporter-otlp-endpoint",
			EnvVars: []string{"OTEL_EXPORTER_OTLP_ENDPOINT"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		migrateCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the XRPC read API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "api-listen",
			Value:   ":2584",
			EnvVars: []string{"FEEDVIEW_API_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Value:   ":2585",
			EnvVars: []string{"FEEDVIEW_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "image-cdn",
			Usage:   "base URL of the image CDN used for avatar and embed links",
			EnvVars: []string{"FEEDVIEW_IMAGE_CDN"},
		},
		&cli.DurationFlag{
			Name:    "timeline-window",
			Usage:   "only scan this far back per timeline page before falling back to an unbounded query; 0 disables",
			Value:   48 * time.Hour,
			EnvVars: []string{"FEEDVIEW_TIMELINE_WINDOW"},
		},
		&cli.Int64Flag{
			Name:    "hot-threshold",
			Usage:   "minimum likes for a post to enter whats-hot",
			Value:   12,
			EnvVars: []string{"FEEDVIEW_HOT_THRESHOLD"},
		},
		&cli.DurationFlag{
			Name:    "hot-window",
			Value:   24 * time.Hour,
			EnvVars: []string{"FEEDVIEW_HOT_WINDOW"},
		},
		&cli.StringSliceFlag{
			Name:    "deny-labels",
			Usage:   "label values that keep posts out of the popular feeds",
			Value:   cli.NewStringSlice("!hide", "!warn", "porn", "sexual", "nudity", "gore"),
			EnvVars: []string{"FEEDVIEW_DENY_LABELS"},
		},
		&cli.StringSliceFlag{
			Name:    "team-dids",
			Usage:   "accounts served by the bsky-team feed",
			EnvVars: []string{"FEEDVIEW_TEAM_DIDS"},
		},
		&cli.StringSliceFlag{
			Name:    "list",
			Usage:   "extra list feed member as name=did; repeat for more members and lists",
			EnvVars: []string{"FEEDVIEW_LISTS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := cliutil.SetupSlog(cliutil.LogOptions{})
		if err != nil {
			return err
		}

		shutdownOTEL, err := setupOTEL(cctx)
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		lists, err := parseLists(cctx.StringSlice("list"))
		if err != nil {
			return err
		}

		db, err := openDB(cctx)
		if err != nil {
			return err
		}

		srv, err := appview.NewServer(db, appview.Config{
			Logger:         logger.With("system", "feedview"),
			Bind:           cctx.String("api-listen"),
			ImageCDN:       cctx.String("image-cdn"),
			TimelineWindow: cctx.Duration("timeline-window"),
			HotThreshold:   cctx.Int64("hot-threshold"),
			HotWindow:      cctx.Duration("hot-window"),
			DenyLabels:     cctx.StringSlice("deny-labels"),
			TeamDIDs:       cctx.StringSlice("team-dids"),
			Lists:          lists,
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "err", err)
			}
		}()

		return srv.RunAPI()
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the index tables",
	Action: func(cctx *cli.Context) error {
		if _, err := cliutil.SetupSlog(cliutil.LogOptions{}); err != nil {
			return err
		}

		db, err := openDB(cctx)
		if err != nil {
			return err
		}

		slog.Info("migrating index tables", "tables", len(models.All()))
		return models.Migrate(db)
	},
}

// parseLists groups name=did entries into list feeds, keeping member order.
func parseLists(entries []string) (map[string][]string, error) {
	lists := make(map[string][]string)
	for _, e := range entries {
		name, did, ok := strings.Cut(strings.TrimSpace(e), "=")
		if !ok || name == "" || !strings.HasPrefix(did, "did:") {
			return nil, fmt.Errorf("invalid list entry %q, expected name=did", e)
		}
		lists[name] = append(lists[name], did)
	}
	return lists, nil
}

func openDB(cctx *cli.Context) (*gorm.DB, error) {
	db, err := cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return nil, err
	}
	if cctx.Bool("db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// setupOTEL installs an OTLP HTTP trace exporter when an endpoint is
// configured. The returned func flushes it.
//
// For relevant environment variables:
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
func setupOTEL(cctx *cli.Context) (func(), error) {
	noop := func() {}

	ep := cctx.String("otel-exporter-otlp-endpoint")
	if ep == "" {
		return noop, nil
	}

	slog.Info("setting up trace exporter", "endpoint", ep)
	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		return noop, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	env := cctx.String("env")
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("feedview"),
			attribute.String("env", env),         // DataDog
			attribute.String("environment", env), // Others
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace provider", "error", err)
		}
	}, nil
}
