// cmd/ipaugur/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/ipaugur/internal/archive"
	"github.com/signalnine/ipaugur/internal/config"
	"github.com/signalnine/ipaugur/internal/ingest"
	"github.com/signalnine/ipaugur/internal/metrics"
	"github.com/signalnine/ipaugur/internal/protocol"
	"github.com/signalnine/ipaugur/internal/server"
)

var (
	cfgFile  string
	logLevel string

	bucket  string
	key     string
	jsonOut bool

	historyLimit int
	bucketSource string

	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "ipaugur",
	Short: "Access-log triage with LLM classification of noisy IPs",
	Long: `ipaugur counts requests per IP in an access log, picks the IPs above a
request threshold and asks a hosted model to classify each one.

It runs as an S3-triggered Lambda function or locally:
  ipaugur lambda
  ipaugur analyze ./access.log.gz
  ipaugur analyze --bucket access-logs --key 2026/02/03/access.log.gz
  ipaugur serve
  ipaugur history --limit 5`,
	SilenceUsage: true,
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as the Lambda handler for S3 object-created events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		ctx := context.Background()
		s3Client, invoker, err := awsClients(ctx, cfg)
		if err != nil {
			return err
		}

		p, cleanup, err := buildPipeline(cfg, ingest.NewS3Fetcher(s3Client, cfg.ScratchDir), invoker, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		lambda.Start(p.HandleEvent)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [log file]",
	Short: "Analyze one log file or S3 object and print the report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(!jsonOut)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var fetcher ingest.Fetcher
		var objKey string
		switch {
		case len(args) == 1:
			fetcher = ingest.FileFetcher{}
			objKey = args[0]
		case bucket != "" && key != "":
			objKey = key
		default:
			return fmt.Errorf("give a log file or both --bucket and --key")
		}

		s3Client, invoker, err := awsClients(ctx, cfg)
		if err != nil {
			return err
		}
		if fetcher == nil {
			fetcher = ingest.NewS3Fetcher(s3Client, cfg.ScratchDir)
		}

		p, cleanup, err := buildPipeline(cfg, fetcher, invoker, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := p.Run(log.Logger.WithContext(ctx), bucket, objKey)
		if err != nil {
			return err
		}

		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(resp)
		}
		fmt.Println(renderResponse(resp))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /invoke locally, taking S3 notifications as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s3Client, invoker, err := awsClients(ctx, cfg)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		var fetcher ingest.Fetcher = ingest.NewS3Fetcher(s3Client, cfg.ScratchDir)
		if bucketSource == "local" {
			fetcher = ingest.FileFetcher{}
		}
		p, cleanup, err := buildPipeline(cfg, fetcher, invoker, m)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := server.NewServer(cfg.ListenAddr, server.NewInvokeHandler(p, cfg.APIKey, cfg.MaxPayloadBytes), reg)
		return srv.Run(ctx)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(!jsonOut)
		if err != nil {
			return err
		}
		if cfg.ArchivePath == "" {
			return fmt.Errorf("no archive configured (archive_path or IPAUGUR_ARCHIVE_PATH)")
		}

		db, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer db.Close()

		var reports []protocol.ArchivedReport
		if key != "" {
			reports, err = db.ByKey(bucket, key, historyLimit)
		} else {
			reports, err = db.Recent(historyLimit)
		}
		if err != nil {
			return err
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			for _, r := range reports {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		}
		for _, r := range reports {
			fmt.Println(renderArchived(r))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ipaugur %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (defaults and env vars apply without one)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	analyzeCmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket holding the log object")
	analyzeCmd.Flags().StringVar(&key, "key", "", "S3 object key of the log")
	analyzeCmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw handler response as JSON")

	serveCmd.Flags().StringVar(&bucketSource, "bucket-source", "s3", `where event buckets live: "s3" or "local" (bucket name is a directory)`)

	historyCmd.Flags().StringVar(&bucket, "bucket", "", "filter by bucket (with --key)")
	historyCmd.Flags().StringVar(&key, "key", "", "filter by object key")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum reports to show")
	historyCmd.Flags().BoolVar(&jsonOut, "json", false, "print reports as JSON lines")

	rootCmd.AddCommand(lambdaCmd, analyzeCmd, serveCmd, historyCmd, versionCmd)
}

func loadConfig(console bool) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	setupLogging(cfg.LogLevel, console)
	return cfg, nil
}

func setupLogging(level string, console bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger
}

// runtimeArgs picks the lambda command when the binary is started bare by
// the Lambda runtime (provided.al2 runs bootstrap with no arguments).
func runtimeArgs(args []string, getenv func(string) string) []string {
	if len(args) == 0 && getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		return []string{"lambda"}
	}
	return args
}

func main() {
	rootCmd.SetArgs(runtimeArgs(os.Args[1:], os.Getenv))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
