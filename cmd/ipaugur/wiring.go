package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/signalnine/ipaugur/internal/analyst"
	"github.com/signalnine/ipaugur/internal/archive"
	"github.com/signalnine/ipaugur/internal/config"
	"github.com/signalnine/ipaugur/internal/ingest"
	"github.com/signalnine/ipaugur/internal/metrics"
	"github.com/signalnine/ipaugur/internal/notify"
	"github.com/signalnine/ipaugur/internal/pipeline"
)

// awsClients builds the process-wide S3 client and the model invoker.
// S3 follows the ambient region; the model client uses the configured one.
func awsClients(ctx context.Context, cfg *config.Config) (*s3.Client, analyst.Invoker, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)

	if cfg.Model.Endpoint != "" {
		log.Info().Str("endpoint", cfg.Model.Endpoint).Str("model", cfg.Model.ModelID).Msg("Using Messages API endpoint")
		return s3Client, analyst.NewHTTPInvoker(cfg.Model.Endpoint, cfg.Model.ModelID, cfg.Model.APIKey), nil
	}

	brClient := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.Region = cfg.Model.Region
	})
	return s3Client, analyst.NewBedrockInvoker(brClient, cfg.Model.ModelID), nil
}

// buildPipeline wires the analysis with whichever optional sinks are configured.
// The returned cleanup closes them.
func buildPipeline(cfg *config.Config, fetcher ingest.Fetcher, invoker analyst.Invoker, m *metrics.Metrics) (*pipeline.Pipeline, func(), error) {
	vocab, err := analyst.NewVocabulary()
	if err != nil {
		return nil, nil, fmt.Errorf("finding vocabulary: %w", err)
	}

	deps := pipeline.Deps{
		Fetcher: fetcher,
		Analyst: analyst.New(invoker, analyst.RequestOptions{
			AnthropicVersion: cfg.Model.AnthropicVersion,
			MaxTokens:        cfg.Model.MaxTokens,
		}, vocab, m),
		Metrics: m,
	}

	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.ArchivePath != "" {
		db, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open archive %s: %w", cfg.ArchivePath, err)
		}
		deps.Archive = db
		closers = append(closers, func() { db.Close() })
	}

	if cfg.NATSURL != "" {
		pub, err := notify.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			// Reports still go back to the caller without it
			log.Warn().Err(err).Msg("NATS unavailable, findings will not be published")
		} else {
			deps.Notifier = pub
			closers = append(closers, pub.Close)
		}
	}

	p := pipeline.New(pipeline.Options{
		Threshold:    cfg.Threshold,
		ContextLines: cfg.ContextLines,
	}, deps)

	log.Info().
		Int("threshold", cfg.Threshold).
		Int("context_lines", cfg.ContextLines).
		Str("model", cfg.Model.ModelID).
		Bool("archive", deps.Archive != nil).
		Bool("nats", deps.Notifier != nil).
		Msg("Security analyst ready")
	return p, cleanup, nil
}
