// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalnine/ipaugur/internal/analyst"
	"github.com/signalnine/ipaugur/internal/extract"
	"github.com/signalnine/ipaugur/internal/ingest"
	"github.com/signalnine/ipaugur/internal/metrics"
	"github.com/signalnine/ipaugur/internal/notify"
	"github.com/signalnine/ipaugur/internal/protocol"
)

// ErrNoRecords is returned for a trigger event without records
var ErrNoRecords = errors.New("event has no records")

// Archiver stores finished reports
type Archiver interface {
	Insert(r *protocol.ArchivedReport) error
}

// Notifier announces finished reports
type Notifier interface {
	Publish(ctx context.Context, env notify.Envelope) error
}

// Options are the analysis knobs
type Options struct {
	Threshold    int
	ContextLines int
	Classifier   extract.LineClassifier // defaults to extract.IPv4
}

// Deps are the process-wide collaborators. Archive, Notifier and Metrics are optional.
type Deps struct {
	Fetcher  ingest.Fetcher
	Analyst  *analyst.Analyst
	Archive  Archiver
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// Pipeline runs one log object through fetch, scan, triage and classification
type Pipeline struct {
	opts Options
	deps Deps
}

// New creates a pipeline
func New(opts Options, deps Deps) *Pipeline {
	if opts.Classifier == nil {
		opts.Classifier = extract.IPv4
	}
	return &Pipeline{opts: opts, deps: deps}
}

// HandleEvent is the Lambda entry point. Only the first record is analyzed.
func (p *Pipeline) HandleEvent(ctx context.Context, event events.S3Event) (protocol.Response, error) {
	if len(event.Records) == 0 {
		zerolog.Ctx(ctx).Error().Err(ErrNoRecords).Msg("Critical error during analysis")
		p.deps.Metrics.ObserveInvocation("failed")
		return protocol.Response{}, ErrNoRecords
	}
	if len(event.Records) > 1 {
		zerolog.Ctx(ctx).Warn().Int("records", len(event.Records)).Msg("Event has several records, analyzing the first only")
	}

	rec := event.Records[0].S3
	return p.Run(ctx, rec.Bucket.Name, objectKey(rec.Object))
}

// objectKey prefers the decoded key; notification keys are URL-encoded
func objectKey(obj events.S3Object) string {
	if obj.URLDecodedKey != "" {
		return obj.URLDecodedKey
	}
	if key, err := url.QueryUnescape(obj.Key); err == nil {
		return key
	}
	return obj.Key
}

// Run analyzes s3://bucket/key. Any error is logged and returned unchanged
// so the caller reports the invocation as failed.
func (p *Pipeline) Run(ctx context.Context, bucket, key string) (protocol.Response, error) {
	invocationID := uuid.NewString()
	logger := zerolog.Ctx(ctx).With().
		Str("invocation_id", invocationID).
		Str("bucket", bucket).
		Str("key", key).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Msg("New log object detected")

	resp, err := p.run(ctx, invocationID, bucket, key)
	if err != nil {
		logger.Error().Err(err).Msg("Critical error during analysis")
		p.deps.Metrics.ObserveInvocation("failed")
		return protocol.Response{}, err
	}
	return resp, nil
}

func (p *Pipeline) run(ctx context.Context, invocationID, bucket, key string) (protocol.Response, error) {
	logger := zerolog.Ctx(ctx)

	localPath, err := p.deps.Fetcher.Fetch(ctx, bucket, key)
	if err != nil {
		return protocol.Response{}, err
	}

	tally, err := p.scan(localPath)
	if err != nil {
		return protocol.Response{}, err
	}
	p.deps.Metrics.ObserveScan(tally.Lines(), tally.Len())
	logger.Info().Int("unique_ips", tally.Len()).Int("lines", tally.Lines()).Msg("Initial scan complete")

	suspicious := extract.Triage(tally, p.opts.Threshold)
	p.deps.Metrics.ObserveTriage(len(suspicious))

	if len(suspicious) == 0 {
		logger.Info().Int("threshold", p.opts.Threshold).Msg("No IP exceeded the threshold")
		p.deps.Metrics.ObserveInvocation("no_findings")
		p.archive(ctx, invocationID, bucket, key, tally, protocol.Report{})
		return protocol.Response{StatusCode: 200, Body: protocol.NoFindingsMessage}, nil
	}

	logger.Info().Int("suspicious_ips", len(suspicious)).Msg("Sending suspicious IPs for AI analysis")

	report, err := p.deps.Analyst.Classify(ctx, suspicious)
	if err != nil {
		return protocol.Response{}, err
	}

	body, err := json.Marshal(report)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encode report: %w", err)
	}
	logger.Info().RawJSON("report", body).Msg("Final security report")
	p.deps.Metrics.ObserveInvocation("findings")

	p.archive(ctx, invocationID, bucket, key, tally, report)
	p.notify(ctx, invocationID, bucket, key, report)

	return protocol.Response{StatusCode: 200, Body: string(body)}, nil
}

func (p *Pipeline) scan(localPath string) (*extract.Tally, error) {
	rc, err := ingest.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer rc.Close()

	tally, err := extract.Scan(rc, p.opts.Classifier, p.opts.ContextLines)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", localPath, err)
	}
	return tally, nil
}

// archive and notify are best effort; a failing sink never fails the run

func (p *Pipeline) archive(ctx context.Context, invocationID, bucket, key string, tally *extract.Tally, report protocol.Report) {
	if p.deps.Archive == nil {
		return
	}
	err := p.deps.Archive.Insert(&protocol.ArchivedReport{
		InvocationID: invocationID,
		Bucket:       bucket,
		Key:          key,
		Lines:        tally.Lines(),
		UniqueIPs:    tally.Len(),
		Findings:     report,
		Timestamp:    time.Now(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Archiving report failed")
	}
}

func (p *Pipeline) notify(ctx context.Context, invocationID, bucket, key string, report protocol.Report) {
	if p.deps.Notifier == nil {
		return
	}
	err := p.deps.Notifier.Publish(ctx, notify.Envelope{
		InvocationID: invocationID,
		Bucket:       bucket,
		Key:          key,
		Findings:     report,
		Timestamp:    time.Now(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Publishing report failed")
	}
}
