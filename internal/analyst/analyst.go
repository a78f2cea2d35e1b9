// internal/analyst/analyst.go
package analyst

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/signalnine/ipaugur/internal/extract"
	"github.com/signalnine/ipaugur/internal/metrics"
	"github.com/signalnine/ipaugur/internal/protocol"
)

// Analyst classifies triaged IPs one at a time
type Analyst struct {
	invoker Invoker
	opts    RequestOptions
	vocab   *Vocabulary
	metrics *metrics.Metrics
}

// New creates an analyst. vocab and m may be nil.
func New(invoker Invoker, opts RequestOptions, vocab *Vocabulary, m *metrics.Metrics) *Analyst {
	return &Analyst{
		invoker: invoker,
		opts:    opts,
		vocab:   vocab,
		metrics: m,
	}
}

// Classify asks the model about each record in order. A reply that is not
// JSON becomes an error finding and the loop moves on; an invocation error
// aborts the run and the findings collected so far are dropped.
func (a *Analyst) Classify(ctx context.Context, records []*extract.IPRecord) (protocol.Report, error) {
	logger := zerolog.Ctx(ctx)
	report := make(protocol.Report, 0, len(records))

	for _, rec := range records {
		logger.Info().Str("ip", rec.IP).Int("requests", rec.Count).Msg("Analyzing IP")

		req := NewRequest(a.opts, BuildPrompt(rec))

		start := time.Now()
		reply, err := a.invoker.Invoke(ctx, req)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			a.metrics.ObserveModelCall("error", elapsed)
			return nil, fmt.Errorf("classify %s: %w", rec.IP, err)
		}
		logger.Debug().Str("ip", rec.IP).Str("reply", reply).Msg("Model reply received")

		finding, ok := ParseFinding(reply)
		if !ok {
			a.metrics.ObserveModelCall("parse_failed", elapsed)
			logger.Error().Str("ip", rec.IP).Msg("Model reply is not valid JSON")
			report = append(report, protocol.Finding{
				IPAddress: rec.IP,
				Error:     protocol.ParseFailedMessage,
			})
			continue
		}
		a.metrics.ObserveModelCall("ok", elapsed)
		finding.Error = ""

		if finding.IPAddress != rec.IP {
			if finding.IPAddress != "" {
				logger.Warn().Str("ip", rec.IP).Str("reply_ip", finding.IPAddress).Msg("Model answered for a different IP, keeping the analyzed one")
			}
			finding.IPAddress = rec.IP
		}

		if a.vocab != nil {
			if err := a.vocab.Check(reply); err != nil {
				a.metrics.ObserveOffVocabulary()
				logger.Warn().Err(err).Str("ip", rec.IP).Msg("Finding outside the requested vocabulary")
			}
		}
		a.metrics.ObserveFinding(finding.ProbableAttackType)

		report = append(report, finding)
	}

	return report, nil
}

// ParseFinding decodes the model's reply text. Anything that is not a JSON
// object fails. Field values that are not strings keep their JSON text, so
// `"confidence_level": 0.8` parses and is left for the vocabulary check.
// An "error" key in the reply is ignored.
func ParseFinding(reply string) (protocol.Finding, bool) {
	var p fastjson.Parser
	v, err := p.Parse(reply)
	if err != nil || v.Type() != fastjson.TypeObject {
		return protocol.Finding{}, false
	}
	return protocol.Finding{
		IPAddress:          fieldText(v, "ip_address"),
		ProbableAttackType: fieldText(v, "probable_attack_type"),
		ConfidenceLevel:    fieldText(v, "confidence_level"),
		RecommendedAction:  fieldText(v, "recommended_action"),
	}, true
}

func fieldText(v *fastjson.Value, name string) string {
	f := v.Get(name)
	if f == nil {
		return ""
	}
	switch f.Type() {
	case fastjson.TypeString:
		return string(f.GetStringBytes())
	case fastjson.TypeNull:
		return ""
	default:
		return f.String()
	}
}
