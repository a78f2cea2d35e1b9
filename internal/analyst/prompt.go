// internal/analyst/prompt.go
package analyst

import (
	"fmt"
	"strings"

	"github.com/signalnine/ipaugur/internal/extract"
	"github.com/signalnine/ipaugur/internal/protocol"
)

const promptTemplate = `You are an expert cybersecurity analyst. Your task is to review a set of web server log lines that all belong to a single IP address and determine the nature of its activity.

**IP address under analysis:** %[1]s
**Total number of requests:** %[2]d

**Log sample:**
` + "```" + `
%[3]s
` + "```" + `

Based on the logs provided, respond ONLY in JSON with the following structure:
{
    "ip_address": "%[1]s",
    "probable_attack_type": "...",
    "confidence_level": "...",
    "recommended_action": "..."
}

**Instructions for the values:**
- "probable_attack_type": Identify the most likely attack pattern. Common options are: %[4]s. If you are not sure, use 'Uncertain'.
- "confidence_level": Describe your confidence in the analysis. Use one of these three values: %[5]s.
- "recommended_action": Suggest the next practical step. For example: 'Monitor further', 'Block IP at firewall', 'Investigate specific endpoint', 'No action needed'.`

// BuildPrompt embeds the record's address, total count and sampled lines
// into the classification instruction
func BuildPrompt(rec *extract.IPRecord) string {
	contextBlock := strings.Join(rec.Samples, "\n")

	// 'Uncertain' gets its own sentence
	attackTypes := protocol.AttackTypes[:len(protocol.AttackTypes)-1]

	return fmt.Sprintf(promptTemplate,
		rec.IP,
		rec.Count,
		contextBlock,
		quoteList(attackTypes),
		quoteList(protocol.ConfidenceLevels),
	)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}

// RequestOptions fix the non-prompt parts of the model request
type RequestOptions struct {
	AnthropicVersion string
	MaxTokens        int
}

// NewRequest wraps a prompt as a single user turn
func NewRequest(opts RequestOptions, prompt string) protocol.ModelRequest {
	return protocol.ModelRequest{
		AnthropicVersion: opts.AnthropicVersion,
		MaxTokens:        opts.MaxTokens,
		Messages: []protocol.Message{
			{Role: "user", Content: prompt},
		},
	}
}
