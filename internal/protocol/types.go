// internal/protocol/types.go
package protocol

import (
	"encoding/json"
	"time"
)

// ParseFailedMessage is recorded for an IP whose model reply was not valid JSON
const ParseFailedMessage = "Failed to parse AI response"

// NoFindingsMessage is the response body when no IP crossed the threshold
const NoFindingsMessage = "Analysis complete. No notable findings."

// Attack types the model is asked to choose from
var AttackTypes = []string{
	"Scanning/Reconnaissance",
	"Brute-force Login",
	"Web Scraping",
	"SQL Injection Attempt",
	"Path Traversal",
	"Benign Traffic",
	"Uncertain",
}

// ConfidenceLevels the model is asked to choose from
var ConfidenceLevels = []string{"Low", "Medium", "High"}

// Finding is the classification of one triaged IP.
// Either the four classification fields are set or Error is.
type Finding struct {
	IPAddress          string `json:"ip_address"`
	ProbableAttackType string `json:"probable_attack_type,omitempty"`
	ConfidenceLevel    string `json:"confidence_level,omitempty"`
	RecommendedAction  string `json:"recommended_action,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Failed reports whether the finding is the error variant
func (f Finding) Failed() bool {
	return f.Error != ""
}

// Report is the ordered list of findings for one invocation
type Report []Finding

// MarshalJSON keeps an empty report as [] rather than null
func (r Report) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Finding(r))
}

// Message is one turn of the model conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelRequest is the JSON body sent to the model endpoint
type ModelRequest struct {
	AnthropicVersion string    `json:"anthropic_version,omitempty"`
	Model            string    `json:"model,omitempty"` // Messages-API gateways only
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
}

// Response is what the handler returns to its caller
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// ArchivedReport is what we persist to SQLite
type ArchivedReport struct {
	ID           int64     `json:"id"`
	InvocationID string    `json:"invocation_id"`
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Lines        int       `json:"lines"`
	UniqueIPs    int       `json:"unique_ips"`
	Findings     Report    `json:"findings"`
	Timestamp    time.Time `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}
