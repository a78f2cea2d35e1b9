// internal/analyst/invoker.go
package analyst

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/valyala/fastjson"

	"github.com/signalnine/ipaugur/internal/protocol"
)

// ErrInvoke wraps every failure of the remote classification call
var ErrInvoke = errors.New("model invocation failed")

const contentTypeJSON = "application/json"

// Invoker sends one classification request and returns the model's raw
// text reply (content[0].text)
type Invoker interface {
	Invoke(ctx context.Context, req protocol.ModelRequest) (string, error)
}

// BedrockAPI is the subset of the Bedrock runtime client we use
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockInvoker calls a Bedrock-hosted model
type BedrockInvoker struct {
	client  BedrockAPI
	modelID string
}

// NewBedrockInvoker creates an invoker bound to one model id
func NewBedrockInvoker(client BedrockAPI, modelID string) *BedrockInvoker {
	return &BedrockInvoker{client: client, modelID: modelID}
}

// Invoke blocks until Bedrock answers. No retry beyond the SDK's own.
func (b *BedrockInvoker) Invoke(ctx context.Context, req protocol.ModelRequest) (string, error) {
	body, err := marshalRequest(req)
	if err != nil {
		return "", err
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvoke, err)
	}

	return ExtractText(out.Body)
}

// ExtractText pulls content[0].text out of a Messages-API response body.
// A body without it is an invocation failure, not a parse failure.
func ExtractText(body []byte) (string, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: response body: %v", ErrInvoke, err)
	}

	text := v.Get("content", "0", "text")
	if text == nil || text.Type() != fastjson.TypeString {
		return "", fmt.Errorf("%w: response has no content[0].text", ErrInvoke)
	}
	return string(text.GetStringBytes()), nil
}
