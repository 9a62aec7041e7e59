package handler

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"
)

// HandleAPIGateway adapts Handle to an API Gateway proxy integration.
// It always returns a nil error so the gateway relays our status codes.
func (h *TagHandler) HandleAPIGateway(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			// Undecodable bodies are treated like malformed JSON.
			decoded = nil
		}
		body = decoded
	}

	resp := h.Handle(ctx, Request{
		Method:    event.HTTPMethod,
		Body:      body,
		RequestID: event.RequestContext.RequestID,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       string(resp.Body),
	}, nil
}
