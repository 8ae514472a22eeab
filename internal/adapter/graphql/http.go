package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

var (
	ErrMissingQuery          = errors.New("query is required")
	ErrSubscriptionOverHTTP  = errors.New("subscriptions require a graphql-transport-ws WebSocket connection")
	ErrUnsupportedHTTPMethod = errors.New("GraphQL over HTTP accepts GET and POST only")
)

// ParseHTTPRequest reads a GraphQL request from a GET query string or a POST
// body (application/json or application/graphql).
func ParseHTTPRequest(r *http.Request) (Request, error) {
	var req Request

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return Request{}, fmt.Errorf("variables must be a JSON object: %w", err)
			}
		}

	case http.MethodPost:
		body := io.LimitReader(r.Body, maxBodyBytes)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/graphql" {
			raw, err := io.ReadAll(body)
			if err != nil {
				return Request{}, fmt.Errorf("failed to read body: %w", err)
			}
			req.Query = string(raw)
			break
		}
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return Request{}, fmt.Errorf("request body must be a GraphQL JSON request: %w", err)
		}

	default:
		return Request{}, ErrUnsupportedHTTPMethod
	}

	if strings.TrimSpace(req.Query) == "" {
		return Request{}, ErrMissingQuery
	}
	if OperationType(req.Query, req.OperationName) == opSubscription {
		return Request{}, ErrSubscriptionOverHTTP
	}
	return req, nil
}
