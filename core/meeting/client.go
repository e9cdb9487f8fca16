package meeting

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

const maxErrorBodyLen = 256

// apiClient performs the JSON calls of one provider API.
type apiClient struct {
	provider   Provider
	baseURL    string
	authScheme string // Authorization header scheme, eg: Bearer
	rest       *rest.Client
}

func newAPIClient(provider Provider, baseURL, authScheme string, httpClient *http.Client) apiClient {
	return apiClient{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		authScheme: authScheme,
		rest:       &rest.Client{HTTPClient: httpClient},
	}
}

type call struct {
	op     string
	method rest.Method
	path   string
	query  map[string]string
	in     interface{} // request body
	out    interface{} // response body
}

// do sends the call once. Transport failures, non-2xx statuses and undecodable bodies
// are all returned as *ProviderError.
func (c apiClient) do(ctx context.Context, token string, cl call) error {
	provErr := func(status int, err error) error {
		return &ProviderError{Provider: c.provider, Op: cl.op, StatusCode: status, Err: err}
	}

	req := rest.Request{
		Method:      cl.method,
		BaseURL:     c.baseURL + cl.path,
		QueryParams: cl.query,
		Headers: map[string]string{
			"Authorization": c.authScheme + " " + token,
			"Accept":        "application/json",
		},
	}
	if cl.in != nil {
		body, err := json.Marshal(cl.in)
		if err != nil {
			return provErr(0, errors.Wrap(err, "encoding request"))
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return provErr(0, err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		body := res.Body
		if len(body) > maxErrorBodyLen {
			body = body[:maxErrorBodyLen]
		}
		return provErr(res.StatusCode, errors.Errorf("unexpected response: %s", strings.TrimSpace(body)))
	}
	if cl.out != nil && strings.TrimSpace(res.Body) != "" {
		if err = json.Unmarshal([]byte(res.Body), cl.out); err != nil {
			return provErr(res.StatusCode, errors.Wrap(err, "decoding response"))
		}
	}
	return nil
}

// flexString decodes JSON strings and numbers alike; providers disagree on id types.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}
