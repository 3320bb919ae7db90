package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	log "github.com/sirupsen/logrus"
)

// envelope is the request wrapper every flow step travels in. Ingress
// steps send a null permit; ticket redemption supplies the ticket in its
// place.
type envelope struct {
	Args   any     `json:"args"`
	Permit *string `json:"permit"`
}

// replyEnvelope is the response counterpart. Ret is absent on bodiless
// acknowledgements.
type replyEnvelope struct {
	Ret    json.RawMessage `json:"ret"`
	Permit *string         `json:"permit"`
}

// statusErr interprets a non-200 status into the request-error taxonomy.
func statusErr(status int) *RequestError {
	switch status {
	case http.StatusUnauthorized:
		return requestErr(ErrState, status, nil)
	case http.StatusPreconditionFailed:
		return requestErr(ErrPrecondition, status, nil)
	case http.StatusBadRequest:
		return requestErr(ErrRequest, status, nil)
	case http.StatusInternalServerError:
		return requestErr(ErrInternal, status, nil)
	default:
		return requestErr(ErrUnexpectedStatus, status, nil)
	}
}

func (c *Client) routeURL(route string) string {
	return c.baseURL.String() + "/" + route
}

func (c *Client) post(ctx context.Context, route string, body []byte, contentType string) (*replyEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.routeURL(route), bytes.NewReader(body))
	if err != nil {
		return nil, requestErr(ErrRequest, 0, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-Id", requestID)

	log.Debug("POST ", req.URL.String(), " id=", requestID)
	res, err := c.client.Do(req)
	if err != nil {
		return nil, requestErr(ErrUnexpectedStatus, 0, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Debug("provider returned status ", res.StatusCode, " id=", requestID)
		return nil, statusErr(res.StatusCode)
	}

	var reply replyEnvelope
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return nil, deserializationErr(err)
	}
	return &reply, nil
}

// call posts one flow step and returns the response payload plus the
// permit for the next step ("" when the provider issued none).
func (c *Client) call(ctx context.Context, route string, args any, permit *string) (json.RawMessage, string, error) {
	body, err := json.Marshal(envelope{Args: args, Permit: permit})
	if err != nil {
		return nil, "", requestErr(ErrRequest, 0, err)
	}

	reply, err := c.post(ctx, route, body, "application/json")
	if err != nil {
		return nil, "", err
	}

	next := ""
	if reply.Permit != nil {
		next = *reply.Permit
	}
	return reply.Ret, next, nil
}

// callRaw posts a raw sealed token body to a token endpoint.
func (c *Client) callRaw(ctx context.Context, route string, encodedToken string) (json.RawMessage, error) {
	reply, err := c.post(ctx, route, []byte(encodedToken), "application/octet-stream")
	if err != nil {
		return nil, err
	}
	return reply.Ret, nil
}

// healthy probes the health route with its own deadline.
func (c *Client) healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.routeURL(routeHealth), nil)
	if err != nil {
		return false, requestErr(ErrRequest, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		// A timed-out probe means the provider is unhealthy, not that the
		// caller did anything wrong.
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, requestErr(ErrUnexpectedStatus, 0, err)
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}
