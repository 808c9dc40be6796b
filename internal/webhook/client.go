// Package webhook implements the client side of the outbound automation
// endpoint contract: a signed JSON POST whose response is either a reply
// batch (applied synchronously), a plain acknowledgement (the reply arrives
// via push), or an error body used as the user-facing apology.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Header names carried on every request.
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Signature"
)

// maxResponseBytes caps how much of a response body is read; endpoint replies
// are small JSON documents.
const maxResponseBytes = 1 << 20

// ErrNotConfigured is returned by Send when no endpoint URL is set.
var ErrNotConfigured = errors.New("webhook url not configured")

// Payload is the JSON body posted to the automation endpoint. The signature
// covers these exact serialized bytes, so field order and encoding must stay
// stable between signing and sending.
type Payload struct {
	SenderID  string `json:"sender_id"`
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	Role      string `json:"role"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Reply is one agent message returned synchronously in a 200 response body.
type Reply struct {
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// StatusError reports a non-success HTTP status from the endpoint. Body holds
// the trimmed response text, if any; callers surface it as the apology shown
// to the user.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.Code)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.Code, e.Body)
}

// Sign returns the hex-encoded HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether sig is a valid signature for body. The
// comparison is constant time.
func VerifySignature(secret string, body []byte, sig string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(sig))
}

// Client posts signed payloads to the automation endpoint.
type Client struct {
	URL        string
	APIKey     string
	Secret     string
	HTTPClient *http.Client
}

// New constructs a Client with a dedicated http.Client using the given
// timeout. An empty url yields a client whose Send returns ErrNotConfigured.
func New(url, apiKey, secret string, timeout time.Duration) *Client {
	return &Client{
		URL:        url,
		APIKey:     apiKey,
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an endpoint URL is set.
func (c *Client) Configured() bool { return c != nil && c.URL != "" }

// Send posts p and interprets the response.
//
// Returns:
//   - (replies, nil) when the endpoint answered 200 with a JSON reply array;
//   - (nil, nil) when the endpoint acknowledged without replies (async path);
//   - (nil, *StatusError) on a non-success status;
//   - (nil, err) on transport or encoding failures.
func (c *Client) Send(ctx context.Context, p Payload) ([]Reply, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, c.APIKey)
	req.Header.Set(HeaderSignature, Sign(c.Secret, body))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	// A success body is either a reply array or an arbitrary ack payload.
	var replies []Reply
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &replies); err == nil {
			return replies, nil
		}
	}
	return nil, nil
}
