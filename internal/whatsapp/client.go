package whatsapp

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Credentials are the per-clinic provider credentials. A clinic without
// them is a skip condition upstream, never an error here.
type Credentials struct {
	APIKey string
	Sender string
}

// Message is a rendered outbound message: either a literal text body or
// a provider-registered template with ordered positional parameters.
type Message struct {
	Type     string // "text" | "template"
	Body     string
	Template string
	Params   []string
}

// TextMessage builds a literal-body message.
func TextMessage(body string) Message {
	return Message{Type: "text", Body: body}
}

// TemplateMessage builds a template message with positional parameters.
func TemplateMessage(name string, params ...string) Message {
	return Message{Type: "template", Template: name, Params: params}
}

// DeliveryError is a typed failure from the provider. The gateway never
// retries; the dispatch engine decides what to do with it.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("whatsapp delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("whatsapp delivery failed: status %d, body: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sender is the delivery gateway boundary consumed by the dispatch engine.
type Sender interface {
	Send(creds Credentials, to string, msg Message) (string, error)
}

// Client talks to the WhatsApp Business provider over HTTP.
type Client struct {
	httpClient *resty.Client
}

type sendRequest struct {
	Sender   string   `json:"sender"`
	To       string   `json:"to"`
	Type     string   `json:"type"`
	Body     string   `json:"body,omitempty"`
	Template string   `json:"template,omitempty"`
	Params   []string `json:"params,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// NewClient creates a provider client for the given API base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("whatsapp baseURL cannot be empty")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)

	return &Client{httpClient: client}, nil
}

// Send delivers a single message and returns the provider-assigned
// message identifier. Any non-2xx response or transport error is
// surfaced as a *DeliveryError.
func (c *Client) Send(creds Credentials, to string, msg Message) (string, error) {
	payload := sendRequest{
		Sender:   creds.Sender,
		To:       to,
		Type:     msg.Type,
		Body:     msg.Body,
		Template: msg.Template,
		Params:   msg.Params,
	}

	var result sendResponse
	resp, err := c.httpClient.R().
		SetHeader("Authorization", "Bearer "+creds.APIKey).
		SetBody(payload).
		SetResult(&result).
		Post("/messages")

	if err != nil {
		return "", &DeliveryError{Err: err}
	}
	if resp.IsError() {
		return "", &DeliveryError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return result.MessageID, nil
}

var _ Sender = (*Client)(nil)
