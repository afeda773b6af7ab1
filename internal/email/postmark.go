package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkEndpoint = "https://api.postmarkapp.com/email"

// Client sends transactional email through Postmark. An empty server
// token leaves the client unconfigured, in which case sends fail with
// an explanatory error and callers may fall back to logging the code.
type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
	endpoint    string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoint overrides the Postmark API endpoint. Used in tests.
func WithEndpoint(url string) Option {
	return func(cl *Client) {
		cl.endpoint = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
		endpoint:    postmarkEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendVerificationCode emails a 6-digit confirmation code to a newly
// registered address.
func (c *Client) SendVerificationCode(toEmail, code string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	subject := "Confirm your BinQR email"
	textBody := fmt.Sprintf("Your BinQR verification code is:\n\n%s\n\nEnter it in the app to confirm your email. The code expires in 15 minutes.", code)
	htmlBody := fmt.Sprintf(
		`<p>Your BinQR verification code is:</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p><p>Enter it in the app to confirm your email. The code expires in 15 minutes.</p>`,
		code,
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
