package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"debtflow/config"

	"github.com/gofiber/fiber/v2"
)

// SMSAPIClient sends text messages through the SMSAPI.pl REST API
type SMSAPIClient struct {
	baseURL     string
	token       string
	callbackURL string
	testMode    bool
	timeout     time.Duration
}

type smsapiSendResponse struct {
	Count int `json:"count"`
	List  []struct {
		ID     string `json:"id"`
		Number string `json:"number"`
		Status string `json:"status"`
	} `json:"list"`

	// Set on failures instead of list
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func NewSMSAPIClient(cfg config.SMSAPIConfig) *SMSAPIClient {
	return &SMSAPIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		callbackURL: cfg.CallbackURL,
		testMode:    cfg.TestMode,
		timeout:     15 * time.Second,
	}
}

// SendSMS submits one message and returns the SMSAPI message id
func (c *SMSAPIClient) SendSMS(ctx context.Context, sms SMS) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	to := NormalizePhone(sms.To)
	if to == "" {
		return "", fmt.Errorf("invalid phone number %q", sms.To)
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("to", to)
	args.Set("message", sms.Text)
	args.Set("format", "json")
	args.Set("encoding", "utf-8")
	if sms.From != "" {
		args.Set("from", sms.From)
	}
	if c.callbackURL != "" {
		args.Set("notify_url", c.callbackURL)
	}
	if c.testMode {
		args.Set("test", "1")
	}

	agent := fiber.Post(c.baseURL + "/sms.do")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	agent.Form(args)
	agent.Timeout(requestTimeout(ctx, c.timeout))
	if err := agent.Parse(); err != nil {
		return "", fmt.Errorf("smsapi request: %w", err)
	}

	var resp smsapiSendResponse
	code, body, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return "", fmt.Errorf("smsapi request failed: %w", errs[0])
	}
	if code >= fiber.StatusBadRequest {
		return "", fmt.Errorf("smsapi returned HTTP %d: %s", code, string(body))
	}
	if resp.Error != 0 {
		return "", fmt.Errorf("smsapi error %d: %s", resp.Error, resp.Message)
	}
	if len(resp.List) == 0 || resp.List[0].ID == "" {
		return "", fmt.Errorf("smsapi response without message id")
	}
	return resp.List[0].ID, nil
}

// requestTimeout caps the agent timeout by the context deadline
func requestTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	if left := time.Until(deadline); left < fallback {
		return left
	}
	return fallback
}

// NormalizePhone strips formatting and prefixes bare 9-digit Polish numbers with 48
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "00")
	if len(digits) == 9 {
		digits = "48" + digits
	}
	if len(digits) < 9 {
		return ""
	}
	return digits
}
