package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"secure_messaging_service/internal/messaging/domain"

	"github.com/gofiber/fiber/v2"
)

// API REST calls the controller needs
type API interface {
	ListThreads(ctx context.Context) ([]domain.ThreadSummary, error)
	ListMessages(ctx context.Context, threadID string) ([]domain.MessageView, error)
	ListReaders(ctx context.Context, messageID string) ([]domain.Reader, error)
	MarkRead(ctx context.Context, messageID string) error
	SendMessage(ctx context.Context, threadID, content string) (*domain.MessageView, error)
}

// StatusError non 2xx reply of the messaging service
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("messaging api: %d %s", e.Code, e.Message)
}

// RESTClient API over HTTP with fiber's Agent
type RESTClient struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewRESTClient baseURL like http://host:8083, token is the caller's JWT
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 10 * time.Second,
	}
}

func (c *RESTClient) ListThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	var out []domain.ThreadSummary
	err := c.do(ctx, fiber.Get(c.baseURL+"/threads"), &out)
	return out, err
}

func (c *RESTClient) ListMessages(ctx context.Context, threadID string) ([]domain.MessageView, error) {
	var out []domain.MessageView
	err := c.do(ctx, fiber.Get(c.baseURL+"/thread/"+url.PathEscape(threadID)), &out)
	return out, err
}

func (c *RESTClient) ListReaders(ctx context.Context, messageID string) ([]domain.Reader, error) {
	var out []domain.Reader
	err := c.do(ctx, fiber.Get(c.baseURL+"/"+url.PathEscape(messageID)+"/readers"), &out)
	return out, err
}

func (c *RESTClient) MarkRead(ctx context.Context, messageID string) error {
	return c.do(ctx, fiber.Post(c.baseURL+"/"+url.PathEscape(messageID)+"/read"), nil)
}

func (c *RESTClient) SendMessage(ctx context.Context, threadID, content string) (*domain.MessageView, error) {
	var out domain.MessageView
	a := fiber.Post(c.baseURL + "/").JSON(fiber.Map{"threadId": threadID, "content": content})
	if err := c.do(ctx, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RESTClient) do(ctx context.Context, a *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	a.Set(fiber.HeaderAuthorization, "Bearer "+c.token).Timeout(timeout)

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= fiber.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return &StatusError{Code: code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
