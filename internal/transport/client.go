package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Bot-API-compatible HTTP endpoint with one bot token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (c *Client) Send(ctx context.Context, msg OutMessage) error {
	method := "sendMessage"
	payload := map[string]any{
		"chat_id": msg.ChatID,
		"text":    msg.Text,
	}
	if msg.MessageID != 0 {
		method = "editMessageText"
		payload["message_id"] = msg.MessageID
	}
	if msg.ParseMode != "" {
		payload["parse_mode"] = msg.ParseMode
	}
	if len(msg.Keyboard) > 0 {
		payload["reply_markup"] = map[string]any{"inline_keyboard": msg.Keyboard}
	}
	return c.call(ctx, method, payload)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer res.Body.Close()

	return decodeAPIResult(method, res)
}

func (c *Client) SendDocument(ctx context.Context, doc Document) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", strconv.FormatInt(doc.ChatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if doc.Caption != "" {
		if err := writer.WriteField("caption", doc.Caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", doc.Filename)
	if err != nil {
		return fmt.Errorf("create document part: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return fmt.Errorf("write document bytes: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return fmt.Errorf("create sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sendDocument request: %w", err)
	}
	defer res.Body.Close()

	return decodeAPIResult("sendDocument", res)
}

func decodeAPIResult(method string, res *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%s http status %d: %s", method, res.StatusCode, strings.TrimSpace(string(raw)))
	}
	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s rejected: %s", method, parsed.Description)
	}
	return nil
}
