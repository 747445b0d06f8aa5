package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
)

// GatewayClient implements Channel over the gateway's JSON HTTP API.
type GatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewGatewayClient builds a client from configuration.
func NewGatewayClient(cfg config.ChannelConfig) *GatewayClient {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

type sendTextRequest struct {
	ChatID string `json:"chatId"`
	Body   string `json:"body"`
}

type participantsResponse struct {
	Participants []struct {
		Number string `json:"number"`
	} `json:"participants"`
}

type contactResponse struct {
	Name          string `json:"name"`
	Number        string `json:"number"`
	ProfilePicURL string `json:"profilePicUrl"`
	IsGroup       bool   `json:"isGroup"`
}

// SendText delivers a text message to a chat.
func (c *GatewayClient) SendText(ctx context.Context, whatsappID int64, chatID, body string) error {
	_, err := c.sendRequest(ctx, http.MethodPost, c.sessionPath(whatsappID, "messages"), sendTextRequest{ChatID: chatID, Body: body})
	return err
}

// GroupParticipants returns the member numbers of a group chat.
func (c *GatewayClient) GroupParticipants(ctx context.Context, whatsappID int64, groupID string) ([]string, error) {
	raw, err := c.sendRequest(ctx, http.MethodGet, c.sessionPath(whatsappID, "groups", groupID, "participants"), nil)
	if err != nil {
		return nil, err
	}

	var resp participantsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	numbers := make([]string, 0, len(resp.Participants))
	for _, p := range resp.Participants {
		numbers = append(numbers, p.Number)
	}
	return numbers, nil
}

// GetContact fetches the gateway's profile of a chat.
func (c *GatewayClient) GetContact(ctx context.Context, whatsappID int64, chatID string) (*domain.Contact, error) {
	raw, err := c.sendRequest(ctx, http.MethodGet, c.sessionPath(whatsappID, "contacts", chatID), nil)
	if err != nil {
		return nil, err
	}

	var resp contactResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	return &domain.Contact{
		Name:          resp.Name,
		Number:        resp.Number,
		ProfilePicURL: resp.ProfilePicURL,
		IsGroup:       resp.IsGroup,
	}, nil
}

// LeaveGroup makes the connection leave a group chat.
func (c *GatewayClient) LeaveGroup(ctx context.Context, whatsappID int64, groupID string) error {
	_, err := c.sendRequest(ctx, http.MethodPost, c.sessionPath(whatsappID, "groups", groupID, "leave"), nil)
	return err
}

func (c *GatewayClient) sessionPath(whatsappID int64, parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "sessions", fmt.Sprint(whatsappID))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *GatewayClient) sendRequest(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("gateway error: %s - %s", resp.Status, string(respBody))
	}
	return respBody, nil
}
