// Package client talks to a Switchyard server and keeps a local, optimistically
// updated copy of a board that converges on server truth by re-fetching.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
)

// Client is a thin JSON client for the Switchyard HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the server at baseURL authenticating with token.
// The token may be empty for Register and Login.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

// Session is returned by Register and Login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Register creates an account and adopts the returned token.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &s); err != nil {
		return nil, err
	}
	c.token = s.Token
	return &s, nil
}

// Login authenticates and adopts the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &s); err != nil {
		return nil, err
	}
	c.token = s.Token
	return &s, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Boards lists the boards the caller is a member of.
func (c *Client) Boards(ctx context.Context) ([]models.Board, error) {
	var boards []models.Board
	if err := c.do(ctx, http.MethodGet, "/api/boards", nil, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

// CreateBoard creates a board owned by the caller.
func (c *Client) CreateBoard(ctx context.Context, name string) (*models.Board, error) {
	var b models.Board
	if err := c.do(ctx, http.MethodPost, "/api/boards", map[string]string{"name": name}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Board fetches the full board detail.
func (c *Client) Board(ctx context.Context, boardID string) (*models.BoardDetail, error) {
	var d models.BoardDetail
	if err := c.do(ctx, http.MethodGet, "/api/boards/"+boardID, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteBoard deletes a board the caller owns.
func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.do(ctx, http.MethodDelete, "/api/boards/"+boardID, nil, nil)
}

// AddMember adds the user with email to the board.
func (c *Client) AddMember(ctx context.Context, boardID, email string) (*models.BoardDetail, error) {
	var d models.BoardDetail
	if err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID+"/members", map[string]string{"email": email}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateList appends a list to the board.
func (c *Client) CreateList(ctx context.Context, boardID, name string) (*models.List, error) {
	var l models.List
	body := map[string]string{"board_id": boardID, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/lists", body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// MoveList moves a list to position to on boardID. An empty boardID keeps
// the list on its board.
func (c *Client) MoveList(ctx context.Context, listID, boardID string, to int) (*models.List, error) {
	var l models.List
	body := map[string]any{"position": to}
	if boardID != "" {
		body["board_id"] = boardID
	}
	if err := c.do(ctx, http.MethodPut, "/api/lists/"+listID+"/move", body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SetWIPLimit sets the list's WIP limit. A nil limit clears it.
func (c *Client) SetWIPLimit(ctx context.Context, listID string, limit *int) (*models.List, error) {
	var l models.List
	body := map[string]*int{"wip_limit": limit}
	if err := c.do(ctx, http.MethodPut, "/api/lists/"+listID+"/wip", body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteList deletes a list and its cards.
func (c *Client) DeleteList(ctx context.Context, listID string) error {
	return c.do(ctx, http.MethodDelete, "/api/lists/"+listID, nil, nil)
}

// CardInput holds the fields of a new card. Empty strings are left unset.
type CardInput struct {
	ListID      string `json:"list_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Tag         string `json:"tag,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// CreateCard appends a card to a list.
func (c *Client) CreateCard(ctx context.Context, in CardInput) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards", in, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard applies a partial update to a card.
func (c *Client) UpdateCard(ctx context.Context, cardID string, patch models.CardPatch) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodPut, "/api/cards/"+cardID, patch, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// MoveCard moves a card to position to in listID.
func (c *Client) MoveCard(ctx context.Context, cardID, listID string, to int) (*models.Card, error) {
	var card models.Card
	body := map[string]any{"list_id": listID, "position": to}
	if err := c.do(ctx, http.MethodPut, "/api/cards/"+cardID+"/move", body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// DeleteCard deletes a card.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	return c.do(ctx, http.MethodDelete, "/api/cards/"+cardID, nil, nil)
}

// do sends one JSON request. Error responses are decoded back into the
// apperr taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e apperr.Body
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("client: %s %s: %w", method, path, apperr.FromStatus(resp.StatusCode, e.Error))
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("client: decode response: %w", err)
		}
	}
	return nil
}
