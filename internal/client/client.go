package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trcinventory/internal/auth"
	"trcinventory/internal/dashboard"
	"trcinventory/internal/data"
	"trcinventory/internal/ingredients"
	"trcinventory/internal/inventory"
	"trcinventory/internal/pettycash"
	"trcinventory/internal/security"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrInvalidRequest  = errors.New("invalid request")
)

// codeErrors maps API error codes back onto the sentinels the server raised them from.
var codeErrors = map[string]error{
	"unauthenticated":     ErrUnauthenticated,
	"invalid_credentials": auth.ErrInvalidCredentials,
	"throttled":           auth.ErrThrottled,
	"snapshot_exists":     inventory.ErrSnapshotExists,
	"not_found":           data.ErrNotFound,
	"conflict":            data.ErrConflict,
	"invalid_request":     ErrInvalidRequest,
	"invalid_amount":      pettycash.ErrInvalidAmount,
	"invalid_date":        pettycash.ErrInvalidDate,
	"timeout":             context.DeadlineExceeded,
}

// APIError is a non-2xx answer from the server. It unwraps to the matching sentinel.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d %s): %s", e.Message, e.Status, e.Code, e.Details)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

// Session is what the client holds after login. It lives only in memory.
type Session struct {
	ID        string
	Username  string
	ExpiresAt time.Time
	Token     string
}

// Client talks to the JSON API. Guarded calls need a session from Login or SetSession.
type Client struct {
	base string
	http *http.Client

	mu      sync.RWMutex
	session *Session
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// do sends one request and decodes the envelope's data into out (when out is not nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s := c.Session(); s != nil {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "http_" + strconv.Itoa(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		if apiErr.Status == http.StatusUnauthorized && apiErr.Code == "unauthenticated" {
			c.SetSession(nil)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

//
// --- Authentication ---
//

// Login exchanges credentials for a session and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var resp auth.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/login", auth.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        resp.Session.ID,
		Username:  resp.Session.Username,
		ExpiresAt: resp.Session.ExpiresAt,
		Token:     resp.Token,
	}
	c.SetSession(s)
	return s, nil
}

// Logout ends the session on the server. The local session is dropped either way.
func (c *Client) Logout(ctx context.Context) error {
	if c.Session() == nil {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
	c.SetSession(nil)
	if errors.Is(err, ErrUnauthenticated) {
		return nil
	}
	return err
}

func (c *Client) WhoAmI(ctx context.Context) (security.Session, error) {
	var s security.Session
	err := c.do(ctx, http.MethodGet, "/api/session", nil, &s)
	return s, err
}

//
// --- Dashboard and ingredients ---
//

func (c *Client) Dashboard(ctx context.Context) (dashboard.Summary, error) {
	var s dashboard.Summary
	err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &s)
	return s, err
}

func (c *Client) Ingredients(ctx context.Context) ([]data.Ingredient, error) {
	var items []data.Ingredient
	err := c.do(ctx, http.MethodGet, "/api/ingredients", nil, &items)
	return items, err
}

func (c *Client) AddIngredient(ctx context.Context) (*data.Ingredient, error) {
	var item data.Ingredient
	if err := c.do(ctx, http.MethodPost, "/api/ingredients", nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateIngredient(ctx context.Context, item data.Ingredient) (*data.Ingredient, error) {
	req := ingredients.UpdateRequest{
		Name:        item.Name,
		Description: item.Description,
		Supplier:    item.Supplier,
		Price:       item.Price,
	}
	var out data.Ingredient
	if err := c.do(ctx, http.MethodPut, "/api/ingredients/"+strconv.FormatInt(item.ID, 10), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//
// --- Inventory ---
//

func (c *Client) Snapshots(ctx context.Context) ([]data.Snapshot, error) {
	var snaps []data.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/inventory/snapshots", nil, &snaps)
	return snaps, err
}

func (c *Client) CreateSnapshot(ctx context.Context) (*data.SnapshotCreation, error) {
	var created data.SnapshotCreation
	if err := c.do(ctx, http.MethodPost, "/api/inventory/snapshots", nil, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) Lines(ctx context.Context, group string) ([]data.InventoryLine, error) {
	var lines []data.InventoryLine
	err := c.do(ctx, http.MethodGet, "/api/inventory/snapshots/"+url.PathEscape(group)+"/lines", nil, &lines)
	return lines, err
}

func (c *Client) AddLine(ctx context.Context, group string) (*data.InventoryLine, error) {
	var line data.InventoryLine
	if err := c.do(ctx, http.MethodPost, "/api/inventory/snapshots/"+url.PathEscape(group)+"/lines", nil, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

func (c *Client) UpdateLine(ctx context.Context, line data.InventoryLine) (*data.InventoryLine, error) {
	req := inventory.UpdateLineRequest{
		ItemName:       line.ItemName,
		BeginningStock: line.BeginningStock,
		QtyUsed:        line.QtyUsed,
		EndingStock:    line.EndingStock,
	}
	var out data.InventoryLine
	if err := c.do(ctx, http.MethodPut, "/api/inventory/lines/"+strconv.FormatInt(line.ID, 10), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//
// --- Petty cash ---
//

func (c *Client) Capitals(ctx context.Context) ([]data.Capital, error) {
	var caps []data.Capital
	err := c.do(ctx, http.MethodGet, "/api/petty-cash/capitals", nil, &caps)
	return caps, err
}

func (c *Client) CreateCapital(ctx context.Context, description string, amount decimal.Decimal) (*data.Capital, error) {
	var capital data.Capital
	req := pettycash.CapitalRequest{Description: description, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/api/petty-cash/capitals", req, &capital); err != nil {
		return nil, err
	}
	return &capital, nil
}

func (c *Client) Expenses(ctx context.Context, group string) ([]data.Expense, error) {
	var exps []data.Expense
	err := c.do(ctx, http.MethodGet, "/api/petty-cash/capitals/"+url.PathEscape(group)+"/expenses", nil, &exps)
	return exps, err
}

func (c *Client) AddExpense(ctx context.Context, group string, in pettycash.ExpenseInput) (*data.ExpenseResult, error) {
	var result data.ExpenseResult
	if err := c.do(ctx, http.MethodPost, "/api/petty-cash/capitals/"+url.PathEscape(group)+"/expenses", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdateExpense(ctx context.Context, id int64, in pettycash.ExpenseInput) (*data.ExpenseResult, error) {
	var result data.ExpenseResult
	if err := c.do(ctx, http.MethodPut, "/api/petty-cash/expenses/"+strconv.FormatInt(id, 10), in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
