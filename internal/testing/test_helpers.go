// test_helpers.go - end-to-end suite over a temporary sqlite store and a real HTTP server
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trcinventory/internal/client"
	"trcinventory/internal/data"
	"trcinventory/internal/security"
	"trcinventory/internal/server"
)

const (
	TestUsername = "barista"
	TestPassword = "espresso-doppio"
)

// TestConfig holds configuration for test runs
type TestConfig struct {
	DBPath      string
	TestDataDir string
	Today       time.Time
	LoginLimit  int
}

// TestSuite provides utilities for integration testing
type TestSuite struct {
	Config   TestConfig
	Server   *httptest.Server
	Client   *http.Client
	Backend  *data.SQLBackend // Direct store handle for setup and assertions
	App      *server.App
	Sessions *security.SessionManager
	mu       sync.Mutex
	clock    time.Time
}

// NewTestSuite creates a new test suite with its own database and server
func NewTestSuite(t testing.TB) *TestSuite {
	t.Helper()

	// Create unique temporary directory for each test run
	testDir := filepath.Join(os.TempDir(), fmt.Sprintf("trctest_%d_%d",
		time.Now().UnixNano(), os.Getpid()))
	if err := os.MkdirAll(testDir, 0755); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}

	config := TestConfig{
		DBPath:      filepath.Join(testDir, fmt.Sprintf("test_%d.db", time.Now().UnixNano())),
		TestDataDir: testDir,
		Today:       time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC),
		LoginLimit:  5,
	}

	suite := &TestSuite{
		Config: config,
		Client: &http.Client{Timeout: 30 * time.Second},
		clock:  config.Today,
	}
	t.Cleanup(suite.Cleanup)

	if err := suite.InitServer(); err != nil {
		t.Fatalf("Failed to initialize test server: %v", err)
	}
	return suite
}

// InitServer opens the store, bootstraps the test account and starts the HTTP server
func (ts *TestSuite) InitServer() error {
	backend, err := data.OpenSQLite(ts.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open test database: %w", err)
	}
	ts.Backend = backend

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := backend.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	sessions, err := security.NewSessionManager([]byte("integration-secret-0123456789abcdef"), time.Hour)
	if err != nil {
		return err
	}
	ts.Sessions = sessions

	ts.App = server.New("", server.Deps{
		Backend:  backend,
		Sessions: sessions,
		Throttle: security.NewLoginThrottle(ts.Config.LoginLimit, time.Minute, time.Minute),
		Location: time.UTC,
	})
	ts.App.Inventory.SetClock(ts.now)
	ts.App.PettyCash.SetClock(ts.now)

	if _, err := ts.App.Auth.EnsureCredential(ctx, TestUsername, TestPassword); err != nil {
		return fmt.Errorf("failed to create test account: %w", err)
	}

	ts.Server = httptest.NewServer(ts.App.Handler())
	return nil
}

func (ts *TestSuite) now() time.Time {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.clock
}

// SetToday moves the server clock to the given YYYY-MM-DD.
func (ts *TestSuite) SetToday(date string) {
	d, err := time.ParseInLocation(data.DateLayout, date, time.UTC)
	if err != nil {
		panic(err)
	}
	ts.mu.Lock()
	ts.clock = d.Add(9 * time.Hour)
	ts.mu.Unlock()
}

// Cleanup removes temporary test files and closes the database
func (ts *TestSuite) Cleanup() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	if ts.Backend != nil {
		if err := ts.Backend.Close(); err != nil {
			fmt.Printf("Warning: failed to close test database: %v\n", err)
		}
	}

	if err := os.RemoveAll(ts.Config.TestDataDir); err != nil {
		fmt.Printf("Warning: failed to cleanup test directory %s: %v\n", ts.Config.TestDataDir, err)
	}
}

// NewClient returns an API client pointed at the suite's server, not yet logged in.
func (ts *TestSuite) NewClient() *client.Client {
	return client.New(ts.Server.URL, ts.Client)
}

// LoggedInClient returns an API client holding a fresh session.
func (ts *TestSuite) LoggedInClient(t *testing.T) *client.Client {
	t.Helper()
	c := ts.NewClient()
	if _, err := c.Login(context.Background(), TestUsername, TestPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return c
}

// Login performs a raw API login and returns the session token
func (ts *TestSuite) Login(t *testing.T) string {
	t.Helper()
	resp, err := ts.MakeAPIRequest(http.MethodPost, "/api/login",
		map[string]string{"username": TestUsername, "password": TestPassword}, "")
	ts.AssertNoError(t, err)
	ts.AssertStatusCode(t, resp, http.StatusOK)

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	ts.AssertNoError(t, ts.ParseJSONResponse(resp, &out))
	if out.Data.Token == "" {
		t.Fatal("Login returned no token")
	}
	return out.Data.Token
}

// MakeAPIRequest makes an API request, authenticated when token is set
func (ts *TestSuite) MakeAPIRequest(method, path string, body interface{}, token string) (*http.Response, error) {
	var reqBody *bytes.Buffer

	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(bodyBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return ts.Client.Do(req)
}

// ParseJSONResponse parses a JSON response into the provided interface
func (ts *TestSuite) ParseJSONResponse(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// AssertStatusCode checks if response has expected status code
func (ts *TestSuite) AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertNoError fails the test if error is not nil
func (ts *TestSuite) AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if error is nil
func (ts *TestSuite) AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error but got nil")
	}
}

// CountRows counts the rows of a table matching the filters.
func (ts *TestSuite) CountRows(t *testing.T, table string, filters ...data.Filter) int {
	t.Helper()
	n, err := ts.Backend.Count(context.Background(), table, filters...)
	ts.AssertNoError(t, err)
	return n
}
