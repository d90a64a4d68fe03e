// api_test.go - raw HTTP checks of the JSON API surface
package testing

import (
	"net/http"
	"strings"
	"testing"
)

type apiEnvelope struct {
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details"`
	RequestID string                 `json:"request_id"`
}

func TestAPIEndpoints(t *testing.T) {
	suite := NewTestSuite(t)

	t.Run("Health", func(t *testing.T) {
		resp, err := suite.Client.Get(suite.Server.URL + "/healthz")
		suite.AssertNoError(t, err)
		resp.Body.Close()
		suite.AssertStatusCode(t, resp, http.StatusOK)
	})

	t.Run("Login", func(t *testing.T) {
		testLoginEndpoint(t, suite)
	})

	t.Run("SessionGuard", func(t *testing.T) {
		testSessionGuard(t, suite)
	})

	t.Run("ErrorHandling", func(t *testing.T) {
		testAPIErrorHandling(t, suite)
	})

	t.Run("Pages", func(t *testing.T) {
		testPages(t, suite)
	})
}

func testLoginEndpoint(t *testing.T, suite *TestSuite) {
	// Wrong password and unknown user answer the same way.
	var bodies []string
	for _, creds := range []map[string]string{
		{"username": TestUsername, "password": "nope"},
		{"username": "ghost", "password": TestPassword},
		{"username": "", "password": ""},
	} {
		resp, err := suite.MakeAPIRequest(http.MethodPost, "/api/login", creds, "")
		suite.AssertNoError(t, err)
		suite.AssertStatusCode(t, resp, http.StatusUnauthorized)

		var env apiEnvelope
		suite.AssertNoError(t, suite.ParseJSONResponse(resp, &env))
		if env.Code != "invalid_credentials" {
			t.Errorf("Expected invalid_credentials, got %q", env.Code)
		}
		bodies = append(bodies, env.Message+"|"+env.Details)
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("Expected uniform failures, got %q and %q", bodies[0], b)
		}
	}

	resp, err := suite.MakeAPIRequest(http.MethodPost, "/api/login",
		map[string]string{"username": TestUsername, "password": TestPassword}, "")
	suite.AssertNoError(t, err)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "trc_session" {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Error("Expected an HttpOnly trc_session cookie")
	}

	var env apiEnvelope
	suite.AssertNoError(t, suite.ParseJSONResponse(resp, &env))
	if !env.Success || env.Data["token"] == "" || env.RequestID == "" {
		t.Errorf("Unexpected login envelope: %+v", env)
	}

	t.Log("✅ Login endpoint passed")
}

func testSessionGuard(t *testing.T, suite *TestSuite) {
	guarded := []string{
		"/api/session",
		"/api/dashboard",
		"/api/ingredients",
		"/api/inventory/snapshots",
		"/api/petty-cash/capitals",
	}

	for _, path := range guarded {
		resp, err := suite.MakeAPIRequest(http.MethodGet, path, nil, "")
		suite.AssertNoError(t, err)
		var env apiEnvelope
		suite.ParseJSONResponse(resp, &env)
		if resp.StatusCode != http.StatusUnauthorized || env.Code != "unauthenticated" {
			t.Errorf("%s without a token: expected 401 unauthenticated, got %d %q", path, resp.StatusCode, env.Code)
		}
	}

	resp, err := suite.MakeAPIRequest(http.MethodGet, "/api/ingredients", nil, "not.a.token")
	suite.AssertNoError(t, err)
	resp.Body.Close()
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)

	token := suite.Login(t)
	for _, path := range guarded {
		resp, err := suite.MakeAPIRequest(http.MethodGet, path, nil, token)
		suite.AssertNoError(t, err)
		resp.Body.Close()
		suite.AssertStatusCode(t, resp, http.StatusOK)
	}

	resp, err = suite.MakeAPIRequest(http.MethodPost, "/api/logout", nil, token)
	suite.AssertNoError(t, err)
	resp.Body.Close()
	suite.AssertStatusCode(t, resp, http.StatusOK)

	// The token still has a valid signature, but the session is gone.
	resp, err = suite.MakeAPIRequest(http.MethodGet, "/api/session", nil, token)
	suite.AssertNoError(t, err)
	resp.Body.Close()
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)

	t.Log("✅ Session guard passed")
}

func testAPIErrorHandling(t *testing.T, suite *TestSuite) {
	token := suite.Login(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown snapshot", http.MethodGet, "/api/inventory/snapshots/missing/lines", nil, http.StatusNotFound, "not_found"},
		{"line of unknown snapshot", http.MethodPost, "/api/inventory/snapshots/missing/lines", nil, http.StatusNotFound, "not_found"},
		{"bad line id", http.MethodPut, "/api/inventory/lines/abc", map[string]string{}, http.StatusBadRequest, "invalid_request"},
		{"missing ingredient", http.MethodPut, "/api/ingredients/9999", map[string]string{"name": "x"}, http.StatusNotFound, "not_found"},
		{"unknown field", http.MethodPut, "/api/ingredients/1", map[string]string{"colour": "red"}, http.StatusBadRequest, "invalid_request"},
		{"zero capital", http.MethodPost, "/api/petty-cash/capitals", map[string]string{"amount": "0"}, http.StatusBadRequest, "invalid_amount"},
		{"expense on unknown capital", http.MethodPost, "/api/petty-cash/capitals/missing/expenses", map[string]string{"amount": "5"}, http.StatusNotFound, "not_found"},
		{"wrong method", http.MethodDelete, "/api/ingredients", nil, http.StatusMethodNotAllowed, "method_not_allowed"},
		{"unknown endpoint", http.MethodGet, "/api/nothing-here", nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := suite.MakeAPIRequest(tt.method, tt.path, tt.body, token)
			suite.AssertNoError(t, err)
			var env apiEnvelope
			suite.ParseJSONResponse(resp, &env)
			if resp.StatusCode != tt.status || env.Code != tt.code {
				t.Errorf("Expected %d %s, got %d %q (%s)", tt.status, tt.code, resp.StatusCode, env.Code, env.Message)
			}
		})
	}

	t.Log("✅ API error handling passed")
}

func testPages(t *testing.T, suite *TestSuite) {
	noRedirect := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := noRedirect.Get(suite.Server.URL + "/dashboard")
	suite.AssertNoError(t, err)
	resp.Body.Close()
	suite.AssertStatusCode(t, resp, http.StatusSeeOther)
	if loc := resp.Header.Get("Location"); !strings.HasSuffix(loc, "/login") {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}

	resp, err = noRedirect.Get(suite.Server.URL + "/login")
	suite.AssertNoError(t, err)
	resp.Body.Close()
	suite.AssertStatusCode(t, resp, http.StatusOK)

	t.Log("✅ Pages passed")
}
