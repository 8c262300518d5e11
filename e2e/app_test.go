package e2e

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite drives the JSON API of a running server
type E2ETestSuite struct {
	suite.Suite
	pw      *playwright.Playwright
	request playwright.APIRequestContext
}

type homeBody struct {
	Name         string  `json:"name"`
	Balance      float64 `json:"balance"`
	Transactions []struct {
		Description string  `json:"description"`
		Value       float64 `json:"value"`
		Kind        string  `json:"kind"`
		Date        string  `json:"date"`
	} `json:"transactions"`
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	if err != nil {
		suite.T().Skipf("playwright driver not available: %v", err)
	}
	suite.pw = pw

	request, err := pw.Request.NewContext(playwright.APIRequestNewContextOptions{
		BaseURL: playwright.String(appURL),
	})
	require.NoError(suite.T(), err, "could not create request context")
	suite.request = request
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.request != nil {
		suite.request.Dispose()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

func (suite *E2ETestSuite) post(path, token string, data any) playwright.APIResponse {
	opts := playwright.APIRequestContextPostOptions{Data: data}
	if token != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + token}
	}
	resp, err := suite.request.Post(path, opts)
	require.NoError(suite.T(), err, "POST %s failed", path)
	return resp
}

func (suite *E2ETestSuite) get(path, token string) playwright.APIResponse {
	opts := playwright.APIRequestContextGetOptions{}
	if token != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + token}
	}
	resp, err := suite.request.Get(path, opts)
	require.NoError(suite.T(), err, "GET %s failed", path)
	return resp
}

func (suite *E2ETestSuite) login(email, password string) string {
	resp := suite.post("/", "", map[string]string{"email": email, "password": password})
	require.Equal(suite.T(), 200, resp.Status(), "login failed")

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(suite.T(), resp.JSON(&body))
	require.NotEmpty(suite.T(), body.Token)
	return body.Token
}

func (suite *E2ETestSuite) TestSeededUserCanLogin() {
	token := suite.login(seedEmail, seedPassword)

	resp := suite.get("/", token)
	require.Equal(suite.T(), 200, resp.Status())

	var me map[string]any
	require.NoError(suite.T(), resp.JSON(&me))
	assert.Equal(suite.T(), seedName, me["name"])
	assert.Equal(suite.T(), seedEmail, me["email"])
	assert.NotContains(suite.T(), me, "password")
	assert.NotContains(suite.T(), me, "passwordHash")
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	// Register
	resp := suite.post("/cadastro", "", map[string]string{
		"name":            "Flow User",
		"email":           "flow@example.com",
		"password":        "flowpass",
		"confirmPassword": "flowpass",
	})
	require.Equal(suite.T(), 201, resp.Status(), "registration failed")

	// Same email again
	resp = suite.post("/cadastro", "", map[string]string{
		"name":            "Flow User",
		"email":           "flow@example.com",
		"password":        "flowpass",
		"confirmPassword": "flowpass",
	})
	assert.Equal(suite.T(), 409, resp.Status())

	token := suite.login("flow@example.com", "flowpass")

	// Empty ledger
	resp = suite.get("/home", token)
	require.Equal(suite.T(), 200, resp.Status())
	var home homeBody
	require.NoError(suite.T(), resp.JSON(&home))
	assert.Equal(suite.T(), "Flow User", home.Name)
	assert.Empty(suite.T(), home.Transactions)
	assert.Zero(suite.T(), home.Balance)

	// Record transactions
	resp = suite.post("/nova-transacao/input", token, map[string]any{"description": "Salary", "value": 100})
	require.Equal(suite.T(), 201, resp.Status())
	resp = suite.post("/nova-transacao/output", token, map[string]any{"description": "Groceries", "value": 30})
	require.Equal(suite.T(), 201, resp.Status())
	resp = suite.post("/nova-transacao/weird", token, map[string]any{"description": "Ignored", "value": 999})
	assert.Equal(suite.T(), 422, resp.Status())

	resp = suite.get("/home", token)
	require.Equal(suite.T(), 200, resp.Status())
	home = homeBody{}
	require.NoError(suite.T(), resp.JSON(&home))
	require.Len(suite.T(), home.Transactions, 2)
	assert.Equal(suite.T(), "Groceries", home.Transactions[0].Description)
	assert.Equal(suite.T(), "output", home.Transactions[0].Kind)
	assert.Equal(suite.T(), "Salary", home.Transactions[1].Description)
	assert.InDelta(suite.T(), 70, home.Balance, 1e-9)
}

func (suite *E2ETestSuite) TestLoginFailures() {
	resp := suite.post("/", "", map[string]string{"email": seedEmail, "password": "wrong"})
	assert.Equal(suite.T(), 401, resp.Status())

	resp = suite.post("/", "", map[string]string{"email": "ghost@example.com", "password": "whatever"})
	assert.Equal(suite.T(), 404, resp.Status())
}

func (suite *E2ETestSuite) TestProtectedRoutesRejectBadTokens() {
	for _, path := range []string{"/", "/home"} {
		resp := suite.get(path, "")
		assert.Equal(suite.T(), 401, resp.Status(), "GET %s without token", path)

		resp = suite.get(path, "not-a-real-token")
		assert.Equal(suite.T(), 401, resp.Status(), "GET %s with unknown token", path)
	}
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
