package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fitgate/internal/jsonrpc"
	jwttoken "fitgate/internal/jwt_token"
	"fitgate/internal/platform/config"
	"fitgate/pkg/platform/middleware/admin"
)

const testSeed = `
tenants:
  - name: Harbour Runners
    slug: harbour
    users:
      - email: ana@example.com
        display_name: Ana
        password: correct-horse-battery
        connections: [strava]
    clients:
      - name: Training agent
        kind: agent
        client_id: harbour-agent
        client_secret: agent-secret
        grant_types: [client_credentials]
        scope: fitness:read tasks:write
`

func testConfig() config.Server {
	return config.Server{
		Addr:            ":0",
		BaseURL:         "http://fitgate.test",
		Environment:     "test",
		RequestTimeout:  5 * time.Second,
		DispatchTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
		AdminToken:      "operator-secret",
		CleanupInterval: time.Minute,
		ShutdownTimeout: time.Second,
		Auth: config.Auth{
			JWTSigningKey:   "app-test-signing-key",
			Audience:        "fitgate",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			AuthRequestTTL:  time.Minute,
		},
		Tasks:     config.Tasks{Workers: 2, QueueSize: 16, Timeout: 5 * time.Second, PickupDelay: time.Second},
		RateLimit: config.RateLimit{RequestsPerMinute: 1000},
		Providers: config.Providers{HTTPTimeout: time.Second, FailureThreshold: 3, Cooldown: time.Second},
	}
}

// AppSuite drives the assembled gateway over HTTP with in-memory stores.
type AppSuite struct {
	suite.Suite
	cfg    config.Server
	app    *app
	srv    *httptest.Server
	cancel context.CancelFunc
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppSuite))
}

func (s *AppSuite) SetupTest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cfg = testConfig()

	a, err := build(ctx, s.cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.app = a

	path := filepath.Join(s.T().TempDir(), "seed.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(testSeed), 0o600))
	s.Require().NoError(a.seed(ctx, path))
	s.Require().NoError(a.seed(ctx, path), "seeding twice is harmless")

	go func() { _ = a.executor.Start(ctx) }()
	s.srv = httptest.NewServer(a.router)
}

func (s *AppSuite) TearDownTest() {
	s.srv.Close()
	s.cancel()
	s.app.close()
}

func (s *AppSuite) agentToken(scope string) string {
	form := url.Values{"grant_type": {"client_credentials"}, "scope": {scope}}
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("harbour-agent", "agent-secret")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		Scope       string `json:"scope"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Require().NotEmpty(body.AccessToken)
	return body.AccessToken
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonrpc.Error  `json:"error"`
}

func (s *AppSuite) call(endpoint, token, method string, params any) rpcResponse {
	payload, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+endpoint, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var out rpcResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *AppSuite) TestDiscoveryDocumentsArePublic() {
	for _, path := range []string{"/.well-known/oauth-authorization-server", "/.well-known/agent.json", "/health/live"} {
		resp, err := http.Get(s.srv.URL + path)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode, path)
	}
}

func (s *AppSuite) TestMCPListsTools() {
	token := s.agentToken("fitness:read tasks:write")

	hello := s.call("/mcp", token, "initialize", map[string]any{"protocolVersion": "2025-06-18"})
	s.Require().Nil(hello.Error)

	list := s.call("/mcp", token, "tools/list", nil)
	s.Require().Nil(list.Error)
	names := s.toolNames(list)
	s.Contains(names, "list_activities")
	s.NotContains(names, "create_analysis_task", "task tools are A2A only")

	a2aList := s.call("/a2a", token, "tools/list", nil)
	s.Require().Nil(a2aList.Error)
	s.Contains(s.toolNames(a2aList), "create_analysis_task")
}

func (s *AppSuite) toolNames(resp rpcResponse) []string {
	var tools struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	s.Require().NoError(json.Unmarshal(resp.Result, &tools))
	names := make([]string, 0, len(tools.Tools))
	for _, t := range tools.Tools {
		names = append(names, t.Name)
	}
	return names
}

// A task created over A2A reaches a terminal state through the executor.
func (s *AppSuite) TestA2ATaskLifecycle() {
	token := s.agentToken("fitness:read tasks:write")

	created := s.call("/a2a", token, "tasks/create", map[string]any{
		"task_type": "fitness_analysis",
		"input":     map[string]any{"days": 7},
	})
	s.Require().Nil(created.Error)
	var task struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(created.Result, &task))
	s.Require().NotEmpty(task.ID)

	s.Eventually(func() bool {
		got := s.call("/a2a", token, "tasks/get", map[string]any{"task_id": task.ID})
		if got.Error != nil {
			return false
		}
		var current struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(got.Result, &current); err != nil {
			return false
		}
		return current.Status == "completed" || current.Status == "failed"
	}, 10*time.Second, 50*time.Millisecond)
}

// A poll right after creation never sees a finished task.
func (s *AppSuite) TestImmediateGetIsNeverTerminal() {
	token := s.agentToken("fitness:read tasks:write")

	for range 5 {
		created := s.call("/a2a", token, "tasks/create", map[string]any{"task_type": "fitness_analysis"})
		s.Require().Nil(created.Error)
		var task struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		s.Require().NoError(json.Unmarshal(created.Result, &task))
		s.Equal("pending", task.Status)

		got := s.call("/a2a", token, "tasks/get", map[string]any{"task_id": task.ID})
		s.Require().Nil(got.Error)
		var current struct {
			Status string `json:"status"`
		}
		s.Require().NoError(json.Unmarshal(got.Result, &current))
		s.Contains([]string{"pending", "running"}, current.Status)
	}
}

func (s *AppSuite) TestTaskCreationNeedsTasksScope() {
	token := s.agentToken("fitness:read")
	resp := s.call("/a2a", token, "tasks/create", map[string]any{"task_type": "fitness_analysis"})
	s.Require().NotNil(resp.Error)
	s.Equal(jsonrpc.CodeForbidden, resp.Error.Code)
}

// Suspending a tenant blocks writes at once while reads keep working.
func (s *AppSuite) TestSuspendedTenantKeepsReadAccess() {
	token := s.agentToken("fitness:read tasks:write")

	claims, err := jwttoken.NewJWTService(s.cfg.Auth.JWTSigningKey, s.cfg.BaseURL, s.cfg.Auth.Audience, time.Hour).
		ValidateToken(token)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/admin/tenants/"+claims.TenantID+"/suspend", nil)
	s.Require().NoError(err)
	req.Header.Set(admin.TokenHeader, s.cfg.AdminToken)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	write := s.call("/a2a", token, "tasks/create", map[string]any{"task_type": "fitness_analysis"})
	s.Require().NotNil(write.Error)
	s.Equal(jsonrpc.CodeTenantSuspended, write.Error.Code)

	read := s.call("/mcp", token, "tools/list", nil)
	s.Nil(read.Error)
}
