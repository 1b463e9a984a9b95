// Package a2a serves the agent-to-agent methods on /a2a: task creation and
// tracking, plus the shared tool set under the A2A visibility rules.
package a2a

import (
	"context"
	"encoding/json"
	"log/slog"

	"fitgate/internal/jsonrpc"
	"fitgate/internal/mcp"
	"fitgate/internal/task/models"
	"fitgate/internal/tools"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

const (
	ProtocolVersion  = "0.3.0"
	defaultListLimit = 20
)

type Tasks interface {
	Create(ctx context.Context, auth id.AuthContext, taskType string, input json.RawMessage) (*models.Task, error)
	Get(ctx context.Context, auth id.AuthContext, taskID id.TaskID) (*models.Task, error)
	List(ctx context.Context, auth id.AuthContext, f models.Filter) ([]*models.Task, error)
	Cancel(ctx context.Context, auth id.AuthContext, taskID id.TaskID) (*models.Task, error)
}

type ServerInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Server struct {
	tasks    Tasks
	tools    mcp.Tools
	policies mcp.Policies
	info     ServerInfo
	logger   *slog.Logger
	methods  []string
}

func New(tasks Tasks, tools mcp.Tools, policies mcp.Policies, info ServerInfo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{tasks: tasks, tools: tools, policies: policies, info: info, logger: logger}
}

// Register installs the A2A method table on d. The a2a/ prefixed names are
// aliases kept for older agents.
func (s *Server) Register(d *jsonrpc.Dispatcher) {
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: s.initialize}, "a2a/initialize")
	s.handle(d, jsonrpc.Method{Handler: s.createTask}, "tasks/create", "tasks/send", "a2a/tasks/create")
	s.handle(d, jsonrpc.Method{Handler: s.sendMessage}, "message/send", "a2a/message/send")
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: s.getTask}, "tasks/get", "a2a/tasks/get")
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: s.listTasks}, "tasks/list", "a2a/tasks/list")
	// Cancelling is allowed while suspended so running work can be stopped.
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: s.cancelTask}, "tasks/cancel", "a2a/tasks/cancel")
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: s.listTools}, "tools/list", "a2a/tools/list")
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: s.callTool}, "tools/call", "a2a/tools/call")
	s.handle(d, jsonrpc.Method{ReadOnly: true, Handler: ping}, "ping")
}

func (s *Server) handle(d *jsonrpc.Dispatcher, m jsonrpc.Method, names ...string) {
	for _, name := range names {
		d.Handle(name, m)
	}
	s.methods = append(s.methods, names[0])
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
	Capabilities    []string   `json:"capabilities"`
}

func (s *Server) initialize(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[initializeParams](params)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "a2a session initialized",
		"tenant_id", auth.TenantID,
		"client_name", p.ClientInfo.Name,
		"requested_version", p.ProtocolVersion,
	)
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      s.info,
		Capabilities:    append([]string(nil), s.methods...),
	}, nil
}

type createTaskParams struct {
	TaskType string          `json:"task_type" validate:"required"`
	Input    json.RawMessage `json:"input,omitempty"`
}

func (s *Server) createTask(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[createTaskParams](params)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, auth, p.TaskType, p.Input)
}

func (s *Server) create(ctx context.Context, auth id.AuthContext, taskType string, input json.RawMessage) (*models.Task, error) {
	if !auth.HasScope(id.ScopeTasksWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "scope tasks:write is required")
	}
	task, err := s.tasks.Create(ctx, auth, taskType, input)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "task created",
		"tenant_id", auth.TenantID,
		"task_id", task.ID.String(),
		"task_type", task.Type,
		"status", task.Status,
	)
	return task, nil
}

// Message is an agent message. A data part carrying task_type starts a
// task; its remaining fields are the task input.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts" validate:"required,min=1"`
}

type Part struct {
	Kind string          `json:"kind,omitempty"`
	Type string          `json:"type,omitempty"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sendMessageParams struct {
	Message Message `json:"message" validate:"required"`
}

func (s *Server) sendMessage(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[sendMessageParams](params)
	if err != nil {
		return nil, err
	}
	taskType, input, ok := taskRequest(p.Message)
	if !ok {
		return nil, jsonrpc.InvalidParams("message has no data part with a task_type")
	}
	return s.create(ctx, auth, taskType, input)
}

func taskRequest(m Message) (string, json.RawMessage, bool) {
	for _, part := range m.Parts {
		if part.Kind != "data" && part.Type != "data" {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(part.Data, &fields); err != nil {
			continue
		}
		var taskType string
		if err := json.Unmarshal(fields["task_type"], &taskType); err != nil || taskType == "" {
			continue
		}
		delete(fields, "task_type")
		input, err := json.Marshal(fields)
		if err != nil {
			continue
		}
		return taskType, input, true
	}
	return "", nil, false
}

type taskParams struct {
	TaskID string `json:"task_id" validate:"required"`
}

func (s *Server) taskID(params json.RawMessage) (id.TaskID, error) {
	p, err := jsonrpc.DecodeParams[taskParams](params)
	if err != nil {
		return id.TaskID{}, err
	}
	taskID, err := id.ParseTaskID(p.TaskID)
	if err != nil {
		return id.TaskID{}, dErrors.New(dErrors.CodeNotFound, "task not found")
	}
	return taskID, nil
}

func (s *Server) getTask(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	taskID, err := s.taskID(params)
	if err != nil {
		return nil, err
	}
	return s.tasks.Get(ctx, auth, taskID)
}

func (s *Server) cancelTask(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	taskID, err := s.taskID(params)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.Cancel(ctx, auth, taskID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "task cancel requested",
		"tenant_id", auth.TenantID,
		"task_id", task.ID.String(),
		"status", task.Status,
	)
	return task, nil
}

type listTasksParams struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

type ListTasksResult struct {
	Tasks []*models.Task `json:"tasks"`
	Total int            `json:"total"`
	Limit int            `json:"limit"`
}

func (s *Server) listTasks(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[listTasksParams](params)
	if err != nil {
		return nil, err
	}
	f := models.Filter{Limit: p.Limit}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if p.Status != "" {
		status, err := models.ParseStatus(p.Status)
		if err != nil {
			return nil, jsonrpc.InvalidParams("unknown task status: " + p.Status)
		}
		f.Status = status
	}
	tasks, err := s.tasks.List(ctx, auth, f)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return ListTasksResult{Tasks: tasks, Total: len(tasks), Limit: f.Limit}, nil
}

func (s *Server) listTools(ctx context.Context, auth id.AuthContext, _ json.RawMessage) (any, error) {
	p, err := s.policies.For(ctx, auth.TenantID, tools.ProtocolA2A)
	if err != nil {
		return nil, err
	}
	return mcp.ListToolsResult{Tools: s.tools.List(p)}, nil
}

type callToolParams struct {
	Name      string          `json:"name" validate:"required"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (s *Server) callTool(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[callToolParams](params)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.For(ctx, auth.TenantID, tools.ProtocolA2A)
	if err != nil {
		return nil, err
	}
	result, err := s.tools.Call(ctx, auth, policy, p.Name, p.Arguments)
	if err != nil {
		return nil, err
	}
	return mcp.ToolResult(result)
}

func ping(context.Context, id.AuthContext, json.RawMessage) (any, error) {
	return struct{}{}, nil
}
