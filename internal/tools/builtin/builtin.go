// Package builtin registers the fitness tools served on /mcp and /a2a.
package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	fitnessModels "fitgate/internal/fitness/models"
	"fitgate/internal/fitness/service"
	taskModels "fitgate/internal/task/models"
	"fitgate/internal/task/runners"
	"fitgate/internal/tools"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

type Fitness interface {
	Athlete(ctx context.Context, auth id.AuthContext, athleteID string) (*fitnessModels.Athlete, error)
	Activities(ctx context.Context, auth id.AuthContext, athleteID string, f fitnessModels.ActivityFilter) ([]*fitnessModels.Activity, error)
	Activity(ctx context.Context, auth id.AuthContext, athleteID, activityID string) (*fitnessModels.Activity, error)
	Connections(ctx context.Context, auth id.AuthContext, athleteID string) ([]*fitnessModels.Connection, error)
	TrainingSummary(ctx context.Context, auth id.AuthContext, athleteID string, days int) (fitnessModels.Summary, error)
}

type Tasks interface {
	Create(ctx context.Context, auth id.AuthContext, taskType string, input json.RawMessage) (*taskModels.Task, error)
}

type AthleteInput struct {
	AthleteID string `json:"athlete_id,omitempty" jsonschema:"athlete to read; required for client callers, defaults to the caller for users"`
}

type ListActivitiesInput struct {
	AthleteID string `json:"athlete_id,omitempty" jsonschema:"athlete to read; required for client callers"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum activities to return, 1 to 100, default 10"`
	Before    string `json:"before,omitempty" jsonschema:"only activities that started before this RFC 3339 time"`
	Provider  string `json:"provider,omitempty" jsonschema:"only activities synced from this provider"`
}

type GetActivityInput struct {
	AthleteID  string `json:"athlete_id,omitempty" jsonschema:"athlete to read; required for client callers"`
	ActivityID string `json:"activity_id" jsonschema:"activity identifier"`
}

type TrainingSummaryInput struct {
	AthleteID string `json:"athlete_id,omitempty" jsonschema:"athlete to read; required for client callers"`
	Days      int    `json:"days,omitempty" jsonschema:"window length in days, 1 to 365, default 28"`
}

type ConnectionStatus struct {
	Provider    string     `json:"provider"`
	Connected   bool       `json:"connected"`
	Expired     bool       `json:"expired,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

type ConnectionStatusResult struct {
	Connections []ConnectionStatus `json:"connections"`
}

type ActivitiesResult struct {
	Activities []*fitnessModels.Activity `json:"activities"`
}

type TaskResult struct {
	TaskID string            `json:"task_id"`
	Status taskModels.Status `json:"status"`
}

// Register adds the fitness tools to reg. tasks may be nil, in which case
// create_analysis_task is left out.
func Register(reg *tools.Registry, fitness Fitness, tasks Tasks) error {
	defs := []tools.Definition{
		{
			Name:        "get_athlete",
			Title:       "Athlete profile",
			Description: "Returns the athlete's profile.",
			InputSchema: tools.SchemaFor[AthleteInput](),
			ReadOnly:    true,
			Scope:       id.ScopeFitnessRead,
			Handler: tools.Typed(func(ctx context.Context, auth id.AuthContext, in AthleteInput) (any, error) {
				return fitness.Athlete(ctx, auth, in.AthleteID)
			}),
		},
		{
			Name:         "get_connection_status",
			Title:        "Provider connections",
			Description:  "Reports which fitness providers the athlete has connected.",
			InputSchema:  tools.SchemaFor[AthleteInput](),
			OutputSchema: tools.SchemaFor[ConnectionStatusResult](),
			ReadOnly:     true,
			Scope:        id.ScopeFitnessRead,
			Handler:      tools.Typed(connectionStatus(fitness)),
		},
		{
			Name:         "list_activities",
			Title:        "Recent activities",
			Description:  "Lists the athlete's activities, newest first.",
			InputSchema:  listActivitiesSchema(),
			OutputSchema: tools.SchemaFor[ActivitiesResult](),
			ReadOnly:     true,
			Scope:        id.ScopeFitnessRead,
			Handler:      tools.Typed(listActivities(fitness)),
		},
		{
			Name:        "get_activity",
			Title:       "Activity detail",
			Description: "Returns a single activity.",
			InputSchema: tools.SchemaFor[GetActivityInput](),
			ReadOnly:    true,
			Scope:       id.ScopeFitnessRead,
			Handler: tools.Typed(func(ctx context.Context, auth id.AuthContext, in GetActivityInput) (any, error) {
				return fitness.Activity(ctx, auth, in.AthleteID, in.ActivityID)
			}),
		},
		{
			Name:         "get_training_summary",
			Title:        "Training summary",
			Description:  "Totals time, distance and elevation over the last days, grouped by sport.",
			InputSchema:  bounded(tools.SchemaFor[TrainingSummaryInput](), "days", 1, service.MaxSummaryDays),
			OutputSchema: tools.SchemaFor[fitnessModels.Summary](),
			ReadOnly:     true,
			Scope:        id.ScopeAnalyticsRead,
			Handler: tools.Typed(func(ctx context.Context, auth id.AuthContext, in TrainingSummaryInput) (any, error) {
				return fitness.TrainingSummary(ctx, auth, in.AthleteID, in.Days)
			}),
		},
	}
	if tasks != nil {
		defs = append(defs, tools.Definition{
			Name:         "create_analysis_task",
			Title:        "Start training analysis",
			Description:  "Queues a week-by-week training analysis and returns its task id. Poll tasks/get for the result.",
			InputSchema:  bounded(tools.SchemaFor[runners.AnalysisInput](), "days", 1, service.MaxSummaryDays),
			OutputSchema: tools.SchemaFor[TaskResult](),
			Scope:        id.ScopeTasksWrite,
			Visible:      tools.A2AOnly,
			Handler: func(ctx context.Context, auth id.AuthContext, args json.RawMessage) (any, error) {
				task, err := tasks.Create(ctx, auth, runners.TypeFitnessAnalysis, args)
				if err != nil {
					return nil, err
				}
				return TaskResult{TaskID: task.ID.String(), Status: task.Status}, nil
			},
		})
	}

	var errs []error
	for _, def := range defs {
		errs = append(errs, reg.Register(def))
	}
	return errors.Join(errs...)
}

func connectionStatus(fitness Fitness) func(context.Context, id.AuthContext, AthleteInput) (any, error) {
	return func(ctx context.Context, auth id.AuthContext, in AthleteInput) (any, error) {
		conns, err := fitness.Connections(ctx, auth, in.AthleteID)
		if err != nil {
			return nil, err
		}
		byProvider := make(map[string]*fitnessModels.Connection, len(conns))
		for _, c := range conns {
			byProvider[c.Provider] = c
		}
		now := time.Now()
		res := ConnectionStatusResult{Connections: []ConnectionStatus{}}
		for _, provider := range fitnessModels.KnownProviders() {
			status := ConnectionStatus{Provider: provider}
			if c, ok := byProvider[provider]; ok {
				connectedAt := c.ConnectedAt
				status.Connected = true
				status.Expired = c.IsExpired(now)
				status.ConnectedAt = &connectedAt
			}
			res.Connections = append(res.Connections, status)
		}
		return res, nil
	}
}

func listActivities(fitness Fitness) func(context.Context, id.AuthContext, ListActivitiesInput) (any, error) {
	return func(ctx context.Context, auth id.AuthContext, in ListActivitiesInput) (any, error) {
		f := fitnessModels.ActivityFilter{Provider: in.Provider, Limit: in.Limit}
		if in.Before != "" {
			before, err := time.Parse(time.RFC3339, in.Before)
			if err != nil {
				return nil, dErrors.New(dErrors.CodeValidation, "before must be an RFC 3339 time")
			}
			f.Before = before
		}
		activities, err := fitness.Activities(ctx, auth, in.AthleteID, f)
		if err != nil {
			return nil, err
		}
		if activities == nil {
			activities = []*fitnessModels.Activity{}
		}
		return ActivitiesResult{Activities: activities}, nil
	}
}

func listActivitiesSchema() *jsonschema.Schema {
	schema := bounded(tools.SchemaFor[ListActivitiesInput](), "limit", 1, service.MaxActivityLimit)
	if p := schema.Properties["provider"]; p != nil {
		for _, provider := range fitnessModels.KnownProviders() {
			p.Enum = append(p.Enum, provider)
		}
	}
	if p := schema.Properties["before"]; p != nil {
		p.Format = "date-time"
	}
	return schema
}

// bounded sets an inclusive numeric range on an inferred integer property.
func bounded(schema *jsonschema.Schema, property string, lo, hi float64) *jsonschema.Schema {
	if p := schema.Properties[property]; p != nil {
		p.Minimum = &lo
		p.Maximum = &hi
	}
	return schema
}
