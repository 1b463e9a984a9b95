// Package runners holds the task types the gateway can execute.
package runners

import (
	"context"
	"encoding/json"
	"time"

	fitnessModels "fitgate/internal/fitness/models"
	"fitgate/internal/fitness/service"
	"fitgate/internal/task/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

// TypeFitnessAnalysis aggregates an athlete's recent training week by week.
const TypeFitnessAnalysis = "fitness_analysis"

const week = 7 * 24 * time.Hour

type AnalysisInput struct {
	AthleteID string `json:"athlete_id,omitempty" jsonschema:"athlete to analyse; required for client callers"`
	Days      int    `json:"days,omitempty" jsonschema:"length of the window in days, 1 to 365, default 28"`
}

type AnalysisResult struct {
	AthleteID string                  `json:"athlete_id"`
	Days      int                     `json:"days"`
	Total     fitnessModels.Summary   `json:"total"`
	Weekly    []fitnessModels.Summary `json:"weekly"`
}

type Fitness interface {
	ActivityWindow(ctx context.Context, auth id.AuthContext, athleteID string, days int) (service.Window, error)
}

// Analysis runs fitness_analysis tasks with the identity of the task owner.
type Analysis struct {
	fitness Fitness
}

func NewAnalysis(fitness Fitness) *Analysis {
	return &Analysis{fitness: fitness}
}

func (a *Analysis) Run(ctx context.Context, task *models.Task) (json.RawMessage, error) {
	var in AnalysisInput
	if err := json.Unmarshal(task.Input, &in); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid analysis input")
	}
	if in.Days == 0 {
		in.Days = service.DefaultSummaryDays
	}
	if in.Days < 1 || in.Days > service.MaxSummaryDays {
		return nil, dErrors.New(dErrors.CodeValidation, "days must be between 1 and 365")
	}

	auth := id.AuthContext{
		TenantID:      task.TenantID,
		PrincipalID:   task.OwnerID,
		PrincipalKind: task.OwnerKind,
		ClientID:      task.ClientID,
	}
	// Windows end at task creation so a retry reports the same weeks.
	ctx = requestcontext.WithTime(ctx, task.CreatedAt)

	window, err := a.fitness.ActivityWindow(ctx, auth, in.AthleteID, in.Days)
	if err != nil {
		return nil, err
	}

	res := AnalysisResult{
		AthleteID: in.AthleteID,
		Days:      in.Days,
		Total:     fitnessModels.Summarize(window.Activities, window.From, window.To),
		Weekly:    []fitnessModels.Summary{},
	}
	if res.AthleteID == "" {
		res.AthleteID = task.OwnerID
	}
	// Newest week first; the oldest may be partial.
	for to := window.To; to.After(window.From); to = to.Add(-week) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from := to.Add(-week)
		if from.Before(window.From) {
			from = window.From
		}
		res.Weekly = append(res.Weekly, fitnessModels.Summarize(window.Activities, from, to))
	}

	out, err := json.Marshal(res)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode analysis")
	}
	return out, nil
}
