package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ojamals/mcpregd/internal/contracts"
	"github.com/ojamals/mcpregd/internal/domain"
	apperrors "github.com/ojamals/mcpregd/internal/errors"
)

// ServerHealth is the monitor's view of a single backend, including records
// that are no longer routable.
type ServerHealth struct {
	Name           string     `doc:"Server name"                              json:"name"`
	State          string     `doc:"Current liveness state"                   json:"state"`
	Latency        *string    `doc:"Round-trip of the last successful probe"  json:"latency,omitempty"`
	LastChecked    *time.Time `doc:"Time of the last probe"                   json:"lastChecked,omitempty"`
	LastSuccessful *time.Time `doc:"Time of the last successful probe"        json:"lastSuccessful,omitempty"`
	LastHeartbeat  *time.Time `doc:"Time of the last accepted heartbeat"      json:"lastHeartbeat,omitempty"`
	UnhealthySince *time.Time `doc:"Time the server became unhealthy"         json:"unhealthySince,omitempty"`
	ExpiredAt      *time.Time `doc:"Time the server expired"                  json:"expiredAt,omitempty"`
}

// HealthResponse represents the response for all tracked servers' health.
type HealthResponse struct {
	Body []ServerHealth
}

// ServerHealthRequest represents the incoming API request for one server's
// health.
type ServerHealthRequest struct {
	Name string `doc:"Name of the server" example:"filesystem" path:"name"`
}

// ServerHealthResponse represents the response for one server's health.
type ServerHealthResponse struct {
	Body ServerHealth
}

// RegisterHealthRoutes sets up the health reporting endpoints.
func RegisterHealthRoutes(parentAPI huma.API, directory contracts.Directory) {
	tags := []string{"Health"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "listServerHealth",
			Method:      http.MethodGet,
			Path:        "/servers",
			Summary:     "Report health of all tracked servers",
			Description: "Includes registering and expired records, unlike the server listing.",
			Tags:        tags,
		},
		func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
			records := directory.List()
			out := make([]ServerHealth, 0, len(records))
			for _, rec := range records {
				out = append(out, serverHealth(rec))
			}
			return &HealthResponse{Body: out}, nil
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "getServerHealth",
			Method:      http.MethodGet,
			Path:        "/servers/{name}",
			Summary:     "Report health of a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerHealthRequest) (*ServerHealthResponse, error) {
			rec, ok := directory.Get(input.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownServer, input.Name)
			}
			return &ServerHealthResponse{Body: serverHealth(rec)}, nil
		},
	)
}

func serverHealth(rec *domain.ServerRecord) ServerHealth {
	h := ServerHealth{
		Name:           rec.Name,
		State:          string(rec.State),
		LastChecked:    rec.LastChecked,
		LastSuccessful: rec.LastSuccessful,
		UnhealthySince: rec.UnhealthySince,
		ExpiredAt:      rec.ExpiredAt,
	}
	if rec.Latency != nil {
		s := rec.Latency.String()
		h.Latency = &s
	}
	if !rec.LastHeartbeat.IsZero() {
		hb := rec.LastHeartbeat
		h.LastHeartbeat = &hb
	}
	return h
}
