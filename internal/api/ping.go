package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// PingResponseBody is the body of a liveness probe response.
type PingResponseBody struct {
	Status string `doc:"Always 'ok' when the server is up" json:"status"`
}

// PingResponse represents the wrapped API response for a liveness probe.
type PingResponse struct {
	Body PingResponseBody
}

// RegisterPingRoutes sets up the liveness probe endpoint. The coordinator
// answers the same probe it issues to backends, so a single transport
// contract covers both.
func RegisterPingRoutes(parentAPI huma.API) {
	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "ping",
			Method:      http.MethodGet,
			Path:        "/ping",
			Summary:     "Liveness probe",
			Tags:        []string{"Health"},
		},
		func(ctx context.Context, _ *struct{}) (*PingResponse, error) {
			resp := &PingResponse{}
			resp.Body.Status = "ok"
			return resp, nil
		},
	)
}
