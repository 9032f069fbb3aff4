package api

import (
	"net/http"

	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/api/openapi"
)

// =============================================================================
// OpenAPI Registration
// =============================================================================

// newSpecGenerator builds the OpenAPI generator with every public
// operation registered.
func newSpecGenerator() *openapi.Generator {
	g := openapi.NewGenerator(
		openapi.WithTitle("Fordon API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Swedish vehicle registry lookup service."),
		openapi.WithServer("/"),
	)

	regnrParam := openapi.Param{
		Name:        "regnr",
		In:          "path",
		Required:    true,
		Type:        "string",
		Description: "Vehicle registration number",
	}
	refreshParam := openapi.Param{
		Name:        "refresh",
		In:          "query",
		Type:        "boolean",
		Description: "Bypass the cache and fetch fresh data",
	}

	g.RegisterOperation(openapi.OperationInfo{
		ID:         "getVehicle",
		Summary:    "Look up a vehicle by registration number",
		Tag:        "vehicles",
		Path:       "/api/v1/vehicles/{regnr}",
		Params:     []openapi.Param{regnrParam, refreshParam},
		Model:      vehicle.Vehicle{},
		SchemaName: "Vehicle",
	})
	g.RegisterOperation(openapi.OperationInfo{
		ID:         "getVehicleOwner",
		Summary:    "Look up the owner of a vehicle",
		Tag:        "vehicles",
		Path:       "/api/v1/vehicles/{regnr}/owner",
		Params:     []openapi.Param{regnrParam, refreshParam},
		Model:      vehicle.OwnerLookup{},
		SchemaName: "OwnerLookup",
	})
	g.RegisterOperation(openapi.OperationInfo{
		ID:         "getAddressVehicles",
		Summary:    "List vehicles registered at the owner's address",
		Tag:        "vehicles",
		Path:       "/api/v1/vehicles/{regnr}/address-vehicles",
		Params:     []openapi.Param{regnrParam, refreshParam},
		Model:      vehicle.AddressVehicles{},
		SchemaName: "AddressVehicles",
	})
	g.RegisterOperation(openapi.OperationInfo{
		ID:      "getProfile",
		Summary: "Look up an owner profile by ID",
		Tag:     "profiles",
		Path:    "/api/v1/profiles/{id}",
		Params: []openapi.Param{
			{
				Name:        "id",
				In:          "path",
				Required:    true,
				Type:        "string",
				Description: "Owner profile ID",
			},
			refreshParam,
		},
		Model:      vehicle.OwnerProfile{},
		SchemaName: "OwnerProfile",
	})
	g.RegisterOperation(openapi.OperationInfo{
		ID:      "listLookups",
		Summary: "List recent lookups",
		Tag:     "lookups",
		Path:    "/api/v1/lookups",
		Params: []openapi.Param{
			{Name: "limit", In: "query", Type: "integer", Description: "Page size"},
			{Name: "offset", In: "query", Type: "integer", Description: "Page offset"},
		},
		Model:      ListLookupsResponse{},
		SchemaName: "ListLookupsResponse",
	})

	return g
}

// =============================================================================
// Docs Page
// =============================================================================

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>Fordon API</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <script id="api-reference" data-url="/openapi.json"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>
`

func (h *Handler) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(docsPage)); err != nil {
		h.logger.Error("failed to write docs page", "error", err)
	}
}
