package service

import (
	"context"
	"strings"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

type ISearcher interface {
	Search(ctx context.Context, req retrieval.SearchRequest) ([]*model.SearchResult, error)
}

type IVehicleFilter interface {
	FilterFor(ctx context.Context, userID, vehicleID string) (model.VehicleInfo, error)
}

type SearchQuery struct {
	Query     string
	Car       string
	VehicleID string
	Filter    model.VehicleInfo
	Limit     int
}

type SearchOutcome struct {
	Results []*model.SearchResult `json:"results"`
	Context string                `json:"context"`
	Filter  model.VehicleInfo     `json:"filter"`
}

type SearchService struct {
	engine   ISearcher
	vehicles IVehicleFilter
	usage    IUsageRecorder
}

func NewSearchService(engine ISearcher, vehicles IVehicleFilter, usage IUsageRecorder) *SearchService {
	return &SearchService{engine: engine, vehicles: vehicles, usage: usage}
}

// Search queries the user's collection and the shared manuals. A saved vehicle
// wins over explicit fields, which win over the free-form car string.
func (s *SearchService) Search(ctx context.Context, userID string, q SearchQuery) (*SearchOutcome, error) {
	filter, err := s.resolveFilter(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	results, err := s.engine.Search(ctx, retrieval.SearchRequest{
		Query:  q.Query,
		UserID: userID,
		Filter: filter,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Query) != "" {
		s.usage.RecordAfter(ctx, userID, model.ActionDocumentSearch, map[string]interface{}{
			"results": len(results),
		})
	}
	return &SearchOutcome{
		Results: results,
		Context: retrieval.BuildContext(results),
		Filter:  filter,
	}, nil
}

func (s *SearchService) resolveFilter(ctx context.Context, userID string, q SearchQuery) (model.VehicleInfo, error) {
	if id := strings.TrimSpace(q.VehicleID); id != "" && s.vehicles != nil {
		return s.vehicles.FilterFor(ctx, userID, id)
	}
	filter := retrieval.ParseVehicle(q.Car)
	explicit := retrieval.NormalizeFilter(q.Filter)
	if explicit.Make != "" {
		filter.Make = explicit.Make
	}
	if explicit.Model != "" {
		filter.Model = explicit.Model
	}
	if explicit.Year != 0 {
		filter.Year = explicit.Year
	}
	return retrieval.NormalizeFilter(filter), nil
}
