package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

type IActionGate interface {
	Check(ctx context.Context, userID string, kind model.ActionKind) model.Decision
}

type VehicleInput struct {
	Make     string
	Model    string
	Year     int
	Engine   string
	Nickname string
}

// GarageService manages the vehicles a user asks about.
type GarageService struct {
	vehicles IVehicleStore
	quota    IActionGate
	usage    IUsageRecorder
	now      func() time.Time
}

func NewGarageService(vehicles IVehicleStore, quota IActionGate, usage IUsageRecorder) *GarageService {
	return &GarageService{vehicles: vehicles, quota: quota, usage: usage, now: time.Now}
}

func (s *GarageService) Add(ctx context.Context, userID string, in VehicleInput) (*model.Vehicle, error) {
	in.Make = strings.TrimSpace(in.Make)
	in.Model = strings.TrimSpace(in.Model)
	if in.Make == "" || in.Model == "" {
		return nil, fmt.Errorf("make and model are required: %w", appErr.ErrInvalid)
	}
	if in.Year != 0 && retrieval.NormalizeFilter(model.VehicleInfo{Year: in.Year}).Year == 0 {
		return nil, fmt.Errorf("year %d is out of range: %w", in.Year, appErr.ErrInvalid)
	}
	if decision := s.quota.Check(ctx, userID, model.ActionAddVehicle); !decision.Allowed {
		return nil, decision.Denial
	}
	vehicle := &model.Vehicle{
		ID:       newID(),
		UserID:   userID,
		Make:     in.Make,
		Model:    in.Model,
		Year:     in.Year,
		Engine:   strings.TrimSpace(in.Engine),
		Nickname: strings.TrimSpace(in.Nickname),
		Ctime:    s.now().Unix(),
	}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, appErr.Unavailable(err)
	}
	s.usage.RecordAfter(ctx, userID, model.ActionAddVehicle, map[string]interface{}{
		"vehicle_id": vehicle.ID,
	})
	return vehicle, nil
}

func (s *GarageService) List(ctx context.Context, userID string) ([]*model.Vehicle, error) {
	items, err := s.vehicles.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}
	return items, nil
}

func (s *GarageService) Get(ctx context.Context, userID, vehicleID string) (*model.Vehicle, error) {
	v, err := s.vehicles.GetByID(ctx, userID, vehicleID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, err
		}
		return nil, appErr.Unavailable(err)
	}
	return v, nil
}

func (s *GarageService) Delete(ctx context.Context, userID, vehicleID string) error {
	if err := s.vehicles.Delete(ctx, userID, vehicleID); err != nil {
		if appErr.IsNotFound(err) {
			return err
		}
		return appErr.Unavailable(err)
	}
	return nil
}

// FilterFor returns the search filter for one of the user's vehicles.
func (s *GarageService) FilterFor(ctx context.Context, userID, vehicleID string) (model.VehicleInfo, error) {
	v, err := s.Get(ctx, userID, vehicleID)
	if err != nil {
		return model.VehicleInfo{}, err
	}
	return retrieval.NormalizeFilter(v.Info()), nil
}
