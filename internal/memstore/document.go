package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type DocumentStore struct {
	mu   sync.Mutex
	docs map[string]model.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]model.Document)}
}

func (s *DocumentStore) Create(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return appErr.ErrConflict
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok || d.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return &d, nil
}

func (s *DocumentStore) ListByUser(ctx context.Context, userID string, limit, offset uint) ([]*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Document, 0)
	for _, d := range s.docs {
		if d.UserID == userID {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime > out[j].Ctime
		}
		return out[i].ID < out[j].ID
	})
	if offset >= uint(len(out)) {
		return []*model.Document{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < uint(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (s *DocumentStore) Delete(ctx context.Context, userID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok || d.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(s.docs, docID)
	return nil
}

func (s *DocumentStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.docs {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *DocumentStore) SumSizeByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, d := range s.docs {
		if d.UserID == userID {
			total += d.SizeBytes
		}
	}
	return total, nil
}

type VehicleStore struct {
	mu       sync.Mutex
	vehicles map[string]model.Vehicle
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{vehicles: make(map[string]model.Vehicle)}
}

func (s *VehicleStore) Create(ctx context.Context, v *model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[v.ID]; ok {
		return appErr.ErrConflict
	}
	s.vehicles[v.ID] = *v
	return nil
}

func (s *VehicleStore) GetByID(ctx context.Context, userID, vehicleID string) (*model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[vehicleID]
	if !ok || v.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return &v, nil
}

func (s *VehicleStore) ListByUser(ctx context.Context, userID string) ([]*model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Vehicle, 0)
	for _, v := range s.vehicles {
		if v.UserID == userID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime < out[j].Ctime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *VehicleStore) Delete(ctx context.Context, userID, vehicleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[vehicleID]
	if !ok || v.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(s.vehicles, vehicleID)
	return nil
}

func (s *VehicleStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.vehicles {
		if v.UserID == userID {
			n++
		}
	}
	return n, nil
}
