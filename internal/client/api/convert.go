package api

import (
	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/pkg/api"
)

// RecordToAPI converts a record to its wire form.
func RecordToAPI(rec *models.Record) *api.Record {
	if rec == nil {
		return nil
	}
	return &api.Record{
		UpdatedAt:  rec.UpdatedAt,
		ID:         rec.ID,
		OwnerID:    rec.OwnerID,
		EntityType: rec.EntityType,
		DeviceID:   rec.DeviceID,
		Payload:    rec.Payload,
		Version:    rec.Version,
	}
}

// RecordFromAPI converts a wire record.
func RecordFromAPI(rec *api.Record) *models.Record {
	if rec == nil {
		return nil
	}
	return &models.Record{
		UpdatedAt:  rec.UpdatedAt,
		ID:         rec.ID,
		OwnerID:    rec.OwnerID,
		EntityType: rec.EntityType,
		DeviceID:   rec.DeviceID,
		Payload:    rec.Payload,
		Version:    rec.Version,
	}
}
