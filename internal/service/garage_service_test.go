package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

func TestGarageVehicleCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	v, err := env.garage.Add(ctx, "u1", VehicleInput{Make: " BMW ", Model: "3 Series", Year: 2003, Nickname: "daily"})
	require.NoError(t, err)
	require.Equal(t, "BMW", v.Make)

	_, err = env.garage.Add(ctx, "u1", VehicleInput{Make: "Honda", Model: "Civic"})
	var denied *model.PolicyDenied
	require.True(t, errors.As(err, &denied))
	require.Contains(t, denied.Reason(), "1/1")

	env.setTier(t, "u1", model.TierGearhead)
	_, err = env.garage.Add(ctx, "u1", VehicleInput{Make: "Honda", Model: "Civic"})
	require.NoError(t, err)

	items, err := env.garage.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestGarageValidationAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.garage.Add(ctx, "u1", VehicleInput{Make: "BMW"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = env.garage.Add(ctx, "u1", VehicleInput{Make: "BMW", Model: "M3", Year: 1700})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	v, err := env.garage.Add(ctx, "u1", VehicleInput{Make: "BMW", Model: "M3", Year: 2008})
	require.NoError(t, err)
	filter, err := env.garage.FilterFor(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, model.VehicleInfo{Make: "BMW", Model: "M3", Year: 2008}, filter)

	_, err = env.garage.FilterFor(ctx, "u2", v.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.NoError(t, env.garage.Delete(ctx, "u1", v.ID))
	require.ErrorIs(t, env.garage.Delete(ctx, "u1", v.ID), appErr.ErrNotFound)
}
