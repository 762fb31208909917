package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsAggregateVisibleSubsetOnly(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	stats := NewStatisticsService(f.repo, f.permissions)
	ctx := context.Background()

	curso2 := 2
	require.NoError(t, f.repo.Create(ctx, &model.Contact{
		Nombre: "Laura", Universidad: "UCM", Titulacion: "ADE", Curso: &curso2,
		ComercialID: marcos.ID.String(), ComercialNombre: marcos.Nombre,
	}))
	require.NoError(t, f.repo.Create(ctx, &model.Contact{
		Nombre: "Eva", Universidad: "UCM", Titulacion: "ADE",
		ComercialID: marcos.ID.String(), ComercialNombre: marcos.Nombre,
	}))
	require.NoError(t, f.repo.Create(ctx, &model.Contact{
		Nombre: "Pedro", Universidad: "UAM", Titulacion: "Derecho",
		ComercialID: adrian.ID.String(), ComercialNombre: adrian.Nombre,
	}))

	// The admin aggregates over everything.
	adminStats, err := stats.GetStatistics(ctx, f.admin, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, adminStats.TotalContacts)
	assert.Equal(t, 2, adminStats.UniqueComercials)
	require.Len(t, adminStats.UniversityStats, 2)
	// Sorted by total, largest first.
	assert.Equal(t, "UCM", adminStats.UniversityStats[0].Universidad)
	assert.Equal(t, 2, adminStats.UniversityStats[0].Total)
	assert.InDelta(t, 66.6, adminStats.UniversityStats[0].Porcentaje, 0.1)

	// A comercial aggregates their visible subset: different numbers for the
	// same dashboard.
	ownStats, err := stats.GetStatistics(ctx, marcos, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ownStats.TotalContacts)
	assert.Equal(t, 1, ownStats.UniqueComercials)
	require.Len(t, ownStats.UniversityStats, 1)
	assert.InDelta(t, 100.0, ownStats.UniversityStats[0].Porcentaje, 0.001)
}

func TestStatisticsFilters(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	f := newContactFixture(t, marcos)
	stats := NewStatisticsService(f.repo, f.permissions)
	ctx := context.Background()

	curso1, curso3 := 1, 3
	require.NoError(t, f.repo.Create(ctx, &model.Contact{
		Nombre: "Laura", Universidad: "UCM", Titulacion: "ADE", Curso: &curso1,
		ComercialID: marcos.ID.String(), ComercialNombre: marcos.Nombre,
	}))
	require.NoError(t, f.repo.Create(ctx, &model.Contact{
		Nombre: "Eva", Universidad: "UAM", Titulacion: "ADE", Curso: &curso3,
		ComercialID: marcos.ID.String(), ComercialNombre: marcos.Nombre,
	}))

	res, err := stats.GetStatistics(ctx, marcos, "UCM", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalContacts)

	res, err = stats.GetStatistics(ctx, marcos, "", &curso3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalContacts)
	require.Len(t, res.TitulacionStats, 1)
	assert.Equal(t, "UAM", res.TitulacionStats[0].Universidad)
	assert.Equal(t, 1, res.TitulacionStats[0].PorCurso[3])
	assert.Equal(t, 1, res.TitulacionStats[0].PorComercial[marcos.Nombre])
}

func TestStatisticsFallbackComercialName(t *testing.T) {
	f := newContactFixture(t)
	stats := NewStatisticsService(f.repo, f.permissions)
	ctx := context.Background()

	require.NoError(t, f.repo.Create(ctx, &model.Contact{
		Nombre: "Eva", Universidad: "UCM", Titulacion: "ADE",
		ComercialID: model.ComercialIDImport,
	}))

	res, err := stats.GetStatistics(ctx, f.admin, "", nil)
	require.NoError(t, err)
	require.Len(t, res.TitulacionStats, 1)
	assert.Equal(t, 1, res.TitulacionStats[0].PorComercial["Sin asignar"])
}
