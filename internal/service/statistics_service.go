package service

import (
	"context"
	"sort"

	"backend/internal/model"
	"backend/internal/repository"
)

type UniversityStats struct {
	Universidad string  `json:"universidad"`
	Total       int     `json:"total"`
	Porcentaje  float64 `json:"porcentaje"`
}

type TitulacionStats struct {
	Universidad  string         `json:"universidad"`
	Titulacion   string         `json:"titulacion"`
	Total        int            `json:"total"`
	PorCurso     map[int]int    `json:"por_curso"`
	PorComercial map[string]int `json:"por_comercial"`
}

type StatisticsResponse struct {
	TotalContacts    int               `json:"total_contacts"`
	UniversityStats  []UniversityStats `json:"university_stats"`
	TitulacionStats  []TitulacionStats `json:"titulacion_stats"`
	UniqueComercials int               `json:"unique_comercials"`
}

// StatisticsService aggregates counts over the caller's visible subset only,
// so two users looking at the same dashboard can see different numbers.
type StatisticsService interface {
	GetStatistics(ctx context.Context, viewer *model.User, universidad string, curso *int) (*StatisticsResponse, error)
}

type statisticsService struct {
	contactRepo repository.ContactRepository
	permissions PermissionService
}

func NewStatisticsService(contactRepo repository.ContactRepository, permissions PermissionService) StatisticsService {
	return &statisticsService{contactRepo: contactRepo, permissions: permissions}
}

func (s *statisticsService) GetStatistics(ctx context.Context, viewer *model.User, universidad string, curso *int) (*StatisticsResponse, error) {
	contacts, err := s.contactRepo.ListFiltered(ctx, repository.ContactFilter{
		Universidad: universidad,
		Curso:       curso,
	})
	if err != nil {
		return nil, err
	}

	visible := make([]model.Contact, 0, len(contacts))
	for _, c := range contacts {
		if s.permissions.CanAccess(viewer, ActionView, c.ComercialID) {
			visible = append(visible, c)
		}
	}

	res := &StatisticsResponse{TotalContacts: len(visible)}

	byUniversity := make(map[string]int)
	type titKey struct{ universidad, titulacion string }
	byTitulacion := make(map[titKey]*TitulacionStats)
	comercials := make(map[string]struct{})

	for _, c := range visible {
		byUniversity[c.Universidad]++
		comercials[c.ComercialID] = struct{}{}

		key := titKey{c.Universidad, c.Titulacion}
		st, ok := byTitulacion[key]
		if !ok {
			st = &TitulacionStats{
				Universidad:  c.Universidad,
				Titulacion:   c.Titulacion,
				PorCurso:     make(map[int]int),
				PorComercial: make(map[string]int),
			}
			byTitulacion[key] = st
		}
		st.Total++
		if c.Curso != nil {
			st.PorCurso[*c.Curso]++
		}
		nombre := c.ComercialNombre
		if nombre == "" {
			nombre = "Sin asignar"
		}
		st.PorComercial[nombre]++
	}

	for universidad, total := range byUniversity {
		pct := 0.0
		if res.TotalContacts > 0 {
			pct = float64(total) / float64(res.TotalContacts) * 100
		}
		res.UniversityStats = append(res.UniversityStats, UniversityStats{
			Universidad: universidad,
			Total:       total,
			Porcentaje:  pct,
		})
	}
	sort.Slice(res.UniversityStats, func(i, j int) bool {
		return res.UniversityStats[i].Total > res.UniversityStats[j].Total
	})

	for _, st := range byTitulacion {
		res.TitulacionStats = append(res.TitulacionStats, *st)
	}
	sort.Slice(res.TitulacionStats, func(i, j int) bool {
		a, b := res.TitulacionStats[i], res.TitulacionStats[j]
		if a.Universidad != b.Universidad {
			return a.Universidad < b.Universidad
		}
		return a.Total > b.Total
	})

	res.UniqueComercials = len(comercials)
	return res, nil
}
