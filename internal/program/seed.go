package program

import (
	"context"
	"fmt"

	"github.com/hitoshi/campus/internal/model"
)

// Catalogue は初期登録するカリキュラム一覧。
var Catalogue = []model.Program{
	{Title: "Profesorado de Educación Especial", Duration: "4 años"},
	{Title: "Profesorado de Educación Primaria", Duration: "4 años"},
	{Title: "Profesorado de Inglés", Duration: "4 años"},
	{Title: "Profesorado de Educación Inicial", Duration: "4 años"},
	{Title: "Psicopedagogía", Duration: "4 años"},
	{Title: "Tecnicatura en Análisis de Sistemas", Duration: "2 años"},
}

// Seed はコレクションが空の場合に限りカタログを登録し、登録件数を返す。
func (s *Service) Seed(ctx context.Context) (int, error) {
	existing, err := s.store.List(ctx, Collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check programs: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, p := range Catalogue {
		if _, err := s.Create(ctx, p); err != nil {
			return i, fmt.Errorf("failed to seed %q: %w", p.Title, err)
		}
	}
	return len(Catalogue), nil
}
