// Package program はcarrerasコレクションに対するカリキュラムのCRUDを提供する。
package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hitoshi/campus/internal/docstore"
	"github.com/hitoshi/campus/internal/metrics"
	"github.com/hitoshi/campus/internal/model"
)

// Collection はカリキュラムを保存するコレクション名。
const Collection = "carreras"

// ImageValidator は画像参照を検証する。security.SSRFGuardServiceが実装する。
type ImageValidator interface {
	ValidateImageURL(rawURL string) error
}

// TextSanitizer は入力テキストを無害化する。security.ContentSanitizerServiceが実装する。
type TextSanitizer interface {
	SanitizeText(s string) string
	SanitizeList(items []string) []string
}

// Watcher はコレクションの一覧を購読できるストア。docstore.WatchingStoreが実装する。
type Watcher interface {
	Watch(ctx context.Context, collection string) (<-chan []docstore.Record, error)
}

// Service はカリキュラムのビジネスロジックを提供する。書き込みは後勝ち。
type Service struct {
	store     docstore.Store
	images    ImageValidator
	sanitizer TextSanitizer
	collector metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(store docstore.Store, images ImageValidator, sanitizer TextSanitizer, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		store:     store,
		images:    images,
		sanitizer: sanitizer,
		collector: collector,
	}
}

// List は全カリキュラムをタイトルのスペイン語照合順で返す。
func (s *Service) List(ctx context.Context) ([]model.Program, error) {
	records, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return decodeAll(records), nil
}

// Get はカリキュラムを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Program, error) {
	rec, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, model.NewProgramNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get program: %w", err)
	}
	return decode(*rec)
}

// Validate は書き込みを行わずに入力を検証する。確認ダイアログを出す前に使う。
func (s *Service) Validate(in model.Program) error {
	_, err := s.normalize(in)
	return err
}

// Create は入力を検証してカリキュラムを登録する。
func (s *Service) Create(ctx context.Context, in model.Program) (*model.Program, error) {
	p, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	fields, err := docstore.FromStruct(p)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, Collection, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	p.ID = id
	s.collector.RecordProgramWrite("create")
	slog.Info("program created", slog.String("program_id", id))
	return p, nil
}

// Update は既存のカリキュラムに入力をマージする。画像が空の場合は既存の画像を残す。
func (s *Service) Update(ctx context.Context, id string, in model.Program) (*model.Program, error) {
	p, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	fields, err := docstore.FromStruct(p)
	if err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, Collection, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, model.NewProgramNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to update program: %w", err)
	}
	s.collector.RecordProgramWrite("update")
	return s.Get(ctx, id)
}

// Delete はカリキュラムを削除する。存在しない場合はエラーを返す。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("failed to delete program: %w", err)
	}
	s.collector.RecordProgramWrite("delete")
	slog.Info("program deleted", slog.String("program_id", id))
	return nil
}

// Watch は一覧を購読する。ストアが購読に対応していない場合はエラーを返す。
func (s *Service) Watch(ctx context.Context) (<-chan []model.Program, error) {
	w, ok := s.store.(Watcher)
	if !ok {
		return nil, errors.New("program store does not support watching")
	}
	in, err := w.Watch(ctx, Collection)
	if err != nil {
		return nil, err
	}

	out := make(chan []model.Program, 1)
	go func() {
		defer close(out)
		for records := range in {
			select {
			case out <- decodeAll(records):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// normalize は入力を無害化し、必須項目と画像参照を検証する。
func (s *Service) normalize(in model.Program) (*model.Program, error) {
	p := &model.Program{
		Title:       s.sanitizer.SanitizeText(in.Title),
		Duration:    s.sanitizer.SanitizeText(in.Duration),
		Description: s.sanitizer.SanitizeText(in.Description),
		Modality:    s.sanitizer.SanitizeText(in.Modality),
		Shifts:      s.sanitizer.SanitizeList(in.Shifts),
		KeyInfo:     s.sanitizer.SanitizeList(in.KeyInfo),
		Tasks:       s.sanitizer.SanitizeList(in.Tasks),
		Image:       strings.TrimSpace(in.Image),
	}
	if p.Title == "" || p.Duration == "" {
		return nil, model.NewMissingProgramFieldsError()
	}

	p.Curriculum = make([]model.CurriculumEntry, 0, len(in.Curriculum))
	for _, e := range in.Curriculum {
		entry := model.CurriculumEntry{
			Code:    s.sanitizer.SanitizeText(e.Code),
			Subject: s.sanitizer.SanitizeText(e.Subject),
			Regime:  s.sanitizer.SanitizeText(e.Regime),
		}
		if entry.Subject == "" {
			continue
		}
		p.Curriculum = append(p.Curriculum, entry)
	}

	if p.Image != "" {
		if err := s.images.ValidateImageURL(p.Image); err != nil {
			return nil, model.NewInvalidImageError(err.Error())
		}
	}
	return p, nil
}

func decode(rec docstore.Record) (*model.Program, error) {
	var p model.Program
	if err := rec.Decode(&p); err != nil {
		return nil, err
	}
	p.ID = rec.ID
	return &p, nil
}

// decodeAll はレコードをカリキュラムに変換してタイトル順に並べる。読めないレコードは除外する。
func decodeAll(records []docstore.Record) []model.Program {
	programs := make([]model.Program, 0, len(records))
	for _, rec := range records {
		p, err := decode(rec)
		if err != nil {
			slog.Warn("skipping malformed program", slog.String("program_id", rec.ID), slog.String("error", err.Error()))
			continue
		}
		programs = append(programs, *p)
	}

	c := collate.New(language.Spanish, collate.IgnoreCase)
	sort.SliceStable(programs, func(i, j int) bool {
		return c.CompareString(programs[i].Title, programs[j].Title) < 0
	})
	return programs
}
