package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campus/internal/middleware"
	"github.com/hitoshi/campus/internal/model"
	"github.com/hitoshi/campus/internal/program"
)

// ProgramServiceInterface はカリキュラムハンドラーが必要とするサービスインターフェース。
type ProgramServiceInterface interface {
	List(ctx context.Context) ([]model.Program, error)
	Get(ctx context.Context, id string) (*model.Program, error)
	Validate(in model.Program) error
	Create(ctx context.Context, in model.Program) (*model.Program, error)
	Update(ctx context.Context, id string, in model.Program) (*model.Program, error)
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context) (<-chan []model.Program, error)
}

// ProgramHandler はカリキュラム管理のHTTPハンドラー。
// 書き込み操作は確認済みのリクエストでのみ実行する。
type ProgramHandler struct {
	service ProgramServiceInterface
}

// NewProgramHandler はProgramHandlerを生成する。
func NewProgramHandler(service ProgramServiceInterface) *ProgramHandler {
	return &ProgramHandler{service: service}
}

// programListResponse は一覧のレスポンス。
type programListResponse struct {
	Programs []model.ProgramSummary `json:"programs"`
}

// programResponse は詳細と書き込み結果のレスポンス。
type programResponse struct {
	Program *model.Program `json:"program"`
	Dialog  *model.Dialog  `json:"dialog,omitempty"`
}

// ListPrograms はカリキュラム一覧を返す。
// GET /api/programs
func (h *ProgramHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programListResponse{Programs: summaries(programs)})
}

// GetProgram はカリキュラムの詳細を返す。
// GET /api/programs/{id}
func (h *ProgramHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programResponse{Program: p})
}

// CreateProgram はカリキュラムを登録する。
// POST /api/programs
func (h *ProgramHandler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req model.Program
	if !decodeBody(w, r, &req) {
		return
	}

	// 1. 入力の検証
	if err := h.service.Validate(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	// 2. 確認
	if !middleware.Confirmed(r) {
		handleServiceError(w, r, program.ConfirmationFor(program.OpCreate))
		return
	}

	// 3. 登録
	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, programResponse{
		Program: p,
		Dialog:  localizeDialog(r, program.ResultDialog(program.OpCreate)),
	})
}

// UpdateProgram はカリキュラムを更新する。
// PUT /api/programs/{id}
func (h *ProgramHandler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req model.Program
	if !decodeBody(w, r, &req) {
		return
	}

	// 1. 対象の存在確認と入力の検証
	if _, err := h.service.Get(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.service.Validate(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	// 2. 確認
	if !middleware.Confirmed(r) {
		handleServiceError(w, r, program.ConfirmationFor(program.OpUpdate))
		return
	}

	// 3. 更新
	p, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programResponse{
		Program: p,
		Dialog:  localizeDialog(r, program.ResultDialog(program.OpUpdate)),
	})
}

// DeleteProgram はカリキュラムを削除する。
// DELETE /api/programs/{id}
func (h *ProgramHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.service.Get(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !middleware.Confirmed(r) {
		handleServiceError(w, r, program.ConfirmationFor(program.OpDelete))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogResponse{
		Dialog: localizeDialog(r, program.ResultDialog(program.OpDelete)),
	})
}

// Events はカリキュラム一覧の変化をServer-Sent Eventsで配信する。
// 接続直後に現在の一覧を1件送る。
// GET /api/programs/events
func (h *ProgramHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := h.service.Watch(ctx)
	if err != nil {
		slog.Error("failed to watch programs", slog.String("error", err.Error()))
		handleServiceError(w, r, err)
		return
	}

	ch := make(chan programListResponse, 1)
	go func() {
		defer close(ch)
		for programs := range updates {
			latest(ch, programListResponse{Programs: summaries(programs)})
		}
	}()

	streamEvents(w, r, "programs", ch)
}

func summaries(programs []model.Program) []model.ProgramSummary {
	out := make([]model.ProgramSummary, 0, len(programs))
	for i := range programs {
		out = append(out, programs[i].Summary())
	}
	return out
}
