package model

// CurriculumEntry は学習計画の1科目を表す。
type CurriculumEntry struct {
	Code    string `json:"codigo"`
	Subject string `json:"espacio"`
	Regime  string `json:"regimen"`
}

// Program はcarrerasコレクションに保存されるカリキュラムを表す。
// JSONキーは保存済みドキュメントとの互換性のためスペイン語のまま扱う。
type Program struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"titulo"`
	Duration    string            `json:"duracion"`
	Description string            `json:"descripcion"`
	Modality    string            `json:"modalidad"`
	Shifts      []string          `json:"turnos"`
	KeyInfo     []string          `json:"informacionClave"`
	Tasks       []string          `json:"tareas"`
	Curriculum  []CurriculumEntry `json:"planDeEstudios"`
	Image       string            `json:"imagen,omitempty"`
}

// ProgramSummary は一覧画面に表示するカリキュラムの要約。
type ProgramSummary struct {
	ID       string `json:"id"`
	Title    string `json:"titulo"`
	Duration string `json:"duracion"`
	Image    string `json:"imagen,omitempty"`
}

// Summary は一覧表示用の要約を返す。
func (p *Program) Summary() ProgramSummary {
	return ProgramSummary{
		ID:       p.ID,
		Title:    p.Title,
		Duration: p.Duration,
		Image:    p.Image,
	}
}
