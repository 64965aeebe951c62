package security

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Técnico Superior en Enfermería", "Técnico Superior en Enfermería"},
		{"前後の空白を除く", "  3 años \n", "3 años"},
		{"タグを除去する", "<b>Presencial</b>", "Presencial"},
		{"scriptを中身ごと除去する", `Turno<script>alert("x")</script> Mañana`, "Turno Mañana"},
		{"イベント属性を除去する", `<img src=x onerror="alert(1)">Texto`, "Texto"},
		{"アンパサンドを保持する", "Higiene & Seguridad", "Higiene & Seguridad"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := `<p onclick="x()">Práctica <em>profesional</em></p>`

	first := sanitizer.SanitizeText(input)
	for i := 0; i < 3; i++ {
		if got := sanitizer.SanitizeText(input); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
	if strings.Contains(first, "<") {
		t.Errorf("tags remain: %q", first)
	}
}

func TestSanitizeList_DropsEmptyItems(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeList([]string{"Mañana", " ", "<script>x</script>", "<i>Noche</i>"})
	want := []string{"Mañana", "Noche"}

	if len(got) != len(want) {
		t.Fatalf("SanitizeList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SanitizeList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
