package program

import "github.com/hitoshi/campus/internal/model"

// 書き込み操作の種別
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ConfirmationFor は書き込み操作の実行前に求める確認を返す。
func ConfirmationFor(op string) *model.APIError {
	switch op {
	case OpCreate:
		return model.NewConfirmationRequiredError("Confirmar", "¿Agregar la nueva carrera?", "Agregar")
	case OpUpdate:
		return model.NewConfirmationRequiredError("Guardar cambios", "¿Guardar los cambios?", "Guardar")
	default:
		return model.NewConfirmationRequiredError("Eliminar", "¿Seguro que querés eliminar esta carrera?", "Eliminar")
	}
}

// ResultDialog は書き込み成功時のダイアログを返す。
func ResultDialog(op string) *model.Dialog {
	switch op {
	case OpCreate:
		return model.NewSuccessDialog("Listo", "Carrera agregada.")
	case OpUpdate:
		return model.NewSuccessDialog("Guardado", "Cambios guardados.")
	default:
		return model.NewSuccessDialog("Eliminado", "Carrera eliminada.")
	}
}
