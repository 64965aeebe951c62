package model

// Profile はusersコレクションに保存される利用者プロフィールを表す。
// ドキュメントIDはIdentityのIDと一致する。
type Profile struct {
	FirstName   string  `json:"nombre"`
	LastName    string  `json:"apellido"`
	Email       string  `json:"email"`
	Phone       string  `json:"telefono"`
	DNI         string  `json:"dni"`
	Address     string  `json:"direccion"`
	PhotoBase64 *string `json:"photoBase64"`
}

// DisplayName はIDプロバイダーに設定する表示名を返す。
func (p *Profile) DisplayName() string {
	return p.FirstName + " " + p.LastName
}
