package gate

// Screen は画面名。
type Screen string

// 画面一覧
const (
	ScreenLogin          Screen = "Login"
	ScreenSignUp         Screen = "SignUp"
	ScreenForgotPassword Screen = "ForgotPassword"
	ScreenHome           Screen = "Home"
	ScreenPrograms       Screen = "Programs"
	ScreenProfile        Screen = "Profile"
	ScreenAddProgram     Screen = "AddProgram"
	ScreenEditProgram    Screen = "EditProgram"
	ScreenProgramDetail  Screen = "ProgramDetail"
)

// ScreenSet はマウントされる画面セット。
type ScreenSet string

// 画面セット
const (
	ScreenSetNone            ScreenSet = "none"
	ScreenSetUnauthenticated ScreenSet = "unauthenticated"
	ScreenSetAuthenticated   ScreenSet = "authenticated"
)

var (
	unauthenticatedScreens = []Screen{ScreenLogin, ScreenSignUp, ScreenForgotPassword}
	authenticatedScreens   = []Screen{
		ScreenHome, ScreenPrograms, ScreenProfile,
		ScreenAddProgram, ScreenEditProgram, ScreenProgramDetail,
	}
)

// Screens は画面セットに含まれる画面を表示順に返す。
func (s ScreenSet) Screens() []Screen {
	switch s {
	case ScreenSetUnauthenticated:
		return append([]Screen(nil), unauthenticatedScreens...)
	case ScreenSetAuthenticated:
		return append([]Screen(nil), authenticatedScreens...)
	default:
		return nil
	}
}

// Contains は画面が画面セットに含まれるかを返す。
func (s ScreenSet) Contains(screen Screen) bool {
	for _, sc := range s.Screens() {
		if sc == screen {
			return true
		}
	}
	return false
}

// Initial は画面セットの最初の画面を返す。空の画面セットでは空文字を返す。
func (s ScreenSet) Initial() Screen {
	screens := s.Screens()
	if len(screens) == 0 {
		return ""
	}
	return screens[0]
}

// Render はセッション状態からマウントすべき画面セットを決める。
// 初期化中は何も描画しない。抑止中はIDが存在しても未認証の画面セットのまま。
func Render(v View) ScreenSet {
	if v.Initializing {
		return ScreenSetNone
	}
	if v.Identity != nil && v.Suppression == Free {
		return ScreenSetAuthenticated
	}
	return ScreenSetUnauthenticated
}
