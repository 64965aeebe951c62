package i18n

// english はスペイン語の文言に対する英語訳。
var english = map[string]string{
	// ボタン
	"Aceptar":         "OK",
	"Cancelar":        "Cancel",
	"Agregar":         "Add",
	"Guardar":         "Save",
	"Eliminar":        "Delete",
	"Cerrar sesión":   "Sign out",
	"Confirmar":       "Confirm",
	"Guardar cambios": "Save changes",

	// タイトル
	"Error":            "Error",
	"Aviso":            "Notice",
	"Listo":            "Done",
	"Éxito":            "Success",
	"Guardado":         "Saved",
	"Eliminado":        "Deleted",
	"Correo enviado":   "Email sent",
	"Correo inválido":  "Invalid email",
	"Contraseña débil": "Weak password",
	"Foto inválida":    "Invalid photo",
	"Imagen inválida":  "Invalid image",
	"Sesión cerrada":   "Signed out",

	// メッセージ
	"Todos los campos son obligatorios":                                           "All fields are required",
	"Completá todos los campos.":                                                  "Fill in all the fields.",
	"Ingresá un correo electrónico válido.":                                       "Enter a valid email address.",
	"Usá un correo @gmail.com o @hotmail.com.":                                    "Use a @gmail.com or @hotmail.com address.",
	"La contraseña debe tener mínimo 6 caracteres, una mayúscula y una minúscula": "The password must have at least 6 characters, one uppercase and one lowercase letter",
	"Las contraseñas no coinciden":                                                "Passwords do not match",
	"Correo o contraseña incorrectos.":                                            "Incorrect email or password.",
	"El correo ya está registrado":                                                "The email is already registered",
	"Ya hay un registro en curso.":                                                "A registration is already in progress.",
	"El enlace para restablecer la contraseña no es válido o expiró.":             "The password reset link is invalid or has expired.",
	"No se encontró la carrera.":                                                  "The program was not found.",
	"La foto es demasiado grande.":                                                "The photo is too large.",
	"No se pudieron cargar los datos.":                                            "The data could not be loaded.",
	"Dispositivo no registrado.":                                                  "Device not registered.",
	"Esta pantalla no está disponible.":                                           "This screen is not available.",
	"Solicitud inválida.":                                                         "Invalid request.",
	"Demasiados intentos.":                                                        "Too many attempts.",
	"Ocurrió un error inesperado.":                                                "An unexpected error occurred.",
	"Inicio de sesión correcto.":                                                  "Signed in successfully.",
	"Usuario registrado correctamente":                                            "User registered successfully",
	"Tu contraseña fue actualizada.":                                              "Your password was updated.",
	"Cerraste sesión correctamente.":                                              "You signed out successfully.",
	"Datos actualizados correctamente.":                                           "Profile updated successfully.",
	"Carrera agregada.":                                                           "Program added.",
	"Cambios guardados.":                                                          "Changes saved.",
	"Carrera eliminada.":                                                          "Program deleted.",
	"¿Agregar la nueva carrera?":                                                  "Add the new program?",
	"¿Guardar los cambios?":                                                       "Save the changes?",
	"¿Seguro que querés eliminar esta carrera?":                                   "Are you sure you want to delete this program?",
	"¿Querés cerrar sesión?":                                                      "Do you want to sign out?",
	"Se ha enviado un enlace a su correo. Si su cuenta existe, recibirá las instrucciones para restablecer su contraseña. Por favor, revise su bandeja de entrada y la carpeta de spam.": "A link has been sent to your email. If your account exists, you will receive instructions to reset your password. Please check your inbox and spam folder.",

	// 対処方法
	"Completá todos los campos y volvé a intentar.":    "Fill in all the fields and try again.",
	"El título y la duración son obligatorios.":        "The title and the duration are required.",
	"Elegí una contraseña más segura.":                 "Choose a stronger password.",
	"Escribí la misma contraseña en ambos campos.":     "Type the same password in both fields.",
	"Esperá a que termine el registro actual.":         "Wait for the current registration to finish.",
	"Esperá un momento y volvé a intentar.":            "Wait a moment and try again.",
	"Iniciá sesión o recuperá tu contraseña.":          "Sign in or recover your password.",
	"Intentá nuevamente en unos minutos.":              "Try again in a few minutes.",
	"Intentá nuevamente más tarde.":                    "Try again later.",
	"Reiniciá la aplicación.":                          "Restart the application.",
	"Revisá el formato del correo.":                    "Check the email format.",
	"Revisá los datos enviados.":                       "Check the submitted data.",
	"Solicitá un nuevo correo de recuperación.":        "Request a new recovery email.",
	"Usá una URL https pública o una imagen embebida.": "Use a public https URL or an embedded image.",
	"Verificá tus datos e intentá nuevamente.":         "Check your details and try again.",
}
