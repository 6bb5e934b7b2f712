package auth

import "errors"

// CredentialPrefix - начало заголовка Authorization запроса, подписанного SigV4
const CredentialPrefix = "AWS4-HMAC-SHA256 Credential="

// Пользовательские ошибки для точной диагностики
var (
	// ErrEmptyHeader - заголовок Authorization отсутствует или пуст.
	ErrEmptyHeader = errors.New("header is empty")
	// ErrUnrecognizedScheme - заголовок не начинается с "AWS4-HMAC-SHA256 Credential=".
	ErrUnrecognizedScheme = errors.New("invalid header format")
	// ErrTokenExtractionFailed - не удалось разобрать поле Credential.
	ErrTokenExtractionFailed = errors.New("failed to parse token")
	// ErrEmptyToken - ключ доступа в поле Credential пуст.
	ErrEmptyToken = errors.New("token is empty")
)

// CredentialScope - разобранное содержимое заголовка Authorization SigV4.
// AccessKey и есть токен вызывающей стороны.
type CredentialScope struct {
	AccessKey     string
	Date          string
	Region        string
	Service       string
	Terminator    string
	SignedHeaders []string
	Signature     string
}

// reason возвращает метку метрики для ошибки валидации
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyHeader):
		return "empty_header"
	case errors.Is(err, ErrUnrecognizedScheme):
		return "unrecognized_scheme"
	case errors.Is(err, ErrTokenExtractionFailed):
		return "token_extraction_failed"
	case errors.Is(err, ErrEmptyToken):
		return "empty_token"
	default:
		return "error"
	}
}
