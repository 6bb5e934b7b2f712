package apigw

import (
	"fmt"
	"strings"
)

// ParsePath разбирает путь запроса вида /<bucket>[/<key-path>].
//
// Бакет - максимальная последовательность символов до следующего "/".
// Все, что идет после бакета, возвращается без изменений (без нормализации и декодирования).
func ParsePath(path string) (ParsedPath, error) {
	if !strings.HasPrefix(path, "/") {
		return ParsedPath{}, fmt.Errorf("%w: %q does not start with '/'", ErrMalformedPath, path)
	}

	bucket, rest, hasRest := strings.Cut(path[1:], "/")
	if bucket == "" {
		return ParsedPath{}, fmt.Errorf("%w: %q has an empty bucket segment", ErrMalformedPath, path)
	}

	forwarded := "/"
	if hasRest {
		forwarded = "/" + rest
	}

	return ParsedPath{Bucket: bucket, ForwardedPath: forwarded}, nil
}
