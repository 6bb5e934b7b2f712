package auth

import (
	"fmt"
	"strings"
)

// ParseCredentialHeader разбирает заголовок вида
//
//	AWS4-HMAC-SHA256 Credential=AK/20240101/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-date, Signature=...
//
// Обязательно только поле Credential, содержащее "/" после ключа доступа.
func ParseCredentialHeader(header string) (CredentialScope, error) {
	content, ok := strings.CutPrefix(header, "AWS4-HMAC-SHA256 ")
	if !ok {
		return CredentialScope{}, ErrUnrecognizedScheme
	}

	var scope CredentialScope
	var credential string
	var found bool
	for _, part := range strings.Split(content, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "Credential="):
			credential = strings.TrimPrefix(part, "Credential=")
			found = true
		case strings.HasPrefix(part, "SignedHeaders="):
			if v := strings.TrimPrefix(part, "SignedHeaders="); v != "" {
				scope.SignedHeaders = strings.Split(v, ";")
			}
		case strings.HasPrefix(part, "Signature="):
			scope.Signature = strings.TrimPrefix(part, "Signature=")
		}
	}
	if !found {
		return CredentialScope{}, fmt.Errorf("%w: no Credential field", ErrTokenExtractionFailed)
	}

	accessKey, rest, ok := strings.Cut(credential, "/")
	if !ok {
		return CredentialScope{}, fmt.Errorf("%w: credential has no scope", ErrTokenExtractionFailed)
	}
	scope.AccessKey = accessKey

	fields := strings.SplitN(rest, "/", 4)
	targets := []*string{&scope.Date, &scope.Region, &scope.Service, &scope.Terminator}
	for i, f := range fields {
		*targets[i] = f
	}
	return scope, nil
}
