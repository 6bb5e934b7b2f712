package apigw

import (
	"encoding/xml"
	"net/http"
	"strconv"

	"cosproxy/logger"
)

// S3Error представляет структуру XML ошибки S3
type S3Error struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId,omitempty"`
}

// WriteError записывает стандартный S3 XML ответ об ошибке.
// Запросы HEAD получают только статус и заголовки.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s3Error := S3Error{
		Code:      code,
		Message:   message,
		Resource:  r.URL.Path,
		RequestID: RequestIDFromContext(r.Context()),
	}

	body, err := xml.Marshal(s3Error)
	if err != nil {
		// Если не можем создать XML, отправляем простой текстовый ответ
		http.Error(w, message, status)
		return
	}
	body = append([]byte(xml.Header), body...)

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		logger.Debug("Failed to write error body: %v", err)
	}
}
