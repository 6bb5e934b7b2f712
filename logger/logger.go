package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel представляет уровень логирования
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel парсит строку в LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO // по умолчанию INFO
	}
}

// IsValidLevel проверяет, что строка является известным уровнем логирования
func IsValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Logger представляет логгер с уровнями.
// Дочерние логгеры, созданные через With, разделяют уровень и вывод с родителем.
type Logger struct {
	level  *atomic.Int32
	logger *log.Logger
	fields string // предварительно отформатированные пары key=value
}

// New создает новый логгер с указанным уровнем
func New(level LogLevel) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput создает логгер, пишущий в указанный writer
func NewWithOutput(level LogLevel, w io.Writer) *Logger {
	l := &Logger{
		level:  &atomic.Int32{},
		logger: log.New(w, "", log.LstdFlags),
	}
	l.level.Store(int32(level))
	return l
}

// SetLevel устанавливает уровень логирования
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// GetLevel возвращает текущий уровень логирования
func (l *Logger) GetLevel() LogLevel {
	return LogLevel(l.level.Load())
}

// SetOutput перенаправляет вывод логгера (используется в тестах)
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// With возвращает дочерний логгер, который добавляет пары key=value к каждому сообщению.
// Нечетный последний аргумент игнорируется.
func (l *Logger) With(kv ...interface{}) *Logger {
	var b strings.Builder
	b.WriteString(l.fields)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, "%v=%v ", kv[i], kv[i+1])
	}
	return &Logger{
		level:  l.level,
		logger: l.logger,
		fields: b.String(),
	}
}

// logf выводит сообщение с указанным уровнем
func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if level < l.GetLevel() {
		return
	}
	prefix := "[" + level.String() + "] " + l.fields
	l.logger.Print(prefix + fmt.Sprintf(format, args...))
}

// Enabled сообщает, будет ли выведено сообщение указанного уровня
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.GetLevel()
}

// Debug выводит отладочное сообщение
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(DEBUG, format, args...)
}

// Info выводит информационное сообщение
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(INFO, format, args...)
}

// Warn выводит предупреждение
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(WARN, format, args...)
}

// Error выводит сообщение об ошибке
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(ERROR, format, args...)
}

// Глобальный логгер
var globalLogger = New(INFO)

// Global возвращает глобальный логгер
func Global() *Logger {
	return globalLogger
}

// SetGlobalLevel устанавливает уровень для глобального логгера
func SetGlobalLevel(level LogLevel) {
	globalLogger.SetLevel(level)
}

// GetGlobalLevel возвращает уровень глобального логгера
func GetGlobalLevel() LogLevel {
	return globalLogger.GetLevel()
}

// SetGlobalOutput перенаправляет вывод глобального логгера
func SetGlobalOutput(w io.Writer) {
	globalLogger.SetOutput(w)
}

// With создает дочерний логгер от глобального
func With(kv ...interface{}) *Logger {
	return globalLogger.With(kv...)
}

// Глобальные функции для удобства
func Debug(format string, args ...interface{}) {
	globalLogger.Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	globalLogger.Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	globalLogger.Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	globalLogger.Error(format, args...)
}

// Fatal выводит сообщение об ошибке и завершает процесс
func Fatal(format string, args ...interface{}) {
	globalLogger.logger.Printf("[FATAL] "+format, args...)
	os.Exit(1)
}
