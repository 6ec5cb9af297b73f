package domain

import "fmt"

// TransportError — сетевой сбой при обращении к CRM (таймаут, DNS, connection refused).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError — CRM ответил, но с ошибкой (не-2xx или success:false в конверте).
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream rejected request (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream rejected request (status %d)", e.StatusCode)
}

// ValidationError — входящая запись не проходит минимальные требования
// и пропускается без ретраев в рамках этого запуска.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Reason)
}

// PersistenceError — ошибка записи в хранилище.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigError — отсутствующий или некорректный токен/URL;
// валит весь запуск до первого обращения к CRM.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ErrSyncAlreadyRunning возвращается при попытке запустить синхронизацию,
// пока предыдущая ещё не завершилась.
var ErrSyncAlreadyRunning = fmt.Errorf("sync run already in progress")
