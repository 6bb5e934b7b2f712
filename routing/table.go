package routing

import (
	"sort"

	"cosproxy/logger"
)

// Table - неизменяемое отображение бакет -> BackendDescriptor.
// Строится один раз при старте, после чего безопасна для чтения из любых горутин.
type Table struct {
	entries       map[string]BackendDescriptor
	defaultSuffix string
}

// NewTable строит таблицу из упорядоченного списка записей.
// При повторе имени бакета побеждает последняя запись.
func NewTable(entries []Entry, defaultSuffix string) *Table {
	t := &Table{
		entries:       make(map[string]BackendDescriptor, len(entries)),
		defaultSuffix: defaultSuffix,
	}
	for _, e := range entries {
		if _, exists := t.entries[e.Bucket]; exists {
			logger.Warn("Duplicate routing entry for bucket %s, using host %s", e.Bucket, e.Host)
		}
		t.entries[e.Bucket] = BackendDescriptor{
			Host:       e.Host,
			Port:       e.Port,
			InstanceID: e.InstanceID,
			APIKeyRef:  e.APIKeyRef,
		}
	}
	return t
}

// NewTableFromConfig строит таблицу из секции конфигурации
func NewTableFromConfig(cfg *Config) *Table {
	return NewTable(cfg.Buckets, cfg.DefaultDomain)
}

// Resolve возвращает дескриптор бакета. Промах - штатная ситуация.
func (t *Table) Resolve(bucket string) (BackendDescriptor, bool) {
	d, ok := t.entries[bucket]
	return d, ok
}

// PeerHost возвращает хост бэкенда для бакета:
// хост из таблицы или <bucket>.<defaultSuffix> при промахе
func (t *Table) PeerHost(bucket string) string {
	if d, ok := t.entries[bucket]; ok {
		return d.Host
	}
	return bucket + "." + t.defaultSuffix
}

// Authority возвращает имя хоста в стиле virtual-hosted: <bucket>.<host>.
// Для бакетов вне таблицы хост уже содержит имя бакета.
func (t *Table) Authority(bucket string) string {
	if d, ok := t.entries[bucket]; ok {
		return bucket + "." + d.Host
	}
	return bucket + "." + t.defaultSuffix
}

// Buckets возвращает отсортированный список бакетов таблицы
func (t *Table) Buckets() []string {
	buckets := make([]string, 0, len(t.entries))
	for b := range t.entries {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	return buckets
}

// Len возвращает количество бакетов в таблице
func (t *Table) Len() int {
	return len(t.entries)
}

// DefaultSuffix возвращает домен для бакетов вне таблицы
func (t *Table) DefaultSuffix() string {
	return t.defaultSuffix
}
