package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"nemi/internal/errs"
	"nemi/internal/meta"
)

// Store — in-memory реализация шлюза хранилища. Используется, когда сервер
// запущен без Postgres (dbUrl пустой), и как дублёр в тестах. Семантика та
// же, что у pg-шлюза: nid как первичный ключ, created_at/scope проставляет
// хранилище.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any // таблица -> nid -> запись
}

func New() *Store {
	return &Store{data: make(map[string]map[string]map[string]any)}
}

func (s *Store) SelectOne(ctx context.Context, table, nid string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.data[table][nid]
	if !ok {
		return nil, errs.NotFound("record not found in %s with nid %s", table, nid)
	}
	return copyRow(row), nil
}

func (s *Store) Select(ctx context.Context, table string, eq map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []map[string]any
	for _, row := range s.data[table] {
		if matches(row, eq) {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, values map[string]any) (string, error) {
	row := copyRow(values)
	nid := meta.AsString(row["nid"])
	if nid == "" {
		nid = uuid.NewString()
	}
	row["nid"] = nid
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC()
	}
	if meta.AsString(row["scope"]) == "" {
		row["scope"] = meta.GlobalScope
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[table] == nil {
		s.data[table] = make(map[string]map[string]any)
	}
	s.data[table][nid] = row
	return nid, nil
}

func (s *Store) Update(ctx context.Context, table, nid string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.data[table][nid]
	if !ok {
		return errs.NotFound("record not found in %s with nid %s", table, nid)
	}
	for k, v := range values {
		if k == "nid" {
			continue
		}
		row[k] = v
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table, nid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[table][nid]; !ok {
		return errs.NotFound("record not found in %s with nid %s", table, nid)
	}
	delete(s.data[table], nid)
	return nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// matches — равенство по строковому представлению: память хранит типы Go,
// Postgres отдаёт int64/bool, сид-файлы — то, что распарсил YAML.
func matches(row, eq map[string]any) bool {
	for k, want := range eq {
		if meta.AsString(row[k]) != meta.AsString(want) {
			return false
		}
	}
	return true
}
