package meta

import (
	"context"

	"nemi/internal/errs"
)

// Store — минимальный контракт чтения, который нужен резолверу и стору правил.
// Его закрывают и Postgres-шлюз, и in-memory хранилище.
type Store interface {
	SelectOne(ctx context.Context, table, nid string) (map[string]any, error)
	Select(ctx context.Context, table string, eq map[string]any) ([]map[string]any, error)
}

// Resolver переводит логическое имя таблицы в её nid.
// Без кэша между запросами: после создания таблицы имя должно резолвиться сразу.
type Resolver struct {
	store Store
}

func NewResolver(s Store) *Resolver { return &Resolver{store: s} }

func (r *Resolver) ResolveTable(ctx context.Context, name string) (TableRef, error) {
	rows, err := r.store.Select(ctx, TableTables, map[string]any{"name": name})
	if err != nil {
		return TableRef{}, errs.Store("resolve table "+name, err)
	}
	if len(rows) == 0 {
		return TableRef{}, errs.NotFound("table %q not found in %s", name, TableTables)
	}
	return TableRef{ID: AsString(rows[0]["nid"]), Name: name}, nil
}

// Columns возвращает метаданные колонок таблицы (для meta-эндпоинтов).
func (r *Resolver) Columns(ctx context.Context, tableID string) ([]Column, error) {
	rows, err := r.store.Select(ctx, TableColumns, map[string]any{"table": tableID})
	if err != nil {
		return nil, errs.Store("load columns for table "+tableID, err)
	}
	out := make([]Column, 0, len(rows))
	for _, row := range rows {
		out = append(out, Column{
			NID:       AsString(row["nid"]),
			TableID:   AsString(row["table"]),
			Name:      AsString(row["name"]),
			Type:      AsString(row["type"]),
			Label:     AsString(row["label"]),
			Scope:     AsString(row["scope"]),
			Reference: AsString(row["reference"]),
		})
	}
	return out, nil
}
