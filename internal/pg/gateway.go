package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"nemi/internal/errs"
)

// Gateway — Postgres-реализация шлюза хранилища. Все запросы
// параметризованы; имена таблиц и колонок проходят через проверку
// идентификатора и экранирование, потому что приходят из метаданных.
type Gateway struct {
	db *sql.DB
}

func NewGateway(db *sql.DB) *Gateway { return &Gateway{db: db} }

func (g *Gateway) SelectOne(ctx context.Context, table, nid string) (map[string]any, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, errs.Validation("%v", err)
	}
	q := fmt.Sprintf(`select * from %s where "nid" = $1`, sqlIdent(table))
	rows, err := g.db.QueryContext(ctx, q, nid)
	if err != nil {
		return nil, errs.Store("select from "+table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, errs.Store("scan "+table, err)
	}
	if len(out) == 0 {
		return nil, errs.NotFound("record not found in %s with nid %s", table, nid)
	}
	return out[0], nil
}

func (g *Gateway) Select(ctx context.Context, table string, eq map[string]any) ([]map[string]any, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, errs.Validation("%v", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "select * from %s", sqlIdent(table))
	args := make([]any, 0, len(eq))
	for i, k := range sortedKeys(eq) {
		if err := ValidateIdentifier(k); err != nil {
			return nil, errs.Validation("%v", err)
		}
		if i == 0 {
			sb.WriteString(" where ")
		} else {
			sb.WriteString(" and ")
		}
		args = append(args, eq[k])
		fmt.Fprintf(&sb, "%s = $%d", sqlIdent(k), len(args))
	}
	rows, err := g.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errs.Store("select from "+table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, errs.Store("scan "+table, err)
	}
	return out, nil
}

func (g *Gateway) Insert(ctx context.Context, table string, values map[string]any) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", errs.Validation("%v", err)
	}
	keys := sortedKeys(values)
	cols := make([]string, 0, len(keys))
	holes := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		if err := ValidateIdentifier(k); err != nil {
			return "", errs.Validation("%v", err)
		}
		cols = append(cols, sqlIdent(k))
		args = append(args, values[k])
		holes = append(holes, fmt.Sprintf("$%d", len(args)))
	}
	q := fmt.Sprintf(`insert into %s (%s) values (%s) returning "nid"`,
		sqlIdent(table), strings.Join(cols, ", "), strings.Join(holes, ", "))

	var nid string
	if err := g.db.QueryRowContext(ctx, q, args...).Scan(&nid); err != nil {
		return "", errs.Store("insert into "+table, err)
	}
	return nid, nil
}

func (g *Gateway) Update(ctx context.Context, table, nid string, values map[string]any) error {
	if err := ValidateIdentifier(table); err != nil {
		return errs.Validation("%v", err)
	}
	keys := sortedKeys(values)
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		if k == "nid" {
			continue
		}
		if err := ValidateIdentifier(k); err != nil {
			return errs.Validation("%v", err)
		}
		args = append(args, values[k])
		sets = append(sets, fmt.Sprintf("%s = $%d", sqlIdent(k), len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, nid)
	q := fmt.Sprintf(`update %s set %s where "nid" = $%d`,
		sqlIdent(table), strings.Join(sets, ", "), len(args))
	if _, err := g.db.ExecContext(ctx, q, args...); err != nil {
		return errs.Store("update "+table, err)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, table, nid string) error {
	if err := ValidateIdentifier(table); err != nil {
		return errs.Validation("%v", err)
	}
	q := fmt.Sprintf(`delete from %s where "nid" = $1`, sqlIdent(table))
	res, err := g.db.ExecContext(ctx, q, nid)
	if err != nil {
		return errs.Store("delete from "+table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("record not found in %s with nid %s", table, nid)
	}
	return nil
}

// scanRows раскладывает результат в []map: имена колонок берём из запроса,
// []byte приводим к string, чтобы наверх уходили обычные значения.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
