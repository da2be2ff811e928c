package meta

import (
	"context"
	"sort"

	"nemi/internal/errs"
)

// RuleStore читает активные бизнес-правила таблицы. Никаких ретраев:
// ошибка хранилища уходит наверх как store_error.
type RuleStore struct {
	store Store
}

func NewRuleStore(s Store) *RuleStore { return &RuleStore{store: s} }

// GetRules возвращает активные правила по (таблица, операция).
// Порядок выборки здесь не важен — сортирует FilterAndSort.
func (rs *RuleStore) GetRules(ctx context.Context, operation, tableID string) ([]Rule, error) {
	rows, err := rs.store.Select(ctx, TableBusinessRule, map[string]any{
		"table":     tableID,
		"operation": operation,
		"active":    true,
	})
	if err != nil {
		return nil, errs.Store("get business rules for table "+tableID, err)
	}
	out := make([]Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, RuleFromRow(row))
	}
	return out, nil
}

// FilterAndSort отбирает правила по моменту (before/after) и сортирует по order
// по возрастанию. При равных order порядок стабилен относительно выборки,
// но полагаться на него нельзя.
func FilterAndSort(rules []Rule, when string) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.When == when {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
