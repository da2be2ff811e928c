package access

import (
	"context"

	"nemi/internal/errs"
	"nemi/internal/meta"
)

// userRoleSet — nid'ы ролей пользователя из n_user_role.
// Проверка плоская: иерархия ролей (contains) сознательно не разворачивается.
func (e *Evaluator) userRoleSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := e.store.Select(ctx, meta.TableUserRoleM2M, map[string]any{"user": userID})
	if err != nil {
		return nil, errs.Store("get roles for user "+userID, err)
	}
	set := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		set[meta.AsString(row["role"])] = struct{}{}
	}
	return set, nil
}

// UserHasAnyRole — есть ли у пользователя хотя бы одна роль из списка.
func (e *Evaluator) UserHasAnyRole(ctx context.Context, userID string, roles []string) (bool, error) {
	set, err := e.userRoleSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if _, ok := set[r]; ok {
			return true, nil
		}
	}
	return false, nil
}
