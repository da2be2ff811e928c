package access

import (
	"context"
	"sync"

	"nemi/internal/errs"
	"nemi/internal/meta"
	"nemi/internal/script"
)

// Evaluator решает, пускать ли вызывающего к таблице.
// Таблица без активных политик открыта для всех (open-by-default);
// при наличии политик достаточно, чтобы сработала любая одна.
type Evaluator struct {
	store meta.Store
}

func NewEvaluator(s meta.Store) *Evaluator { return &Evaluator{store: s} }

// GetPolicies — активные политики таблицы.
func (e *Evaluator) GetPolicies(ctx context.Context, tableID string) ([]meta.Policy, error) {
	rows, err := e.store.Select(ctx, meta.TableAccessPolicy, map[string]any{
		"table":  tableID,
		"active": true,
	})
	if err != nil {
		return nil, errs.Store("get access policies for table "+tableID, err)
	}
	out := make([]meta.Policy, 0, len(rows))
	for _, row := range rows {
		out = append(out, meta.PolicyFromRow(row))
	}
	return out, nil
}

// policyRoles — nid'ы ролей, привязанных к политике через n_acp_role.
func (e *Evaluator) policyRoles(ctx context.Context, policyID string) ([]string, error) {
	rows, err := e.store.Select(ctx, meta.TableACPRoleM2M, map[string]any{"access_policy": policyID})
	if err != nil {
		return nil, errs.Store("get roles for policy "+policyID, err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, meta.AsString(row["role"]))
	}
	return out, nil
}

// EvaluatePolicy — true, если у пользователя есть хотя бы одна роль политики.
func (e *Evaluator) EvaluatePolicy(ctx context.Context, userID string, p meta.Policy) (bool, error) {
	roles, err := e.policyRoles(ctx, p.NID)
	if err != nil {
		return false, err
	}
	return e.UserHasAnyRole(ctx, userID, roles)
}

// AnyPolicyAllows — логическое ИЛИ по всем политикам таблицы.
// Ноль политик — доступ открыт. Политики чистые (чтение + bool),
// так что оцениваем их параллельно.
func (e *Evaluator) AnyPolicyAllows(ctx context.Context, userID, tableID string) (bool, error) {
	policies, err := e.GetPolicies(ctx, tableID)
	if err != nil {
		return false, err
	}
	if len(policies) == 0 {
		return true, nil
	}

	type result struct {
		ok  bool
		err error
	}
	results := make(chan result, len(policies))
	var wg sync.WaitGroup
	for _, p := range policies {
		wg.Add(1)
		go func(p meta.Policy) {
			defer wg.Done()
			ok, err := e.EvaluatePolicy(ctx, userID, p)
			results <- result{ok: ok, err: err}
		}(p)
	}
	wg.Wait()
	close(results)

	allowed := false
	for r := range results {
		if r.err != nil {
			return false, r.err
		}
		if r.ok {
			allowed = true
		}
	}
	return allowed, nil
}

// EnsureAccess — гейт оркестратора: стоит сразу после сборки контекста,
// до запуска правил и до любой мутации.
func (e *Evaluator) EnsureAccess(ctx context.Context, sc *script.Context) error {
	allowed, err := e.AnyPolicyAllows(ctx, sc.UserID(), sc.Table.ID)
	if err != nil {
		return err
	}
	if !allowed {
		return errs.AccessDenied("access denied: no policy on %s grants caller access", sc.Table.Name)
	}
	return nil
}
