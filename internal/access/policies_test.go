package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nemi/internal/errs"
	"nemi/internal/meta"
	"nemi/internal/script"
)

type stubStore struct {
	tables map[string][]map[string]any
	err    error
}

func (s *stubStore) SelectOne(_ context.Context, table, nid string) (map[string]any, error) {
	for _, row := range s.tables[table] {
		if meta.AsString(row["nid"]) == nid {
			return row, nil
		}
	}
	return nil, errs.NotFound("%s: %s", table, nid)
}

func (s *stubStore) Select(_ context.Context, table string, eq map[string]any) ([]map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []map[string]any
	for _, row := range s.tables[table] {
		match := true
		for k, v := range eq {
			if meta.AsString(row[k]) != meta.AsString(v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out, nil
}

func storeWith(policies, links, userRoles []map[string]any) *stubStore {
	return &stubStore{tables: map[string][]map[string]any{
		meta.TableAccessPolicy: policies,
		meta.TableACPRoleM2M:   links,
		meta.TableUserRoleM2M:  userRoles,
	}}
}

func TestNoPoliciesMeansOpenAccess(t *testing.T) {
	e := NewEvaluator(storeWith(nil, nil, nil))

	allowed, err := e.AnyPolicyAllows(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestInactivePoliciesDoNotCount(t *testing.T) {
	e := NewEvaluator(storeWith(
		[]map[string]any{{"nid": "p1", "table": "t1", "active": false}},
		nil, nil,
	))

	allowed, err := e.AnyPolicyAllows(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAnyPolicyAllowsIsOr(t *testing.T) {
	e := NewEvaluator(storeWith(
		[]map[string]any{
			{"nid": "p1", "table": "t1", "active": true},
			{"nid": "p2", "table": "t1", "active": true},
		},
		[]map[string]any{
			{"access_policy": "p1", "role": "admin"},
			{"access_policy": "p2", "role": "editor"},
		},
		[]map[string]any{
			{"user": "u1", "role": "editor"},
		},
	))

	// admin-политика не срабатывает, editor-политика — да
	allowed, err := e.AnyPolicyAllows(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDeniedWhenNoRoleMatches(t *testing.T) {
	e := NewEvaluator(storeWith(
		[]map[string]any{{"nid": "p1", "table": "t1", "active": true}},
		[]map[string]any{{"access_policy": "p1", "role": "admin"}},
		[]map[string]any{{"user": "u1", "role": "viewer"}},
	))

	allowed, err := e.AnyPolicyAllows(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRoleCheckIsFlat(t *testing.T) {
	// у пользователя роль-"контейнер": прямого членства в admin нет,
	// и транзитивно оно не разворачивается
	e := NewEvaluator(storeWith(
		[]map[string]any{{"nid": "p1", "table": "t1", "active": true}},
		[]map[string]any{{"access_policy": "p1", "role": "admin"}},
		[]map[string]any{{"user": "u1", "role": "superadmin"}},
	))

	allowed, err := e.AnyPolicyAllows(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestStoreErrorAborts(t *testing.T) {
	e := NewEvaluator(&stubStore{err: assert.AnError})

	_, err := e.AnyPolicyAllows(context.Background(), "u1", "t1")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindStore))
}

func TestEnsureAccessDenied(t *testing.T) {
	e := NewEvaluator(storeWith(
		[]map[string]any{{"nid": "p1", "table": "t1", "active": true}},
		[]map[string]any{{"access_policy": "p1", "role": "admin"}},
		nil,
	))
	sc := script.NewContext(
		map[string]any{"nid": "u1"},
		meta.TableRef{ID: "t1", Name: "task"},
		script.NewRecord(nil),
	)

	err := e.EnsureAccess(context.Background(), sc)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))
}
