package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nemi/internal/errs"
	"nemi/internal/memstore"
	"nemi/internal/meta"
)

// fixture поднимает конвейер над памятью с таблицей task и пользователем u1.
func fixture(t *testing.T) (*Pipeline, *memstore.Store) {
	t.Helper()
	gw := memstore.New()
	ctx := context.Background()

	_, err := gw.Insert(ctx, meta.TableTables, map[string]any{"nid": "t1", "name": "task", "label": "Task"})
	require.NoError(t, err)
	_, err = gw.Insert(ctx, meta.TableUser, map[string]any{"nid": "u1", "username": "alice"})
	require.NoError(t, err)

	return NewPipeline(gw), gw
}

func addRule(t *testing.T, gw *memstore.Store, name, when, op string, order int, script string) {
	t.Helper()
	_, err := gw.Insert(context.Background(), meta.TableBusinessRule, map[string]any{
		"table": "t1", "name": name, "when": when, "operation": op,
		"order": order, "active": true, "script": script,
	})
	require.NoError(t, err)
}

func TestCreateRunsBeforeRule(t *testing.T) {
	p, gw := fixture(t)
	addRule(t, gw, "default status", meta.WhenBefore, meta.OpInsert, 100, `current.status = "new"`)

	sc, err := p.Create(context.Background(), "u1", "task", map[string]any{"title": "write tests"})
	require.NoError(t, err)

	nid := meta.AsString(sc.Current.Get("nid"))
	require.NotEmpty(t, nid)
	assert.True(t, sc.Current.Frozen("nid"))

	row, err := gw.SelectOne(context.Background(), "task", nid)
	require.NoError(t, err)
	assert.Equal(t, "write tests", meta.AsString(row["title"]))
	assert.Equal(t, "new", meta.AsString(row["status"]))
	assert.NotNil(t, row["created_at"])
	assert.Equal(t, meta.GlobalScope, meta.AsString(row["scope"]))
}

func TestCreateComputedField(t *testing.T) {
	p, gw := fixture(t)
	addRule(t, gw, "sum", meta.WhenBefore, meta.OpInsert, 1, "current.total = current.a + current.b")

	sc, err := p.Create(context.Background(), "u1", "task", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)

	row, err := gw.SelectOne(context.Background(), "task", meta.AsString(sc.Current.Get("nid")))
	require.NoError(t, err)
	assert.Equal(t, 5, meta.AsInt(row["total"]))
}

func TestCreateEmptyValuesRejected(t *testing.T) {
	p, _ := fixture(t)

	_, err := p.Create(context.Background(), "u1", "task", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestCreateUnknownTable(t *testing.T) {
	p, _ := fixture(t)

	_, err := p.Create(context.Background(), "u1", "ghost", map[string]any{"x": 1})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestUpdateRunsRulesInOrder(t *testing.T) {
	p, gw := fixture(t)
	// вставляем в обратном порядке: сортировка по order всё расставит
	addRule(t, gw, "bump", meta.WhenBefore, meta.OpUpdate, 200, "current.x = current.x + 1")
	addRule(t, gw, "seed", meta.WhenBefore, meta.OpUpdate, 100, "current.x = 1")

	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1", "title": "t"})
	require.NoError(t, err)

	sc, err := p.Update(context.Background(), "u1", "task", "rec1", map[string]any{"title": "t2"})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.AsInt(sc.Current.Get("x")))

	row, err := gw.SelectOne(context.Background(), "task", "rec1")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.AsInt(row["x"]))
	assert.Equal(t, "t2", meta.AsString(row["title"]))
}

func TestUpdateCannotTouchSystemProperties(t *testing.T) {
	p, gw := fixture(t)
	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1", "scope": "s-orig"})
	require.NoError(t, err)

	sc, err := p.Update(context.Background(), "u1", "task", "rec1", map[string]any{
		"scope": "s-evil", "title": "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "s-orig", meta.AsString(sc.Current.Get("scope")))

	row, err := gw.SelectOne(context.Background(), "task", "rec1")
	require.NoError(t, err)
	assert.Equal(t, "s-orig", meta.AsString(row["scope"]))
	assert.Equal(t, "ok", meta.AsString(row["title"]))
}

func TestGetWritesBack(t *testing.T) {
	p, gw := fixture(t)
	addRule(t, gw, "mark viewed", meta.WhenBefore, meta.OpQuery, 100, "current.viewed = true")

	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1", "title": "t"})
	require.NoError(t, err)

	sc, err := p.Get(context.Background(), "u1", "task", "rec1")
	require.NoError(t, err)
	assert.Equal(t, true, sc.Current.Get("viewed"))

	// эффект before-правила долговечен: чтение записало запись обратно
	row, err := gw.SelectOne(context.Background(), "task", "rec1")
	require.NoError(t, err)
	assert.Equal(t, true, row["viewed"])
}

func TestAfterRuleEffectNotPersisted(t *testing.T) {
	p, gw := fixture(t)
	addRule(t, gw, "decorate", meta.WhenAfter, meta.OpQuery, 100, `current.banner = "hi"`)

	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1"})
	require.NoError(t, err)

	sc, err := p.Get(context.Background(), "u1", "task", "rec1")
	require.NoError(t, err)
	assert.Equal(t, "hi", meta.AsString(sc.Current.Get("banner")))

	row, err := gw.SelectOne(context.Background(), "task", "rec1")
	require.NoError(t, err)
	assert.Nil(t, row["banner"])
}

func TestScriptFaultDoesNotAbortPipeline(t *testing.T) {
	p, gw := fixture(t)
	addRule(t, gw, "broken", meta.WhenBefore, meta.OpUpdate, 100, "current.x = boom(")
	addRule(t, gw, "fine", meta.WhenBefore, meta.OpUpdate, 200, "current.y = 7")

	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1"})
	require.NoError(t, err)

	sc, err := p.Update(context.Background(), "u1", "task", "rec1", map[string]any{"title": "t"})
	require.NoError(t, err)
	assert.Nil(t, sc.Current.Get("x"))
	assert.Equal(t, 7, meta.AsInt(sc.Current.Get("y")))
}

func TestDeleteThenDeleteAgain(t *testing.T) {
	p, gw := fixture(t)
	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1", "title": "t"})
	require.NoError(t, err)

	sc, err := p.Delete(context.Background(), "u1", "task", "rec1")
	require.NoError(t, err)
	// контекст несёт последнее состояние удалённой записи
	assert.Equal(t, "t", meta.AsString(sc.Current.Get("title")))

	_, err = gw.SelectOne(context.Background(), "task", "rec1")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = p.Delete(context.Background(), "u1", "task", "rec1")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestAccessDeniedHaltsBeforeRulesAndWrites(t *testing.T) {
	p, gw := fixture(t)
	ctx := context.Background()

	// активная политика с ролью, которой у пользователя нет
	_, err := gw.Insert(ctx, meta.TableAccessPolicy, map[string]any{"nid": "p1", "table": "t1", "active": true})
	require.NoError(t, err)
	_, err = gw.Insert(ctx, meta.TableACPRoleM2M, map[string]any{"access_policy": "p1", "role": "admin"})
	require.NoError(t, err)

	addRule(t, gw, "side effect", meta.WhenBefore, meta.OpUpdate, 100, "current.touched = true")
	_, err = gw.Insert(ctx, "task", map[string]any{"nid": "rec1", "title": "t"})
	require.NoError(t, err)

	_, err = p.Update(ctx, "u1", "task", "rec1", map[string]any{"title": "t2"})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	row, err := gw.SelectOne(ctx, "task", "rec1")
	require.NoError(t, err)
	assert.Equal(t, "t", meta.AsString(row["title"]))
	assert.Nil(t, row["touched"])
}

func TestAccessGrantedThroughRole(t *testing.T) {
	p, gw := fixture(t)
	ctx := context.Background()

	_, err := gw.Insert(ctx, meta.TableAccessPolicy, map[string]any{"nid": "p1", "table": "t1", "active": true})
	require.NoError(t, err)
	_, err = gw.Insert(ctx, meta.TableACPRoleM2M, map[string]any{"access_policy": "p1", "role": "editor"})
	require.NoError(t, err)
	_, err = gw.Insert(ctx, meta.TableUserRoleM2M, map[string]any{"user": "u1", "role": "editor"})
	require.NoError(t, err)

	_, err = gw.Insert(ctx, "task", map[string]any{"nid": "rec1"})
	require.NoError(t, err)

	_, err = p.Get(ctx, "u1", "task", "rec1")
	require.NoError(t, err)
}

func TestUnknownCallerRejected(t *testing.T) {
	p, gw := fixture(t)
	_, err := gw.Insert(context.Background(), "task", map[string]any{"nid": "rec1"})
	require.NoError(t, err)

	_, err = p.Get(context.Background(), "ghost", "task", "rec1")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}
