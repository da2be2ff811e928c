package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nemi/internal/meta"
)

func testCtx(data map[string]any) *Context {
	rec := NewRecord(data)
	rec.FreezeSystem()
	return NewContext(
		map[string]any{"nid": "u1", "username": "alice"},
		meta.TableRef{ID: "t1", Name: "task"},
		rec,
	)
}

func rule(name, src string) meta.Rule {
	return meta.Rule{NID: "r-" + name, Name: name, Script: src, Active: true}
}

func TestRunAssignment(t *testing.T) {
	ctx := testCtx(map[string]any{"a": 2, "b": 3})
	out := Run(rule("sum", "current.total = current.a + current.b"), ctx)

	assert.Equal(t, 5, meta.AsInt(out.Current.Get("total")))
	// исходный контекст не затронут
	assert.Nil(t, ctx.Current.Get("total"))
}

func TestRunStatementsSeeEachOther(t *testing.T) {
	ctx := testCtx(map[string]any{})
	out := Run(rule("inc", "current.x = 1\ncurrent.x = current.x + 1"), ctx)

	assert.Equal(t, 2, meta.AsInt(out.Current.Get("x")))
}

func TestRunSkipsCommentsAndBlanks(t *testing.T) {
	src := "# заголовок\n\ncurrent.done = true\n"
	out := Run(rule("done", src), testCtx(map[string]any{}))

	assert.Equal(t, true, out.Current.Get("done"))
}

func TestRunFrozenFieldIgnored(t *testing.T) {
	ctx := testCtx(map[string]any{"nid": "n-1", "title": "old"})
	out := Run(rule("hijack", "current.nid = \"evil\"\ncurrent.title = \"new\""), ctx)

	assert.Equal(t, "n-1", meta.AsString(out.Current.Get("nid")))
	assert.Equal(t, "new", meta.AsString(out.Current.Get("title")))
	assert.True(t, out.Current.Frozen("nid"))
}

func TestRunFaultKeepsPreviousContext(t *testing.T) {
	ctx := testCtx(map[string]any{"a": 1})
	// первая строка валидна, вторая — нет: откатывается правило целиком
	out := Run(rule("broken", "current.a = 2\ncurrent.b = +++"), ctx)

	assert.Same(t, ctx, out)
	assert.Equal(t, 1, meta.AsInt(out.Current.Get("a")))
	assert.Nil(t, out.Current.Get("b"))
}

func TestRunRejectsForeignAssignment(t *testing.T) {
	ctx := testCtx(map[string]any{"name": "alice"})
	out := Run(rule("foreign", "user.name = \"mallory\""), ctx)

	assert.Same(t, ctx, out)
	assert.Equal(t, "alice", meta.AsString(out.User["username"]))
}

func TestRunBareExpression(t *testing.T) {
	out := Run(rule("note", `log("seen " + string(current.title))`), testCtx(map[string]any{"title": "x"}))
	assert.Equal(t, "x", meta.AsString(out.Current.Get("title")))
}

func TestRunComparisonIsNotAssignment(t *testing.T) {
	out := Run(rule("cmp", "current.ok = current.a == 1"), testCtx(map[string]any{"a": 1}))
	assert.Equal(t, true, out.Current.Get("ok"))
}

func TestRunChainFaultIsolation(t *testing.T) {
	rules := []meta.Rule{
		rule("first", "current.x = 1"),
		rule("bad", "current.x = nosuchfn("),
		rule("third", "current.y = current.x + 10"),
	}
	out := RunChain(rules, testCtx(map[string]any{}))

	require.NotNil(t, out)
	assert.Equal(t, 1, meta.AsInt(out.Current.Get("x")))
	assert.Equal(t, 11, meta.AsInt(out.Current.Get("y")))
}

func TestRunChainSequentialFold(t *testing.T) {
	rules := []meta.Rule{
		rule("seed", "current.x = 1"),
		rule("bump", "current.x = current.x + 1"),
	}
	out := RunChain(rules, testCtx(map[string]any{}))

	assert.Equal(t, 2, meta.AsInt(out.Current.Get("x")))
}

func TestRecordMergeRespectsGuard(t *testing.T) {
	rec := NewRecord(map[string]any{"nid": "n-1", "title": "old"})
	rec.FreezeSystem()
	rec.Merge(map[string]any{"nid": "other", "title": "new", "created_at": "now"})

	assert.Equal(t, "n-1", meta.AsString(rec.Get("nid")))
	assert.Equal(t, "new", meta.AsString(rec.Get("title")))
	assert.Nil(t, rec.Get("created_at"))
}

func TestRecordUnfrozenUntilFreeze(t *testing.T) {
	rec := NewRecord(map[string]any{})
	assert.True(t, rec.Set("scope", "s-1"))
	rec.FreezeSystem()
	assert.False(t, rec.Set("scope", "s-2"))
	assert.Equal(t, "s-1", meta.AsString(rec.Get("scope")))
}
