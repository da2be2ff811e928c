package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nemi/internal/errs"
	"nemi/internal/meta"
)

func TestInsertGeneratesDefaults(t *testing.T) {
	s := New()
	ctx := context.Background()

	nid, err := s.Insert(ctx, "task", map[string]any{"title": "t"})
	require.NoError(t, err)
	require.NotEmpty(t, nid)

	row, err := s.SelectOne(ctx, "task", nid)
	require.NoError(t, err)
	assert.NotNil(t, row["created_at"])
	assert.Equal(t, meta.GlobalScope, meta.AsString(row["scope"]))
}

func TestInsertHonorsProvidedNid(t *testing.T) {
	s := New()
	nid, err := s.Insert(context.Background(), "task", map[string]any{"nid": "fixed", "title": "t"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", nid)
}

func TestSelectMatchesAcrossTypes(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "task", map[string]any{"nid": "a", "order": 100, "active": true})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "task", map[string]any{"nid": "b", "order": 200, "active": false})
	require.NoError(t, err)

	// фильтр строкой против значения-int: сравнение по строковому представлению
	rows, err := s.Select(ctx, "task", map[string]any{"order": "100", "active": true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", meta.AsString(rows[0]["nid"]))
}

func TestRowsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "task", map[string]any{"nid": "a", "title": "orig"})
	require.NoError(t, err)

	row, err := s.SelectOne(ctx, "task", "a")
	require.NoError(t, err)
	row["title"] = "mutated"

	again, err := s.SelectOne(ctx, "task", "a")
	require.NoError(t, err)
	assert.Equal(t, "orig", meta.AsString(again["title"]))
}

func TestUpdateMissing(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), "task", "nope", map[string]any{"x": 1})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestDeleteMissing(t *testing.T) {
	s := New()
	err := s.Delete(context.Background(), "task", "nope")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestUpdateDoesNotChangeNid(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "task", map[string]any{"nid": "a"})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, "task", "a", map[string]any{"nid": "b", "title": "t"}))
	row, err := s.SelectOne(ctx, "task", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", meta.AsString(row["nid"]))
}
