package record

import "context"

// Gateway — тонкий CRUD-контракт хранилища. Один и тот же для системных
// (nemi_*) и динамических таблиц; первичный ключ везде nid.
//
// Реализации: internal/pg (Postgres) и internal/memstore (память, для
// запуска без БД и для тестов).
type Gateway interface {
	// SelectOne возвращает запись по nid; errs.NotFound, если её нет.
	SelectOne(ctx context.Context, table, nid string) (map[string]any, error)
	// Select возвращает записи, где все eq-поля равны заданным значениям.
	Select(ctx context.Context, table string, eq map[string]any) ([]map[string]any, error)
	// Insert вставляет запись и возвращает nid. Если nid в values не передан
	// (обычный путь), его генерирует хранилище; сид-данные могут задать свой.
	Insert(ctx context.Context, table string, values map[string]any) (string, error)
	// Update перезаписывает поля записи по nid.
	Update(ctx context.Context, table, nid string, values map[string]any) error
	// Delete удаляет запись; errs.NotFound, если записи уже нет.
	Delete(ctx context.Context, table, nid string) error
}
