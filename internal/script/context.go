package script

import (
	"nemi/internal/meta"
)

// ImmutableProperties — системные свойства записи. После загрузки записи
// скрипты не могут их перетереть: защита стоит на границе записи (Set),
// а не на "магии" рантайма.
var ImmutableProperties = []string{"nid", "scope", "created_at"}

// Record — запись с write-guard'ом для фиксированного набора полей.
type Record struct {
	data   map[string]any
	frozen map[string]struct{}
}

// NewRecord оборачивает данные записи. Данные копируются.
func NewRecord(data map[string]any) *Record {
	r := &Record{
		data:   make(map[string]any, len(data)),
		frozen: make(map[string]struct{}),
	}
	for k, v := range data {
		r.data[k] = v
	}
	return r
}

// FreezeSystem защищает системные свойства от записи. Вызывается для
// загруженных записей; сид для insert остаётся полностью изменяемым,
// пока стор не выдал nid.
func (r *Record) FreezeSystem() {
	for _, k := range ImmutableProperties {
		r.frozen[k] = struct{}{}
	}
}

func (r *Record) Frozen(key string) bool {
	_, ok := r.frozen[key]
	return ok
}

func (r *Record) Get(key string) any { return r.data[key] }

// Set пишет значение поля; запись в защищённое поле молча игнорируется
// (то же наблюдаемое поведение, что и незаписываемое свойство в оригинале).
func (r *Record) Set(key string, v any) bool {
	if r.Frozen(key) {
		return false
	}
	r.data[key] = v
	return true
}

// ForceSet — для самого конвейера (например, подхватить nid после insert).
// Скриптам этот путь недоступен.
func (r *Record) ForceSet(key string, v any) { r.data[key] = v }

// Merge вливает значения через guard: защищённые поля не перетираются.
func (r *Record) Merge(values map[string]any) {
	for k, v := range values {
		r.Set(k, v)
	}
}

// Map отдаёт копию данных записи.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

func (r *Record) Clone() *Record {
	out := NewRecord(r.data)
	for k := range r.frozen {
		out.frozen[k] = struct{}{}
	}
	return out
}

// Context — изменяемое состояние одного вызова конвейера. Живёт от начала
// операции до её конца, между запросами не разделяется и не сохраняется.
type Context struct {
	Current *Record
	User    map[string]any
	Table   meta.TableRef
}

func NewContext(user map[string]any, table meta.TableRef, current *Record) *Context {
	return &Context{Current: current, User: user, Table: table}
}

// Clone — копия верхнего уровня; current клонируется вместе с guard'ом.
func (c *Context) Clone() *Context {
	u := make(map[string]any, len(c.User))
	for k, v := range c.User {
		u[k] = v
	}
	return &Context{Current: c.Current.Clone(), User: u, Table: c.Table}
}

// UserID — nid пользователя из контекста.
func (c *Context) UserID() string { return meta.AsString(c.User["nid"]) }
