package meta

import (
	"fmt"
	"strconv"
	"time"
)

// Имена системных таблиц. Всё остальное — пользовательские (динамические) таблицы,
// но контракт хранилища для них один и тот же.
const (
	TableScope        = "nemi_scope"
	TableUser         = "nemi_user"
	TableTables       = "nemi_table"
	TableColumns      = "nemi_column"
	TableBusinessRule = "nemi_business_rule"
	TableAccessPolicy = "nemi_access_policy"
	TableRole         = "nemi_role"
	TableScriptModule = "nemi_script_module"
	TableUserRoleM2M  = "n_user_role"
	TableACPRoleM2M   = "n_acp_role"
)

// GlobalScope — nid глобального скоупа, в него попадает всё, что создано без явного скоупа.
const GlobalScope = "1e20142e-b83c-4dd7-0000-c535c20dd392"

// TableRef — идентичность таблицы внутри одного вызова конвейера.
type TableRef struct {
	ID   string
	Name string
}

// Rule — бизнес-правило: скрипт, привязанный к таблице, моменту (before/after)
// и операции. Рантайм их только читает.
type Rule struct {
	NID       string
	Name      string
	TableID   string
	Scope     string
	Script    string
	When      string
	Operation string
	Order     int
	Active    bool
}

const (
	WhenBefore = "before"
	WhenAfter  = "after"
)

const (
	OpQuery  = "query"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Policy — политика доступа к таблице; роли привязаны через n_acp_role.
type Policy struct {
	NID    string
	Scope  string
	Table  string
	Column string
	Script string
	Active bool
}

// Column — метаданные колонки динамической таблицы.
type Column struct {
	NID       string
	TableID   string
	Name      string
	Type      string // integer | string | text | boolean | reference
	Label     string
	Scope     string
	Reference string // целевая таблица для type=reference
}

// ===== приведение значений из строк хранилища =====
// Постгрес отдаёт int64/bool/time.Time, память и YAML — int/bool/string.

func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func AsInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func AsBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "t" || t == "1"
	case int, int32, int64:
		return AsInt(v) != 0
	default:
		return false
	}
}

// RuleFromRow собирает Rule из строки nemi_business_rule.
func RuleFromRow(row map[string]any) Rule {
	return Rule{
		NID:       AsString(row["nid"]),
		Name:      AsString(row["name"]),
		TableID:   AsString(row["table"]),
		Scope:     AsString(row["scope"]),
		Script:    AsString(row["script"]),
		When:      AsString(row["when"]),
		Operation: AsString(row["operation"]),
		Order:     AsInt(row["order"]),
		Active:    AsBool(row["active"]),
	}
}

// PolicyFromRow собирает Policy из строки nemi_access_policy.
func PolicyFromRow(row map[string]any) Policy {
	return Policy{
		NID:    AsString(row["nid"]),
		Scope:  AsString(row["scope"]),
		Table:  AsString(row["table"]),
		Column: AsString(row["column"]),
		Script: AsString(row["script"]),
		Active: AsBool(row["active"]),
	}
}
