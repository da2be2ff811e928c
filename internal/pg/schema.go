package pg

import (
	"fmt"
	"regexp"
	"strings"

	"nemi/internal/meta"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier — имена таблиц и колонок приходят из метаданных,
// поэтому перед интерполяцией в SQL пропускаем только строгие идентификаторы.
func ValidateIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier: %q", name)
	}
	return nil
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// Допустимые типы колонок динамических таблиц.
var columnTypes = map[string]string{
	"integer":   "bigint",
	"string":    "varchar(255)",
	"text":      "text",
	"boolean":   "boolean",
	"reference": "uuid",
}

func ValidColumnType(t string) bool { _, ok := columnTypes[t]; return ok }

// системные колонки: есть у каждой таблицы, и системной, и динамической
func systemColumns() []string {
	return []string{
		`"nid" uuid primary key default gen_random_uuid()`,
		`"created_at" timestamptz not null default current_timestamp`,
		fmt.Sprintf(`"scope" uuid references %s("nid")`, sqlIdent(meta.TableScope)),
	}
}

// CreateTableDDL генерирует DDL новой динамической таблицы: системные колонки
// плюс пользовательские. reference-колонка получает FK на nid целевой таблицы.
// Одноразовая административная операция, в рантайм-конвейер не входит.
func CreateTableDDL(tableName string, cols []meta.Column) (string, error) {
	if err := ValidateIdentifier(tableName); err != nil {
		return "", err
	}
	if isReserved(tableName) {
		return "", fmt.Errorf("table name %q is a reserved word", tableName)
	}

	parts := systemColumns()
	seen := map[string]struct{}{"nid": {}, "created_at": {}, "scope": {}}
	for _, c := range cols {
		if err := ValidateIdentifier(c.Name); err != nil {
			return "", err
		}
		nameLower := strings.ToLower(c.Name)
		if _, dup := seen[nameLower]; dup {
			return "", fmt.Errorf("%s: column %q duplicates a system or repeated column", tableName, c.Name)
		}
		seen[nameLower] = struct{}{}

		typ, ok := columnTypes[c.Type]
		if !ok {
			return "", fmt.Errorf("%s.%s: unknown column type %q", tableName, c.Name, c.Type)
		}
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), typ)
		if c.Type == "reference" {
			if c.Reference == "" {
				return "", fmt.Errorf("%s.%s: reference column needs a target table", tableName, c.Name)
			}
			if err := ValidateIdentifier(c.Reference); err != nil {
				return "", err
			}
			col += fmt.Sprintf(` references %s("nid")`, sqlIdent(c.Reference))
		}
		parts = append(parts, col)
	}

	return fmt.Sprintf("create table if not exists %s (\n  %s\n);\n",
		sqlIdent(tableName), strings.Join(parts, ",\n  ")), nil
}

// MetaDDL возвращает идемпотентный DDL системных таблиц в порядке зависимостей.
// Ключи сортируются в ApplyDDL, отсюда числовые префиксы.
func MetaDDL() map[string]string {
	ddl := make(map[string]string)

	ddl["000_user"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "username" varchar(255) not null,
  "firstname" varchar(255) not null,
  "middlename" varchar(255),
  "lastname" varchar(255) not null,
  "gender" varchar(255) not null,
  "email" varchar(255) not null,
  "password" varchar(255) not null,
  "designation" varchar(255),
  "active" boolean default true
);
`, sqlIdent(meta.TableUser))

	ddl["010_scope"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "name" varchar(255) not null,
  "label" varchar(255) not null,
  "version" varchar(255) not null,
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableScope), sqlIdent(meta.TableUser))

	ddl["020_table"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "name" varchar(255) not null,
  "label" varchar(255) not null,
  "scope" uuid references %s("nid") on delete cascade,
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableTables), sqlIdent(meta.TableScope), sqlIdent(meta.TableUser))

	ddl["030_column"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "table" uuid references %s("nid") on delete cascade,
  "scope" uuid references %s("nid") on delete cascade,
  "name" varchar(255) not null,
  "type" varchar(255) not null,
  "label" varchar(255) not null,
  "reference" varchar(255),
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableColumns), sqlIdent(meta.TableTables), sqlIdent(meta.TableScope), sqlIdent(meta.TableUser))

	ddl["040_business_rule"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "name" varchar(255) not null,
  "table" uuid references %s("nid") on delete cascade,
  "scope" uuid references %s("nid") on delete cascade,
  "script" text not null,
  "when" varchar(255) not null,
  "operation" varchar(255) not null,
  "order" integer not null,
  "active" boolean default true,
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableBusinessRule), sqlIdent(meta.TableTables), sqlIdent(meta.TableScope), sqlIdent(meta.TableUser))

	ddl["050_script_module"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "scope" uuid references %s("nid") on delete cascade,
  "name" varchar(255) not null,
  "script" text not null,
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableScriptModule), sqlIdent(meta.TableScope), sqlIdent(meta.TableUser))

	ddl["060_role"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "scope" uuid references %s("nid") on delete cascade,
  "name" varchar(255) not null,
  "description" varchar(255) not null,
  "label" varchar(255) not null,
  "contains" uuid references %s("nid") on delete set null,
  "active" boolean default true,
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableRole), sqlIdent(meta.TableScope), sqlIdent(meta.TableRole), sqlIdent(meta.TableUser))

	ddl["070_user_role"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "scope" uuid references %s("nid") on delete cascade,
  "user" uuid references %s("nid") on delete cascade,
  "role" uuid references %s("nid") on delete cascade
);
`, sqlIdent(meta.TableUserRoleM2M), sqlIdent(meta.TableScope), sqlIdent(meta.TableUser), sqlIdent(meta.TableRole))

	ddl["080_access_policy"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "scope" uuid references %s("nid") on delete cascade,
  "table" uuid references %s("nid") on delete cascade,
  "column" uuid references %s("nid") on delete cascade,
  "script" text not null,
  "active" boolean default true,
  "created_by" uuid references %s("nid") on delete set null
);
`, sqlIdent(meta.TableAccessPolicy), sqlIdent(meta.TableScope), sqlIdent(meta.TableTables), sqlIdent(meta.TableColumns), sqlIdent(meta.TableUser))

	ddl["090_acp_role"] = fmt.Sprintf(`create table if not exists %s (
  "nid" uuid primary key default gen_random_uuid(),
  "created_at" timestamptz not null default current_timestamp,
  "scope" uuid references %s("nid") on delete cascade,
  "access_policy" uuid references %s("nid") on delete cascade,
  "role" uuid references %s("nid") on delete cascade
);
`, sqlIdent(meta.TableACPRoleM2M), sqlIdent(meta.TableScope), sqlIdent(meta.TableAccessPolicy), sqlIdent(meta.TableRole))

	return ddl
}
