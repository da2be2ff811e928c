package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"nemi/internal/auth"
	"nemi/internal/meta"
	"nemi/internal/record"
)

// Сид-каталоги: YAML-файлы со стартовыми метаданными (скоупы, пользователи,
// роли, таблицы, правила, политики). Читаются на старте и применяются через
// шлюз хранилища; существующие записи не задваиваются.

type Scope struct {
	NID     string `yaml:"nid"`
	Name    string `yaml:"name"`
	Label   string `yaml:"label"`
	Version string `yaml:"version"`
}

type User struct {
	NID       string `yaml:"nid"`
	Username  string `yaml:"username"`
	Firstname string `yaml:"firstname"`
	Lastname  string `yaml:"lastname"`
	Gender    string `yaml:"gender"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"` // в файле открытым текстом, в стор уходит bcrypt-хэш
}

type Role struct {
	NID         string `yaml:"nid"`
	Name        string `yaml:"name"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

type UserRole struct {
	User string `yaml:"user"`
	Role string `yaml:"role"`
}

type Column struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Label     string `yaml:"label"`
	Reference string `yaml:"reference,omitempty"`
}

type Table struct {
	Name    string   `yaml:"name"`
	Label   string   `yaml:"label"`
	Columns []Column `yaml:"columns"`
}

type Rule struct {
	Table     string `yaml:"table"` // логическое имя, резолвится при применении
	Name      string `yaml:"name"`
	When      string `yaml:"when"`
	Operation string `yaml:"operation"`
	Order     int    `yaml:"order"`
	Script    string `yaml:"script"`
}

type Policy struct {
	Table  string   `yaml:"table"`
	Script string   `yaml:"script"`
	Roles  []string `yaml:"roles"` // nid'ы ролей для n_acp_role
}

type Catalog struct {
	Scopes    []Scope    `yaml:"scopes"`
	Users     []User     `yaml:"users"`
	Roles     []Role     `yaml:"roles"`
	UserRoles []UserRole `yaml:"user_roles"`
	Tables    []Table    `yaml:"tables"`
	Rules     []Rule     `yaml:"rules"`
	Policies  []Policy   `yaml:"policies"`
}

// Load читает все *.yaml/*.yml из директории и склеивает в один каталог.
func Load(dir string) (*Catalog, error) {
	out := &Catalog{}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() || !(strings.HasSuffix(f.Name(), ".yaml") || strings.HasSuffix(f.Name(), ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		var c Catalog
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("seed %s: %w", f.Name(), err)
		}
		out.Scopes = append(out.Scopes, c.Scopes...)
		out.Users = append(out.Users, c.Users...)
		out.Roles = append(out.Roles, c.Roles...)
		out.UserRoles = append(out.UserRoles, c.UserRoles...)
		out.Tables = append(out.Tables, c.Tables...)
		out.Rules = append(out.Rules, c.Rules...)
		out.Policies = append(out.Policies, c.Policies...)
	}
	return out, nil
}

// Apply вливает каталог в хранилище. Повторный запуск ничего не задваивает:
// записи ищутся по естественному ключу (name/username) перед вставкой.
func (c *Catalog) Apply(ctx context.Context, gw record.Gateway) error {
	for _, s := range c.Scopes {
		if err := insertMissing(ctx, gw, meta.TableScope, map[string]any{"name": s.Name}, map[string]any{
			"nid": s.NID, "name": s.Name, "label": s.Label, "version": s.Version,
		}); err != nil {
			return err
		}
	}
	for _, u := range c.Users {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return err
		}
		if err := insertMissing(ctx, gw, meta.TableUser, map[string]any{"username": u.Username}, map[string]any{
			"nid": u.NID, "username": u.Username, "firstname": u.Firstname, "lastname": u.Lastname,
			"gender": u.Gender, "email": u.Email, "password": hash, "active": true,
		}); err != nil {
			return err
		}
	}
	for _, r := range c.Roles {
		if err := insertMissing(ctx, gw, meta.TableRole, map[string]any{"name": r.Name}, map[string]any{
			"nid": r.NID, "name": r.Name, "label": r.Label, "description": r.Description, "active": true,
		}); err != nil {
			return err
		}
	}
	for _, ur := range c.UserRoles {
		if err := insertMissing(ctx, gw, meta.TableUserRoleM2M,
			map[string]any{"user": ur.User, "role": ur.Role},
			map[string]any{"user": ur.User, "role": ur.Role},
		); err != nil {
			return err
		}
	}

	for _, t := range c.Tables {
		if _, err := registerTable(ctx, gw, t); err != nil {
			return err
		}
	}
	for _, r := range c.Rules {
		tableID, err := tableNID(ctx, gw, r.Table)
		if err != nil {
			return err
		}
		if err := insertMissing(ctx, gw, meta.TableBusinessRule,
			map[string]any{"table": tableID, "name": r.Name},
			map[string]any{
				"table": tableID, "name": r.Name, "when": r.When, "operation": r.Operation,
				"order": r.Order, "script": r.Script, "active": true,
			}); err != nil {
			return err
		}
	}
	for _, p := range c.Policies {
		tableID, err := tableNID(ctx, gw, p.Table)
		if err != nil {
			return err
		}
		rows, err := gw.Select(ctx, meta.TableAccessPolicy, map[string]any{"table": tableID, "script": p.Script})
		if err != nil {
			return err
		}
		var policyID string
		if len(rows) > 0 {
			policyID = meta.AsString(rows[0]["nid"])
		} else {
			policyID, err = gw.Insert(ctx, meta.TableAccessPolicy, map[string]any{
				"table": tableID, "script": p.Script, "active": true,
			})
			if err != nil {
				return err
			}
		}
		for _, role := range p.Roles {
			if err := insertMissing(ctx, gw, meta.TableACPRoleM2M,
				map[string]any{"access_policy": policyID, "role": role},
				map[string]any{"access_policy": policyID, "role": role},
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerTable регистрирует таблицу и её колонки в метаданных.
// Физическое создание таблицы в Postgres — забота вызывающего (DDL).
func registerTable(ctx context.Context, gw record.Gateway, t Table) (string, error) {
	rows, err := gw.Select(ctx, meta.TableTables, map[string]any{"name": t.Name})
	if err != nil {
		return "", err
	}
	var tableID string
	if len(rows) > 0 {
		tableID = meta.AsString(rows[0]["nid"])
	} else {
		tableID, err = gw.Insert(ctx, meta.TableTables, map[string]any{"name": t.Name, "label": t.Label})
		if err != nil {
			return "", err
		}
	}
	for _, col := range t.Columns {
		if err := insertMissing(ctx, gw, meta.TableColumns,
			map[string]any{"table": tableID, "name": col.Name},
			map[string]any{
				"table": tableID, "name": col.Name, "type": col.Type,
				"label": col.Label, "reference": col.Reference,
			}); err != nil {
			return "", err
		}
	}
	return tableID, nil
}

func tableNID(ctx context.Context, gw record.Gateway, name string) (string, error) {
	rows, err := gw.Select(ctx, meta.TableTables, map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("seed: table %q is not registered", name)
	}
	return meta.AsString(rows[0]["nid"]), nil
}

func insertMissing(ctx context.Context, gw record.Gateway, table string, key, values map[string]any) error {
	rows, err := gw.Select(ctx, table, key)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}
	_, err = gw.Insert(ctx, table, values)
	return err
}
