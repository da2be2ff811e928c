package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nemi/internal/errs"
	"nemi/internal/meta"
	"nemi/internal/pg"
)

type tableInput struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Columns []struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		Label     string `json:"label"`
		Reference string `json:"reference"`
	} `json:"columns"`
}

// POST /api/v2/table — регистрация пользовательской таблицы: строка в
// nemi_table, колонки в nemi_column и (в режиме постгреса) физический DDL.
func CreateTableHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in tableInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}

		var fieldErrs []FieldError
		if in.Name == "" {
			fieldErrs = append(fieldErrs, ferr(ErrRequired, "name", "Table name is required"))
		} else if err := pg.ValidateIdentifier(in.Name); err != nil {
			fieldErrs = append(fieldErrs, ferr(ErrTypeMismatch, "name", err.Error()))
		}
		if len(in.Columns) == 0 {
			fieldErrs = append(fieldErrs, ferr(ErrRequired, "columns", "At least one column is required"))
		}
		for _, col := range in.Columns {
			if col.Name == "" {
				fieldErrs = append(fieldErrs, ferr(ErrRequired, "columns", "Column name is required"))
				continue
			}
			if err := pg.ValidateIdentifier(col.Name); err != nil {
				fieldErrs = append(fieldErrs, ferr(ErrTypeMismatch, col.Name, err.Error()))
			}
			if !pg.ValidColumnType(col.Type) {
				fieldErrs = append(fieldErrs, ferr(ErrTypeMismatch, col.Name, "Unknown column type: "+col.Type))
			}
			if col.Type == "reference" && col.Reference == "" {
				fieldErrs = append(fieldErrs, ferr(ErrRequired, col.Name, "Reference column needs a target table"))
			}
		}
		if len(fieldErrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrs})
			return
		}

		ctx := c.Request.Context()
		if _, err := d.Resolver.ResolveTable(ctx, in.Name); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrExists, "name", "Table already exists: " + in.Name)},
			})
			return
		} else if !errs.IsKind(err, errs.KindNotFound) {
			abortWithError(c, err)
			return
		}

		cols := make([]meta.Column, 0, len(in.Columns))
		for _, col := range in.Columns {
			cols = append(cols, meta.Column{
				Name:      col.Name,
				Type:      col.Type,
				Label:     col.Label,
				Reference: col.Reference,
			})
		}

		if d.DB != nil {
			ddl, err := pg.CreateTableDDL(in.Name, cols)
			if err != nil {
				abortWithError(c, errs.Validation("table %s: %v", in.Name, err))
				return
			}
			if err := pg.ApplyDDL(d.DB, map[string]string{in.Name: ddl}); err != nil {
				abortWithError(c, errs.Store("create table "+in.Name, err))
				return
			}
		}

		tableID, err := d.Gateway.Insert(ctx, meta.TableTables, map[string]any{
			"name":  in.Name,
			"label": in.Label,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		for _, col := range cols {
			values := map[string]any{
				"table": tableID,
				"name":  col.Name,
				"type":  col.Type,
				"label": col.Label,
			}
			if col.Reference != "" {
				values["reference"] = col.Reference
			}
			if _, err := d.Gateway.Insert(ctx, meta.TableColumns, values); err != nil {
				abortWithError(c, err)
				return
			}
		}

		c.JSON(http.StatusCreated, gin.H{"table": gin.H{"id": tableID, "name": in.Name}})
	}
}

// GET /api/v2/meta — список зарегистрированных таблиц.
func MetaListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := d.Gateway.Select(c.Request.Context(), meta.TableTables, nil)
		if err != nil {
			abortWithError(c, err)
			return
		}
		tables := make([]gin.H, 0, len(rows))
		for _, row := range rows {
			tables = append(tables, gin.H{
				"id":    meta.AsString(row["nid"]),
				"name":  meta.AsString(row["name"]),
				"label": meta.AsString(row["label"]),
			})
		}
		c.JSON(http.StatusOK, gin.H{"tables": tables})
	}
}

// GET /api/v2/meta/:table — таблица с колонками.
func MetaTableHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tref, err := d.Resolver.ResolveTable(ctx, c.Param("table"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		cols, err := d.Resolver.Columns(ctx, tref.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		out := make([]gin.H, 0, len(cols))
		for _, col := range cols {
			item := gin.H{"name": col.Name, "type": col.Type, "label": col.Label}
			if col.Reference != "" {
				item["reference"] = col.Reference
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, gin.H{
			"table":   gin.H{"id": tref.ID, "name": tref.Name},
			"columns": out,
		})
	}
}
