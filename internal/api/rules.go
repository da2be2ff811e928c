package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nemi/internal/meta"
)

type ruleInput struct {
	Name      string `json:"name"`
	Script    string `json:"script"`
	When      string `json:"when"`
	Operation string `json:"operation"`
	Order     *int   `json:"order"`
	Active    *bool  `json:"active"`
}

func validWhen(w string) bool {
	return w == meta.WhenBefore || w == meta.WhenAfter
}

func validOperation(op string) bool {
	switch op {
	case meta.OpQuery, meta.OpInsert, meta.OpUpdate, meta.OpDelete:
		return true
	}
	return false
}

func (in *ruleInput) validate(isCreate bool) []FieldError {
	var out []FieldError
	if isCreate {
		if in.Name == "" {
			out = append(out, ferr(ErrRequired, "name", "Rule name is required"))
		}
		if in.Script == "" {
			out = append(out, ferr(ErrRequired, "script", "Script body is required"))
		}
	}
	if (isCreate || in.When != "") && !validWhen(in.When) {
		out = append(out, ferr(ErrTypeMismatch, "when", "Must be 'before' or 'after'"))
	}
	if (isCreate || in.Operation != "") && !validOperation(in.Operation) {
		out = append(out, ferr(ErrTypeMismatch, "operation", "Must be query, insert, update or delete"))
	}
	return out
}

// GET /api/v2/table/:table/rule — правила таблицы, как они лежат в метасхеме.
func ListRulesHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tref, err := d.Resolver.ResolveTable(ctx, c.Param("table"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		rows, err := d.Gateway.Select(ctx, meta.TableBusinessRule, map[string]any{"table": tref.ID})
		if err != nil {
			abortWithError(c, err)
			return
		}
		rules := make([]gin.H, 0, len(rows))
		for _, row := range rows {
			r := meta.RuleFromRow(row)
			rules = append(rules, gin.H{
				"nid":       r.NID,
				"name":      r.Name,
				"script":    r.Script,
				"when":      r.When,
				"operation": r.Operation,
				"order":     r.Order,
				"active":    r.Active,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"table": gin.H{"id": tref.ID, "name": tref.Name},
			"rules": rules,
		})
	}
}

// POST /api/v2/table/:table/rule
func CreateRuleHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ruleInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}
		if fieldErrs := in.validate(true); len(fieldErrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrs})
			return
		}

		ctx := c.Request.Context()
		tref, err := d.Resolver.ResolveTable(ctx, c.Param("table"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		order := 100
		if in.Order != nil {
			order = *in.Order
		}
		active := true
		if in.Active != nil {
			active = *in.Active
		}
		nid, err := d.Gateway.Insert(ctx, meta.TableBusinessRule, map[string]any{
			"name":      in.Name,
			"table":     tref.ID,
			"script":    in.Script,
			"when":      in.When,
			"operation": in.Operation,
			"order":     order,
			"active":    active,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"rule": gin.H{"nid": nid, "name": in.Name}})
	}
}

// PUT /api/v2/table/:table/rule/:nid — частичное обновление: шлём только
// присланные поля, остальное не трогаем.
func UpdateRuleHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ruleInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}
		if fieldErrs := in.validate(false); len(fieldErrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrs})
			return
		}

		ctx := c.Request.Context()
		nid := c.Param("nid")
		row, err := d.Gateway.SelectOne(ctx, meta.TableBusinessRule, nid)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if in.Name != "" {
			row["name"] = in.Name
		}
		if in.Script != "" {
			row["script"] = in.Script
		}
		if in.When != "" {
			row["when"] = in.When
		}
		if in.Operation != "" {
			row["operation"] = in.Operation
		}
		if in.Order != nil {
			row["order"] = *in.Order
		}
		if in.Active != nil {
			row["active"] = *in.Active
		}
		delete(row, "nid")
		if err := d.Gateway.Update(ctx, meta.TableBusinessRule, nid, row); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rule": gin.H{"nid": nid}})
	}
}

// DELETE /api/v2/table/:table/rule/:nid
func DeleteRuleHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		nid := c.Param("nid")
		if err := d.Gateway.Delete(c.Request.Context(), meta.TableBusinessRule, nid); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": nid})
	}
}
