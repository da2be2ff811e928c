package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nemi/internal/auth"
	"nemi/internal/record"
	"nemi/internal/script"
)

// recordPayload — единый вид ответа для всех операций конвейера.
func recordPayload(sc *script.Context) gin.H {
	return gin.H{
		"record": sc.Current.Map(),
		"table":  gin.H{"id": sc.Table.ID, "name": sc.Table.Name},
	}
}

// GET /api/v2/record/:table/:nid
func GetRecordHandler(p *record.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, err := p.Get(c.Request.Context(), auth.CallerID(c), c.Param("table"), c.Param("nid"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, recordPayload(sc))
	}
}

// POST /api/v2/record/:table
func CreateRecordHandler(p *record.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var values map[string]any
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}
		sc, err := p.Create(c.Request.Context(), auth.CallerID(c), c.Param("table"), values)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, recordPayload(sc))
	}
}

// PUT /api/v2/record/:table/:nid
func UpdateRecordHandler(p *record.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var values map[string]any
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}
		sc, err := p.Update(c.Request.Context(), auth.CallerID(c), c.Param("table"), c.Param("nid"), values)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, recordPayload(sc))
	}
}

// DELETE /api/v2/record/:table/:nid
func DeleteRecordHandler(p *record.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, err := p.Delete(c.Request.Context(), auth.CallerID(c), c.Param("table"), c.Param("nid"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, recordPayload(sc))
	}
}
