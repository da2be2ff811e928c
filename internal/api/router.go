package api

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"nemi/internal/auth"
	"nemi/internal/meta"
	"nemi/internal/record"
)

// Deps — всё, что нужно хендлерам. DB nil в режиме без постгреса:
// таблицы тогда живут только в метасхеме, без физического DDL.
type Deps struct {
	Pipeline  *record.Pipeline
	Gateway   record.Gateway
	Resolver  *meta.Resolver
	DB        *sql.DB
	JWTSecret string
}

func NewRouter(d *Deps) *gin.Engine {
	r := gin.Default()
	r.Use(RequestID())

	r.POST("/auth/register", RegisterHandler(d))
	r.POST("/auth/login", LoginHandler(d))

	api := r.Group("/api/v2", auth.Protect(d.JWTSecret))
	{
		// метасхема
		api.GET("/meta", MetaListHandler(d))
		api.GET("/meta/:table", MetaTableHandler(d))

		// таблицы и их правила
		api.POST("/table", CreateTableHandler(d))
		api.GET("/table/:table/rule", ListRulesHandler(d))
		api.POST("/table/:table/rule", CreateRuleHandler(d))
		api.PUT("/table/:table/rule/:nid", UpdateRuleHandler(d))
		api.DELETE("/table/:table/rule/:nid", DeleteRuleHandler(d))

		// конвейер записей
		api.POST("/record/:table", CreateRecordHandler(d.Pipeline))
		api.GET("/record/:table/:nid", GetRecordHandler(d.Pipeline))
		api.PUT("/record/:table/:nid", UpdateRecordHandler(d.Pipeline))
		api.DELETE("/record/:table/:nid", DeleteRecordHandler(d.Pipeline))
	}

	return r
}

func RunServer(addr string, d *Deps) {
	_ = NewRouter(d).Run(addr)
}
