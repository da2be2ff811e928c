package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"nemi/internal/api"
	"nemi/internal/config"
	"nemi/internal/memstore"
	"nemi/internal/meta"
	"nemi/internal/pg"
	"nemi/internal/record"
	"nemi/internal/seed"
)

func main() {
	cfg := config.LoadWithPath("config.json")

	// 1. Шлюз хранилища: постгрес по URL или память по умолчанию
	var (
		gw record.Gateway
		db *sql.DB
	)
	if cfg.DBURL != "" {
		var err error
		db, err = pg.Open(cfg.DBURL)
		if err != nil {
			log.Fatalf("Ошибка подключения к постгресу: %v", err)
		}
		if cfg.AutoMigrate {
			if err := pg.ApplyDDL(db, pg.MetaDDL()); err != nil {
				log.Fatalf("Ошибка миграции метасхемы: %v", err)
			}
		}
		gw = pg.NewGateway(db)
		fmt.Println("Хранилище: postgres")
	} else {
		gw = memstore.New()
		fmt.Println("Хранилище: память (передайте -db для постгреса)")
	}

	// 2. Сид-каталоги (директории может не быть — это не ошибка)
	if st, err := os.Stat(cfg.SeedDir); err == nil && st.IsDir() {
		catalog, err := seed.Load(cfg.SeedDir)
		if err != nil {
			log.Fatalf("Ошибка чтения сид-каталога: %v", err)
		}
		if db != nil {
			if err := applySeedDDL(db, catalog); err != nil {
				log.Fatalf("Ошибка DDL сид-таблиц: %v", err)
			}
		}
		if err := catalog.Apply(context.Background(), gw); err != nil {
			log.Fatalf("Ошибка применения сид-каталога: %v", err)
		}
		fmt.Printf("Сид-каталог применён: таблиц %d, правил %d\n", len(catalog.Tables), len(catalog.Rules))
	}

	// 3. Конвейер и REST API
	deps := &api.Deps{
		Pipeline:  record.NewPipeline(gw),
		Gateway:   gw,
		Resolver:  meta.NewResolver(gw),
		DB:        db,
		JWTSecret: cfg.JWTSecret,
	}
	fmt.Printf("Стартуем сервер Nemi на :%s...\n", cfg.Port)
	api.RunServer(":"+cfg.Port, deps)
}

// applySeedDDL создаёт физические таблицы для сид-каталога; существующие
// пропускаются на уровне ApplyDDL.
func applySeedDDL(db *sql.DB, catalog *seed.Catalog) error {
	ddl := make(map[string]string, len(catalog.Tables))
	for _, t := range catalog.Tables {
		cols := make([]meta.Column, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, meta.Column{Name: c.Name, Type: c.Type, Label: c.Label, Reference: c.Reference})
		}
		stmt, err := pg.CreateTableDDL(t.Name, cols)
		if err != nil {
			return fmt.Errorf("таблица %s: %w", t.Name, err)
		}
		ddl[t.Name] = stmt
	}
	return pg.ApplyDDL(db, ddl)
}
