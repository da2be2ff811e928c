package record

import (
	"context"

	"nemi/internal/access"
	"nemi/internal/errs"
	"nemi/internal/meta"
	"nemi/internal/script"
)

// Pipeline — оркестратор динамического конвейера записей. Для любой
// пользовательской таблицы одна и та же машина состояний:
//
//	Resolve → Authorize → RunBefore → Mutate → RunAfter → Done
//
// Отказ на любом шаге обрывает остаток цепочки и уходит вызывающему.
// Уже закоммиченная мутация назад не откатывается: транзакции поверх всего
// конвейера нет, это осознанное ограничение контракта.
type Pipeline struct {
	gw       Gateway
	resolver *meta.Resolver
	rules    *meta.RuleStore
	access   *access.Evaluator
}

func NewPipeline(gw Gateway) *Pipeline {
	return &Pipeline{
		gw:       gw,
		resolver: meta.NewResolver(gw),
		rules:    meta.NewRuleStore(gw),
		access:   access.NewEvaluator(gw),
	}
}

// ===== сборка контекста =====

// loadUser — запись вызывающего из nemi_user; без неё конвейер не стартует.
func (p *Pipeline) loadUser(ctx context.Context, callerID string) (map[string]any, error) {
	return p.gw.SelectOne(ctx, meta.TableUser, callerID)
}

// buildContext собирает контекст для query/update/delete: таблица,
// пользователь и загруженная запись с защищёнными системными полями.
func (p *Pipeline) buildContext(ctx context.Context, callerID, table, nid string) (*script.Context, error) {
	tref, err := p.resolver.ResolveTable(ctx, table)
	if err != nil {
		return nil, err
	}
	user, err := p.loadUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	row, err := p.gw.SelectOne(ctx, tref.Name, nid)
	if err != nil {
		return nil, err
	}
	rec := script.NewRecord(row)
	rec.FreezeSystem()
	return script.NewContext(user, tref, rec), nil
}

// buildInsertContext — контекст для insert: current сидируется входными
// значениями, nid появится только после вставки.
func (p *Pipeline) buildInsertContext(ctx context.Context, callerID, table string, values map[string]any) (*script.Context, error) {
	tref, err := p.resolver.ResolveTable(ctx, table)
	if err != nil {
		return nil, err
	}
	user, err := p.loadUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return script.NewContext(user, tref, script.NewRecord(values)), nil
}

// loadRules — активные правила операции, разложенные на before/after.
func (p *Pipeline) loadRules(ctx context.Context, op, tableID string) (before, after []meta.Rule, err error) {
	rules, err := p.rules.GetRules(ctx, op, tableID)
	if err != nil {
		return nil, nil, err
	}
	return meta.FilterAndSort(rules, meta.WhenBefore), meta.FilterAndSort(rules, meta.WhenAfter), nil
}

// writeBack сохраняет current обратно в таблицу по его nid.
func (p *Pipeline) writeBack(ctx context.Context, sc *script.Context) error {
	values := sc.Current.Map()
	nid := meta.AsString(values["nid"])
	delete(values, "nid")
	return p.gw.Update(ctx, sc.Table.Name, nid, values)
}

// ===== операции =====

// Get — конвейер чтения. Запись пишется обратно даже на чтении: если
// before-правила дополнили запись, их эффект должен быть долговечным
// (наблюдаемое поведение исходной системы, см. DESIGN.md).
func (p *Pipeline) Get(ctx context.Context, callerID, table, nid string) (*script.Context, error) {
	sc, err := p.buildContext(ctx, callerID, table, nid)
	if err != nil {
		return nil, err
	}
	if err := p.access.EnsureAccess(ctx, sc); err != nil {
		return nil, err
	}
	before, after, err := p.loadRules(ctx, meta.OpQuery, sc.Table.ID)
	if err != nil {
		return nil, err
	}
	sc = script.RunChain(before, sc)
	if err := p.writeBack(ctx, sc); err != nil {
		return nil, err
	}
	return script.RunChain(after, sc), nil
}

// Create — конвейер вставки. Входные значения вливаются в current после
// before-правил, nid из хранилища подхватывается обратно в контекст.
func (p *Pipeline) Create(ctx context.Context, callerID, table string, values map[string]any) (*script.Context, error) {
	if len(values) == 0 {
		return nil, errs.Validation("insert into %s: values are required", table)
	}
	sc, err := p.buildInsertContext(ctx, callerID, table, values)
	if err != nil {
		return nil, err
	}
	if err := p.access.EnsureAccess(ctx, sc); err != nil {
		return nil, err
	}
	before, after, err := p.loadRules(ctx, meta.OpInsert, sc.Table.ID)
	if err != nil {
		return nil, err
	}
	sc = script.RunChain(before, sc)
	sc.Current.Merge(values)
	nid, err := p.gw.Insert(ctx, sc.Table.Name, sc.Current.Map())
	if err != nil {
		return nil, err
	}
	sc.Current.ForceSet("nid", nid)
	sc.Current.FreezeSystem()
	return script.RunChain(after, sc), nil
}

// Update — конвейер обновления: загруженная запись, before-правила,
// слияние входных значений через guard, запись целиком по nid.
func (p *Pipeline) Update(ctx context.Context, callerID, table, nid string, values map[string]any) (*script.Context, error) {
	sc, err := p.buildContext(ctx, callerID, table, nid)
	if err != nil {
		return nil, err
	}
	if err := p.access.EnsureAccess(ctx, sc); err != nil {
		return nil, err
	}
	before, after, err := p.loadRules(ctx, meta.OpUpdate, sc.Table.ID)
	if err != nil {
		return nil, err
	}
	sc = script.RunChain(before, sc)
	sc.Current.Merge(values)
	if err := p.writeBack(ctx, sc); err != nil {
		return nil, err
	}
	return script.RunChain(after, sc), nil
}

// Delete — конвейер удаления. Возвращает контекст с последним состоянием
// записи до удаления. Повторное удаление того же nid даёт not_found ещё
// на сборке контекста.
func (p *Pipeline) Delete(ctx context.Context, callerID, table, nid string) (*script.Context, error) {
	sc, err := p.buildContext(ctx, callerID, table, nid)
	if err != nil {
		return nil, err
	}
	if err := p.access.EnsureAccess(ctx, sc); err != nil {
		return nil, err
	}
	before, after, err := p.loadRules(ctx, meta.OpDelete, sc.Table.ID)
	if err != nil {
		return nil, err
	}
	sc = script.RunChain(before, sc)
	if err := p.gw.Delete(ctx, sc.Table.Name, meta.AsString(sc.Current.Get("nid"))); err != nil {
		return nil, err
	}
	return script.RunChain(after, sc), nil
}
