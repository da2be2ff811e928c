package script

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"nemi/internal/meta"
)

// Песочница скриптов бизнес-правил.
//
// Скрипт — это построчный DSL: каждая строка либо присваивание
//
//	current.<поле> = <выражение>
//
// либо голое выражение ради побочного эффекта (log(...)). Выражения
// компилируются и выполняются expr-lang'ом над allowlist-окружением:
// current, user, table, log. Никакого доступа к файлам/сети/процессу.
//
// Политика отказа: любой сбой скрипта логируется, и правило целиком
// откатывается — цепочка продолжает работу с контекстом, каким он был
// до этого правила. Один кривой скрипт не валит весь конвейер.

var assignRe = regexp.MustCompile(`^current\.([A-Za-z_][A-Za-z0-9_]*)\s*=\s*([^=].*)$`)

type statement struct {
	target string // имя поля current.* либо "" для голого выражения
	src    string
}

func parseScript(src string) ([]statement, error) {
	var out []statement
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := assignRe.FindStringSubmatch(line); m != nil {
			out = append(out, statement{target: m[1], src: strings.TrimSpace(m[2])})
			continue
		}
		// присваивание не в current.* — запрещено
		if strings.Contains(line, "=") && !strings.Contains(line, "==") &&
			!strings.Contains(line, "!=") && !strings.Contains(line, ">=") && !strings.Contains(line, "<=") {
			return nil, fmt.Errorf("line %d: only current.<field> may be assigned", i+1)
		}
		out = append(out, statement{src: line})
	}
	return out, nil
}

// Run выполняет скрипт правила над копией контекста и возвращает итоговый
// контекст. При сбое возвращается контекст ДО выполнения — без изменений.
func Run(rule meta.Rule, ctx *Context) *Context {
	work := ctx.Clone()

	stmts, err := parseScript(rule.Script)
	if err != nil {
		logFault(rule, err)
		return ctx
	}

	// рабочая копия current: присваивания идут через guard,
	// последующие строки видят результат предыдущих
	cur := work.Current.Map()
	env := map[string]any{
		"current": cur,
		"user":    work.User,
		"table":   map[string]any{"id": work.Table.ID, "name": work.Table.Name},
		"log": func(args ...any) bool {
			log.Printf("rule %s: %s", rule.Name, fmt.Sprintln(args...))
			return true
		},
	}

	for _, st := range stmts {
		prog, err := expr.Compile(st.src, expr.Env(env), expr.AllowUndefinedVariables())
		if err != nil {
			logFault(rule, err)
			return ctx
		}
		val, err := expr.Run(prog, env)
		if err != nil {
			logFault(rule, err)
			return ctx
		}
		if st.target == "" {
			continue
		}
		if work.Current.Frozen(st.target) {
			// защищённое поле: присваивание молча не действует
			continue
		}
		cur[st.target] = val
	}

	// скрипт отработал целиком — фиксируем рабочую копию
	next := NewRecord(cur)
	for _, k := range ImmutableProperties {
		if work.Current.Frozen(k) {
			next.frozen[k] = struct{}{}
		}
	}
	work.Current = next
	return work
}

// RunChain — последовательный fold цепочки правил: выход одного правила
// становится входом следующего. Политика отказа применяется поштучно.
func RunChain(rules []meta.Rule, ctx *Context) *Context {
	for _, r := range rules {
		ctx = Run(r, ctx)
	}
	return ctx
}

func logFault(rule meta.Rule, err error) {
	log.Printf("rule %s (%s): script failed, previous context kept: %v", rule.Name, rule.NID, err)
}
