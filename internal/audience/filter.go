// Package audience turns segment conditions into tenant-scoped customer
// queries.
package audience

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

type fieldKind int

const (
	kindNumber fieldKind = iota
	kindInteger
	kindDate
)

type fieldSpec struct {
	column string
	kind   fieldKind
}

var fieldSpecs = map[string]fieldSpec{
	"totalSpend":     {column: "total_spend", kind: kindNumber},
	"visits":         {column: "visits", kind: kindInteger},
	"lastActiveDate": {column: "last_active_date", kind: kindDate},
}

var sqlOperators = map[model.Operator]string{
	model.OpGreaterThan:    ">",
	model.OpGreaterOrEqual: ">=",
	model.OpLessThan:       "<",
	model.OpLessOrEqual:    "<=",
	model.OpEquals:         "=",
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// Predicate is one compiled, type-checked condition.
type Predicate struct {
	Field    string
	Column   string
	Operator model.Operator
	kind     fieldKind
	number   float64
	date     time.Time
}

// Filter is always evaluated as tenant AND (p1 <Logic> p2 ...). The tenant
// term is never part of the combinator group.
type Filter struct {
	TenantID   string
	Logic      model.LogicType
	Predicates []Predicate
}

// Compile validates conditions against the known customer fields and builds
// a tenant-scoped filter.
func Compile(tenantID string, conditions model.ConditionSet, logic model.LogicType) (*Filter, error) {
	if tenantID == "" {
		return nil, appErrors.ErrMissingTenant
	}
	switch logic {
	case "":
		logic = model.LogicAnd
	case model.LogicAnd, model.LogicOr:
	default:
		return nil, appErrors.NewValidation("logicType", fmt.Sprintf("unsupported logic type %q", logic))
	}

	names := make([]string, 0, len(conditions))
	for name := range conditions {
		names = append(names, name)
	}
	sort.Strings(names)

	f := &Filter{TenantID: tenantID, Logic: logic}
	for _, name := range names {
		p, err := compilePredicate(name, conditions[name])
		if err != nil {
			return nil, err
		}
		f.Predicates = append(f.Predicates, p)
	}
	return f, nil
}

func compilePredicate(name string, cond model.Condition) (Predicate, error) {
	spec, ok := fieldSpecs[name]
	if !ok {
		return Predicate{}, appErrors.NewValidation(name, "unknown segment field")
	}
	if _, ok := sqlOperators[cond.Operator]; !ok {
		return Predicate{}, appErrors.NewValidation(name, fmt.Sprintf("unsupported operator %q", cond.Operator))
	}

	p := Predicate{Field: name, Column: spec.column, Operator: cond.Operator, kind: spec.kind}
	switch spec.kind {
	case kindNumber, kindInteger:
		n, ok := toNumber(cond.Value)
		if !ok {
			return Predicate{}, appErrors.NewValidation(name, "operand must be a number")
		}
		if spec.kind == kindInteger && n != math.Trunc(n) {
			return Predicate{}, appErrors.NewValidation(name, "operand must be an integer")
		}
		p.number = n
	case kindDate:
		d, ok := toDate(cond.Value)
		if !ok {
			return Predicate{}, appErrors.NewValidation(name, "operand must be a date (YYYY-MM-DD or RFC3339)")
		}
		p.date = d
	}
	return p, nil
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toDate(v interface{}) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC(), true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// SQL renders the filter as a WHERE clause whose placeholders start at
// $first, returning the clause and its arguments in order.
func (f *Filter) SQL(first int) (string, []interface{}) {
	args := []interface{}{f.TenantID}
	clause := fmt.Sprintf("tenant_id = $%d", first)
	if len(f.Predicates) == 0 {
		return clause, args
	}

	parts := make([]string, 0, len(f.Predicates))
	for _, p := range f.Predicates {
		n := first + len(args)
		op := sqlOperators[p.Operator]
		switch p.kind {
		case kindDate:
			if p.Operator == model.OpEquals {
				parts = append(parts, fmt.Sprintf("%s::date = $%d::date", p.Column, n))
			} else {
				parts = append(parts, fmt.Sprintf("%s %s $%d", p.Column, op, n))
			}
			args = append(args, p.date)
		case kindInteger:
			parts = append(parts, fmt.Sprintf("%s %s $%d", p.Column, op, n))
			args = append(args, int64(p.number))
		default:
			parts = append(parts, fmt.Sprintf("%s %s $%d", p.Column, op, n))
			args = append(args, p.number)
		}
	}
	return clause + " AND (" + strings.Join(parts, " "+string(f.Logic)+" ") + ")", args
}

// Match evaluates the filter against one customer in memory.
func (f *Filter) Match(c model.Customer) bool {
	if c.TenantID != f.TenantID {
		return false
	}
	if len(f.Predicates) == 0 {
		return true
	}
	if f.Logic == model.LogicOr {
		for _, p := range f.Predicates {
			if p.match(c) {
				return true
			}
		}
		return false
	}
	for _, p := range f.Predicates {
		if !p.match(c) {
			return false
		}
	}
	return true
}

func (p Predicate) match(c model.Customer) bool {
	switch p.kind {
	case kindInteger:
		return compare(float64(c.Visits), p.number, p.Operator)
	case kindDate:
		if c.LastActiveDate == nil {
			return false
		}
		got := c.LastActiveDate.UTC()
		if p.Operator == model.OpEquals {
			y1, m1, d1 := got.Date()
			y2, m2, d2 := p.date.Date()
			return y1 == y2 && m1 == m2 && d1 == d2
		}
		return compare(float64(got.Compare(p.date)), 0, p.Operator)
	default:
		return compare(c.TotalSpend, p.number, p.Operator)
	}
}

func compare(got, want float64, op model.Operator) bool {
	switch op {
	case model.OpGreaterThan:
		return got > want
	case model.OpGreaterOrEqual:
		return got >= want
	case model.OpLessThan:
		return got < want
	case model.OpLessOrEqual:
		return got <= want
	case model.OpEquals:
		return got == want
	}
	return false
}
