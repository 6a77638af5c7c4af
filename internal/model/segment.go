// internal/model/segment.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type LogicType string

const (
	LogicAnd LogicType = "AND"
	LogicOr  LogicType = "OR"
)

type Operator string

const (
	OpGreaterThan    Operator = "greaterThan"
	OpGreaterOrEqual Operator = "greaterOrEqual"
	OpLessThan       Operator = "lessThan"
	OpLessOrEqual    Operator = "lessOrEqual"
	OpEquals         Operator = "equals"
)

// Condition compares one customer field against an operand. Value holds the
// decoded JSON operand: a number for numeric fields, a date string for dates.
type Condition struct {
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// ConditionSet maps a customer field name to its condition.
type ConditionSet map[string]Condition

// Value stores the set as jsonb.
func (cs ConditionSet) Value() (driver.Value, error) {
	if cs == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan reads the set back from jsonb.
func (cs *ConditionSet) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*cs = ConditionSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported condition set source %T", src)
	}
	out := ConditionSet{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*cs = out
	return nil
}

type Segment struct {
	ID         string       `db:"id" json:"id"`
	TenantID   string       `db:"tenant_id" json:"tenantId"`
	Name       string       `db:"name" json:"name"`
	Conditions ConditionSet `db:"conditions" json:"conditions"`
	LogicType  LogicType    `db:"logic_type" json:"logicType"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updatedAt"`
}
