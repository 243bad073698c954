// Package integrity decides what happens to dependent records when a parent record is deleted.
package integrity

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// Entity names a persisted record type.
type Entity string

const (
	Customer  Entity = "customer"
	Product   Entity = "product"
	Order     Entity = "order"
	OrderItem Entity = "order_item"
)

// Action is applied to child records when their parent is deleted.
type Action int

const (
	// Protect refuses the delete while children exist.
	Protect Action = iota + 1
	// Cascade deletes the children together with the parent.
	Cascade
)

func (a Action) String() string {
	switch a {
	case Protect:
		return "protect"
	case Cascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// Rule binds a parent/child relationship to an Action.
type Rule struct {
	Parent Entity
	Child  Entity
	Action Action
}

// DefaultRules is the relationship table of the order desk schema.
var DefaultRules = []Rule{
	{Parent: Customer, Child: Order, Action: Protect},
	{Parent: Product, Child: OrderItem, Action: Protect},
	{Parent: Order, Child: OrderItem, Action: Cascade},
}

// Store counts and removes children. Implementations must run on the caller's transaction.
type Store interface {
	CountChildren(ctx context.Context, rule Rule, parentID int64) (int, error)
	DeleteChildren(ctx context.Context, rule Rule, parentID int64) (int64, error)
}

// Policy evaluates delete rules.
type Policy struct {
	rules []Rule
}

// NewPolicy builds a Policy. Without rules it uses DefaultRules.
func NewPolicy(rules ...Rule) *Policy {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Policy{rules: rules}
}

// RulesFor returns the rules whose parent is entity.
func (p *Policy) RulesFor(entity Entity) []Rule {
	var out []Rule
	for _, r := range p.rules {
		if r.Parent == entity {
			out = append(out, r)
		}
	}
	return out
}

// BeforeDelete enforces every rule of entity ahead of deleting the record id.
// All protect rules are checked before any cascade runs, so a refused delete leaves children untouched.
func (p *Policy) BeforeDelete(ctx context.Context, store Store, entity Entity, id int64) error {
	rules := p.RulesFor(entity)
	for _, r := range rules {
		if r.Action != Protect {
			continue
		}
		n, err := store.CountChildren(ctx, r, id)
		if err != nil {
			return fmt.Errorf("count %s children of %s %d: %w", r.Child, entity, id, err)
		}
		if n > 0 {
			return &shared.ReferentialIntegrityError{
				Entity:       string(entity),
				ID:           id,
				ReferencedBy: string(r.Child),
				Count:        n,
			}
		}
	}
	for _, r := range rules {
		if r.Action != Cascade {
			continue
		}
		if _, err := store.DeleteChildren(ctx, r, id); err != nil {
			return fmt.Errorf("cascade %s children of %s %d: %w", r.Child, entity, id, err)
		}
	}
	return nil
}
