package model

import "fmt"

// Category classifies a ledger entry by the kind of chain event it mirrors.
type Category string

const (
	CategoryMint       Category = "mint"
	CategoryTransfer   Category = "transfer"
	CategoryBurn       Category = "burn"
	CategoryForcedBurn Category = "forced_burn"
	CategoryRoleAssign Category = "role_assign"
	CategoryRoleRevoke Category = "role_revoke"
	CategoryExecution  Category = "execution"
)

// Categories returns every valid category, in declaration order.
func Categories() []Category {
	return []Category{
		CategoryMint,
		CategoryTransfer,
		CategoryBurn,
		CategoryForcedBurn,
		CategoryRoleAssign,
		CategoryRoleRevoke,
		CategoryExecution,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMint, CategoryTransfer, CategoryBurn, CategoryForcedBurn,
		CategoryRoleAssign, CategoryRoleRevoke, CategoryExecution:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a stored string back into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
