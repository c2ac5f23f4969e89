package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Permission is a named capability carried in access-token claims.
type Permission string

const (
	ProductsRead   Permission = "products:read"
	ProductsWrite  Permission = "products:write"
	OrdersRead     Permission = "orders:read"
	OrdersWrite    Permission = "orders:write"
	QuotesRead     Permission = "quotes:read"
	QuotesWrite    Permission = "quotes:write"
	CustomersRead  Permission = "customers:read"
	CustomersWrite Permission = "customers:write"
	InventoryRead  Permission = "inventory:read"
	InventoryWrite Permission = "inventory:write"
	ReportsRead    Permission = "reports:read"
	UsersManage    Permission = "users:manage"
	SettingsManage Permission = "settings:manage"
)

// Bit positions are part of the persisted mask format; append only.
var bits = map[Permission]int{
	ProductsRead:   0,
	ProductsWrite:  1,
	OrdersRead:     2,
	OrdersWrite:    3,
	QuotesRead:     4,
	QuotesWrite:    5,
	CustomersRead:  6,
	CustomersWrite: 7,
	InventoryRead:  8,
	InventoryWrite: 9,
	ReportsRead:    10,
	UsersManage:    11,
	SettingsManage: 12,
}

// Bit returns the mask position of p.
func Bit(p Permission) (int, bool) {
	b, ok := bits[p]
	return b, ok
}

// Role is the closed set of account roles.
type Role uint8

const (
	RoleCustomer Role = iota
	RoleSales
	RoleManager
	RoleAdmin
)

var roleNames = [...]string{
	RoleCustomer: "customer",
	RoleSales:    "sales",
	RoleManager:  "manager",
	RoleAdmin:    "admin",
}

var (
	customerPerms = []Permission{ProductsRead, OrdersRead, QuotesRead, QuotesWrite}
	salesPerms    = append(append([]Permission{}, customerPerms...),
		OrdersWrite, CustomersRead, CustomersWrite, InventoryRead)
	managerPerms = append(append([]Permission{}, salesPerms...),
		ProductsWrite, InventoryWrite, ReportsRead)
	adminPerms = append(append([]Permission{}, managerPerms...),
		UsersManage, SettingsManage)
)

// ParseRole maps a stored or configured name onto a Role.
func ParseRole(name string) (Role, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range roleNames {
		if s == n {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Valid reports whether r is a member of the closed set.
func (r Role) Valid() bool {
	return int(r) < len(roleNames)
}

// Permissions returns a copy of the static permission set for r.
func (r Role) Permissions() []Permission {
	var src []Permission
	switch r {
	case RoleCustomer:
		src = customerPerms
	case RoleSales:
		src = salesPerms
	case RoleManager:
		src = managerPerms
	case RoleAdmin:
		src = adminPerms
	}
	return append([]Permission(nil), src...)
}

// Mask returns the permission bitset for r.
func (r Role) Mask() Mask {
	var m Mask
	if r == RoleAdmin {
		m.Set(rootBit)
	}
	for _, p := range r.Permissions() {
		m.Set(bits[p])
	}
	return m
}

// Grant returns the sorted union of the role set and extra, as claim strings.
// Unknown extra names are kept; they simply never match a Mask bit.
func Grant(r Role, extra []string) []string {
	seen := make(map[string]struct{}, len(extra)+8)
	for _, p := range r.Permissions() {
		seen[string(p)] = struct{}{}
	}
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MaskOf builds a Mask from claim strings.
func MaskOf(perms []string) Mask {
	var m Mask
	for _, p := range perms {
		if b, ok := bits[Permission(p)]; ok {
			m.Set(b)
		}
	}
	return m
}
