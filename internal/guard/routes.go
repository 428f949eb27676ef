package guard

type Section string

const (
	Dashboard     Section = "dashboard"
	Notifications Section = "notifications"
	Tasks         Section = "tasks"

	Platforms Section = "platforms"
	Accounts  Section = "accounts"
	Profiles  Section = "profiles"
	Plans     Section = "plans"
	Users     Section = "users"
	Settings  Section = "settings"

	Customers     Section = "customers"
	Subscriptions Section = "subscriptions"
	Products      Section = "products"
	Services      Section = "services"
	Sales         Section = "sales"
	Expenses      Section = "expenses"
	Reports       Section = "reports"
	Invoices      Section = "invoices"
)

var (
	authenticated = Requirement{}
	staffOnly     = Requirement{RequireStaff: true}
	adminOnly     = Requirement{RequireAdmin: true}
)

// Routes lists the requirement of every back-office section.
var Routes = map[Section]Requirement{
	Dashboard:     authenticated,
	Notifications: authenticated,
	Tasks:         authenticated,

	Platforms: adminOnly,
	Accounts:  adminOnly,
	Profiles:  adminOnly,
	Plans:     adminOnly,
	Users:     adminOnly,
	Settings:  adminOnly,

	Customers:     staffOnly,
	Subscriptions: staffOnly,
	Products:      staffOnly,
	Services:      staffOnly,
	Sales:         staffOnly,
	Expenses:      staffOnly,
	Reports:       staffOnly,
	Invoices:      staffOnly,
}

// For returns the requirement of section. Unknown sections are admin-only.
func For(section Section) Requirement {
	req, ok := Routes[section]
	if !ok {
		return adminOnly
	}
	return req
}
