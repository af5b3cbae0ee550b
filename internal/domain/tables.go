package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOprLog{},
	// Accounts
	&AppUser{},
	&UserProfile{},
	// Catalog
	&Product{},
	&WishlistItem{},
	// Checkout
	&Payment{},
	&Order{},
}
