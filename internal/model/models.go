package model

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&LoginHistory{},
		&RevokedToken{},
		&Platform{},
		&Account{},
		&Profile{},
		&SubscriptionPlan{},
		&Customer{},
		&Subscription{},
		&SubscriptionProfile{},
		&Product{},
		&Service{},
		&Sale{},
		&SaleItem{},
		&Expense{},
		&AppSetting{},
		&StoreSetting{},
		&Notification{},
		&Task{},
	}
}
