package domain

type Subscription struct {
	ID              int64  `json:"id" gorm:"primaryKey"`
	SubscriptionID  string `json:"subscription_id" gorm:"type:text;not null;uniqueIndex"`
	OrderID         int64  `json:"order_id" gorm:"not null"`
	Name            string `json:"name" gorm:"type:text;not null"`
	Email           string `json:"email" gorm:"type:text;not null"`
	Status          string `json:"status" gorm:"type:text;not null"`
	StatusFormatted string `json:"status_formatted" gorm:"type:text;not null"`
	// Renewal and trial timestamps are stored as the provider sends them.
	RenewsAt           *string `json:"renews_at" gorm:"type:text"`
	EndsAt             *string `json:"ends_at" gorm:"type:text"`
	TrialEndsAt        *string `json:"trial_ends_at" gorm:"type:text"`
	Price              string  `json:"price" gorm:"type:text;not null"`
	IsUsageBased       bool    `json:"is_usage_based" gorm:"not null"`
	IsPaused           bool    `json:"is_paused" gorm:"not null"`
	SubscriptionItemID int64   `json:"subscription_item_id"`
	VariantID          int64   `json:"variant_id" gorm:"not null"`
	CardLastFour       string  `json:"card_last_four" gorm:"type:text"`
	CardBrand          string  `json:"card_brand" gorm:"type:text"`
	VariantName        string  `json:"variant_name" gorm:"type:text;not null"`
	UserID             string  `json:"user_id" gorm:"type:text;not null;index"`
}

func (Subscription) TableName() string { return "subscriptions" }
