package domain

import "time"

type Order struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	OrderID   string `json:"order_id" gorm:"type:text;not null;uniqueIndex"`
	Name      string `json:"name" gorm:"type:text;not null"`
	Email     string `json:"email" gorm:"type:text;not null"`
	Status    string `json:"status" gorm:"type:text;not null"`
	Refunded  bool   `json:"refunded" gorm:"not null"`
	VariantID int64  `json:"variant_id" gorm:"not null"`
	// ProductName is not authoritative here; the reconciler writes it blank.
	ProductName string    `json:"product_name" gorm:"type:text"`
	UserID      string    `json:"user_id" gorm:"type:text;not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }
