package domain

type Plan struct {
	ID                 int64  `json:"id" gorm:"primaryKey"`
	ProductID          int64  `json:"product_id" gorm:"not null"`
	ProductName        string `json:"product_name" gorm:"type:text"`
	VariantID          int64  `json:"variant_id" gorm:"not null;uniqueIndex"`
	Name               string `json:"name" gorm:"type:text;not null"`
	Slug               string `json:"slug" gorm:"type:text;not null"`
	Description        string `json:"description" gorm:"type:text"`
	Price              int64  `json:"price" gorm:"not null"`
	IsUsageBased       bool   `json:"is_usage_based" gorm:"not null"`
	Interval           string `json:"interval" gorm:"type:text"`
	IntervalCount      int    `json:"interval_count"`
	TrialInterval      string `json:"trial_interval" gorm:"type:text"`
	TrialIntervalCount int    `json:"trial_interval_count"`
	Sort               int    `json:"sort"`
}

func (Plan) TableName() string { return "plans" }
