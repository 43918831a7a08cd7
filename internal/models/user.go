package models

// User 用户资料（核心只读取体重）
type User struct {
	ID       string   `json:"id" db:"id"`
	Username string   `json:"username" db:"username"`
	WeightKg *float64 `json:"weight,omitempty" db:"weight_kg"`
}
