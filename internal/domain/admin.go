package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Collection struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	ProductIDs  []int64   `json:"productIds,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Staff struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"isActive"`
}

type CustomerStatistics struct {
	TotalCustomers     int             `json:"totalCustomers"`
	NewCustomers       int             `json:"newCustomers"`
	ReturningCustomers int             `json:"returningCustomers"`
	TotalOrders        int             `json:"totalOrders"`
	Revenue            decimal.Decimal `json:"revenue"`
	TopCustomers       []TopCustomer   `json:"topCustomers"`
}

type TopCustomer struct {
	UserID     int64           `json:"userId"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	OrderCount int             `json:"orderCount"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
}

// StatisticsRange bounds the customer statistics window.
type StatisticsRange struct {
	From time.Time
	To   time.Time
}
