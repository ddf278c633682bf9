package domain

import (
	"errors"
	"time"
)

// Status is the order lifecycle status. PLACED is the only non-terminal
// value; once a terminal status is written it never changes again.
type Status string

const (
	StatusPlaced   Status = "PLACED"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusTimedOut Status = "TIMED_OUT"
)

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusTimedOut
}

func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusAccepted, StatusRejected, StatusTimedOut:
		return true
	}
	return false
}

type Order struct {
	ID             string
	RestaurantName string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder builds a freshly placed order. IDs are caller-generated and must
// be unique; the store enforces uniqueness on insert.
func NewOrder(id, restaurantName string) (*Order, error) {
	if id == "" {
		return nil, errors.New("order id is required")
	}
	if restaurantName == "" {
		return nil, errors.New("restaurant name is required")
	}
	now := time.Now().UTC()
	return &Order{
		ID:             id,
		RestaurantName: restaurantName,
		Status:         StatusPlaced,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
