// Package domain contains the partitioned order fact model.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and query format of calendar dates.
const DateLayout = "2006-01-02"

// Order is one replenishment order. The table is range-partitioned on
// order_date, so (order_date, id) is the physical key.
type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	LocationID  int16     `gorm:"not null"`
	ProductID   int32     `gorm:"not null"`
	OrderDate   time.Time `gorm:"type:date;primaryKey"`
	Quantity    int32     `gorm:"not null"`
	SubmittedBy string    `gorm:"type:text;not null"`
	SubmittedAt time.Time `gorm:"not null"`
	Status      Status    `gorm:"not null;default:0"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

type Status int32

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusShipped
	StatusCancelled
)

var statusNames = [...]string{"Pending", "Confirmed", "Shipped", "Cancelled"}

func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusCancelled
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int32(s))
	}
	return statusNames[s]
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(name string) (Status, error) {
	name = strings.TrimSpace(name)
	for i, candidate := range statusNames {
		if strings.EqualFold(candidate, name) {
			return Status(i), nil
		}
	}
	return 0, ErrInvalidStatus
}

// StatusNames lists the valid status names in enum order.
func StatusNames() []string {
	return append([]string(nil), statusNames[:]...)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Date is a calendar day. The zero value means "not set".
type Date struct {
	t time.Time
}

// NewDate keeps the calendar day of t as seen in t's own location.
func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return NewDate(t), nil
}

// Time returns the day at UTC midnight.
func (d Date) Time() time.Time { return d.t }

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DatePtr returns nil for the zero date.
func DatePtr(d Date) *Date {
	if d.IsZero() {
		return nil
	}
	return &d
}
