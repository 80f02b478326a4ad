package models

import (
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"
	BookingStatusAccepted BookingStatus = "accepted"
	BookingStatusRejected BookingStatus = "rejected"
)

// Booking links a passenger to one occurrence. The series mutation path
// never touches bookings; booking holders learn about deleted or updated
// occurrences through the mutation events and react on their own.
type Booking struct {
	gorm.Model
	PassengerID  uint          `json:"passengerId" gorm:"not null"`
	Passenger    User          `json:"passenger"`
	OccurrenceID uint          `json:"occurrenceId" gorm:"not null;index"`
	Occurrence   Occurrence    `json:"occurrence"`
	Seats        int           `json:"seats" gorm:"not null;default:1"`
	Status       BookingStatus `json:"status" gorm:"not null;default:'pending'"`
}
