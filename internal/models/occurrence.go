package models

import (
	"time"

	"gorm.io/gorm"
)

type PostingType string

const (
	PostingTypeDriver    PostingType = "driver"
	PostingTypePassenger PostingType = "passenger"
	PostingTypeFlexible  PostingType = "flexible"
)

type TripDirection string

const (
	DirectionDeparture TripDirection = "departure"
	DirectionReturn    TripDirection = "return"
	DirectionNone      TripDirection = "none"
)

type OccurrenceStatus string

const (
	StatusActive    OccurrenceStatus = "active"
	StatusInactive  OccurrenceStatus = "inactive"
	StatusCompleted OccurrenceStatus = "completed"
	StatusCancelled OccurrenceStatus = "cancelled"
)

// Occurrence is one dated trip posting. A recurring series is N occurrences
// sharing a RoundTripGroupID with IsRecurring set; a simple round trip is a
// departure/return pair sharing a RoundTripGroupID with IsRecurring unset.
// RoundTripGroupID and IsRecurring are fixed at creation and never patched.
type Occurrence struct {
	gorm.Model
	PosterID      uint             `json:"posterId" gorm:"not null;index"`
	Poster        *User            `json:"poster,omitempty"`
	PostingType   PostingType      `json:"postingType" gorm:"not null;default:'driver'"`
	StartLocation string           `json:"startLocation" gorm:"not null"`
	EndLocation   string           `json:"endLocation" gorm:"not null"`
	StartLat      *float64         `json:"startLat,omitempty"`
	StartLng      *float64         `json:"startLng,omitempty"`
	EndLat        *float64         `json:"endLat,omitempty"`
	EndLng        *float64         `json:"endLng,omitempty"`
	DistanceKm    *float64         `json:"distanceKm,omitempty"`
	DepartureDate time.Time        `json:"departureDate" gorm:"type:date;not null;index"`
	DepartureTime string           `json:"departureTime" gorm:"type:varchar(5);not null"`
	IsRoundTrip   bool             `json:"isRoundTrip" gorm:"not null;default:false"`
	TripDirection TripDirection    `json:"tripDirection" gorm:"not null;default:'none'"`
	// Shared key for round-trip pairs and recurring series. Nil for one-offs.
	RoundTripGroupID *string          `json:"roundTripGroupId,omitempty" gorm:"index"`
	IsRecurring      bool             `json:"isRecurring" gorm:"not null;default:false"`
	Status           OccurrenceStatus `json:"status" gorm:"not null;default:'active'"`
	SeatsTotal       int              `json:"seatsTotal" gorm:"not null;default:1"`
	SeatsAvailable   int              `json:"seatsAvailable" gorm:"not null;default:1"`
	PricePerSeat     float64          `json:"pricePerSeat"`
	Notes            string           `json:"notes,omitempty"`
}

func (Occurrence) TableName() string {
	return "occurrences"
}

// IsSeriesMember reports whether the occurrence belongs to a recurring
// series. A round-trip pair shares a group id but is not a series.
func (o *Occurrence) IsSeriesMember() bool {
	return o.RoundTripGroupID != nil && o.IsRecurring
}

// DepartureDay returns the departure date truncated to midnight UTC.
// All series ordering and future-scope comparisons are date-only.
func (o *Occurrence) DepartureDay() time.Time {
	y, m, d := o.DepartureDate.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
