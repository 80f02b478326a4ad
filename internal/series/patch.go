package series

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// Patch is the explicit allow-list of mutable occurrence fields. Identity
// and membership fields (id, posterId, createdAt, roundTripGroupId,
// isRecurring) have no place here, so they can never be patched. Unknown
// fields fail decoding outright instead of being silently filtered.
type Patch struct {
	StartLocation  *string  `json:"startLocation,omitempty"`
	EndLocation    *string  `json:"endLocation,omitempty"`
	DepartureDate  *string  `json:"departureDate,omitempty"` // YYYY-MM-DD
	DepartureTime  *string  `json:"departureTime,omitempty"` // HH:MM
	Status         *string  `json:"status,omitempty"`
	SeatsTotal     *int     `json:"seatsTotal,omitempty"`
	SeatsAvailable *int     `json:"seatsAvailable,omitempty"`
	PricePerSeat   *float64 `json:"pricePerSeat,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
}

// DecodePatch reads a patch from a request body, rejecting unknown fields.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return p, nil
}

// DecodePatchBytes is DecodePatch over an in-memory body.
func DecodePatchBytes(b []byte) (Patch, error) {
	return DecodePatch(bytes.NewReader(b))
}

// Validate checks field contents. An empty patch is rejected: a bulk update
// that changes nothing is a caller bug, not a no-op.
func (p Patch) Validate() error {
	if p == (Patch{}) {
		return fmt.Errorf("%w: patch contains no fields", ErrValidation)
	}
	if p.StartLocation != nil && *p.StartLocation == "" {
		return fmt.Errorf("%w: startLocation cannot be empty", ErrValidation)
	}
	if p.EndLocation != nil && *p.EndLocation == "" {
		return fmt.Errorf("%w: endLocation cannot be empty", ErrValidation)
	}
	if p.DepartureDate != nil {
		if _, err := time.Parse("2006-01-02", *p.DepartureDate); err != nil {
			return fmt.Errorf("%w: departureDate must be YYYY-MM-DD", ErrValidation)
		}
	}
	if p.DepartureTime != nil {
		if _, err := time.Parse("15:04", *p.DepartureTime); err != nil {
			return fmt.Errorf("%w: departureTime must be HH:MM", ErrValidation)
		}
	}
	if p.Status != nil {
		switch models.OccurrenceStatus(*p.Status) {
		case models.StatusActive, models.StatusInactive, models.StatusCompleted, models.StatusCancelled:
		default:
			return fmt.Errorf("%w: invalid status %q", ErrValidation, *p.Status)
		}
	}
	if p.SeatsTotal != nil && *p.SeatsTotal < 1 {
		return fmt.Errorf("%w: seatsTotal must be at least 1", ErrValidation)
	}
	if p.SeatsAvailable != nil && *p.SeatsAvailable < 0 {
		return fmt.Errorf("%w: seatsAvailable cannot be negative", ErrValidation)
	}
	return nil
}

// Updates returns the column map for the bulk UPDATE statement.
func (p Patch) Updates() map[string]interface{} {
	values := make(map[string]interface{})
	if p.StartLocation != nil {
		values["start_location"] = *p.StartLocation
	}
	if p.EndLocation != nil {
		values["end_location"] = *p.EndLocation
	}
	if p.DepartureDate != nil {
		d, _ := time.Parse("2006-01-02", *p.DepartureDate)
		values["departure_date"] = d
	}
	if p.DepartureTime != nil {
		values["departure_time"] = *p.DepartureTime
	}
	if p.Status != nil {
		values["status"] = *p.Status
	}
	if p.SeatsTotal != nil {
		values["seats_total"] = *p.SeatsTotal
	}
	if p.SeatsAvailable != nil {
		values["seats_available"] = *p.SeatsAvailable
	}
	if p.PricePerSeat != nil {
		values["price_per_seat"] = *p.PricePerSeat
	}
	if p.Notes != nil {
		values["notes"] = *p.Notes
	}
	return values
}
