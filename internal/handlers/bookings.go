package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// CreateBooking books seats on one occurrence. Bookings are the collaborator
// side of the series core: mutations never touch them, they just reference
// occurrence ids and react to mutation events.
func CreateBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		var input struct {
			OccurrenceID uint `json:"occurrenceId" binding:"required"`
			Seats        int  `json:"seats" binding:"required,min=1"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var occurrence models.Occurrence
		if err := db.First(&occurrence, input.OccurrenceID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Posting not found"})
			return
		}

		if occurrence.PosterID == userId {
			c.JSON(400, gin.H{"error": "You cannot book your own posting"})
			return
		}
		if occurrence.Status != models.StatusActive {
			c.JSON(400, gin.H{"error": "Posting is not active"})
			return
		}
		if input.Seats > occurrence.SeatsAvailable {
			c.JSON(400, gin.H{"error": "Not enough seats available"})
			return
		}

		booking := models.Booking{
			PassengerID:  userId,
			OccurrenceID: input.OccurrenceID,
			Seats:        input.Seats,
			Status:       models.BookingStatusPending,
		}

		if err := db.Create(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create booking"})
			return
		}

		c.JSON(201, booking)
	}
}

// GetMyBookings retrieves all bookings made by the requesting passenger
func GetMyBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Where("passenger_id = ?", userId).
			Preload("Occurrence").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// GetPostingBookings retrieves all bookings on the requester's postings
func GetPostingBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Joins("Occurrence").
			Where("occurrences.poster_id = ?", userId).
			Preload("Passenger").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// UpdateBookingStatus lets the posting owner accept or reject a booking
func UpdateBookingStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingId := c.Param("id")
		userId := c.GetUint("userId")

		var input struct {
			Status string `json:"status" binding:"required,oneof=accepted rejected"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var booking models.Booking
		if err := db.Preload("Occurrence").First(&booking, bookingId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.Occurrence.PosterID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		booking.Status = models.BookingStatus(input.Status)
		if err := db.Save(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update booking status"})
			return
		}

		c.JSON(200, booking)
	}
}
