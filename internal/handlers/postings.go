package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amasendi/ridepool-backend/internal/grouping"
	"github.com/amasendi/ridepool-backend/internal/models"
	"github.com/amasendi/ridepool-backend/internal/series"
	"github.com/amasendi/ridepool-backend/internal/services"
	"github.com/amasendi/ridepool-backend/pkg/utils"
)

const dateLayout = "2006-01-02"

// CreatePosting creates trip postings in one batch: a one-off occurrence, a
// round-trip pair (two rows sharing a group id), or a recurring series (one
// row per date sharing a group id). Series and round-trip membership is
// fixed here and never changes afterwards.
func CreatePosting(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		userType := c.GetString("userType")

		var input struct {
			PostingType    string   `json:"postingType" binding:"required,oneof=driver passenger flexible"`
			StartLocation  string   `json:"startLocation" binding:"required"`
			EndLocation    string   `json:"endLocation" binding:"required"`
			StartLat       *float64 `json:"startLat"`
			StartLng       *float64 `json:"startLng"`
			EndLat         *float64 `json:"endLat"`
			EndLng         *float64 `json:"endLng"`
			DepartureDate  string   `json:"departureDate" binding:"required"`
			DepartureTime  string   `json:"departureTime" binding:"required"`
			SeatsTotal     int      `json:"seatsTotal" binding:"required,min=1"`
			PricePerSeat   float64  `json:"pricePerSeat"`
			Notes          string   `json:"notes"`
			ReturnDate     string   `json:"returnDate"`
			ReturnTime     string   `json:"returnTime"`
			RecurringDates []string `json:"recurringDates"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.PostingType == string(models.PostingTypeDriver) && userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can post driver rides"})
			return
		}

		departureDate, err := time.Parse(dateLayout, input.DepartureDate)
		if err != nil {
			c.JSON(400, gin.H{"error": "departureDate must be YYYY-MM-DD"})
			return
		}
		if _, err := time.Parse("15:04", input.DepartureTime); err != nil {
			c.JSON(400, gin.H{"error": "departureTime must be HH:MM"})
			return
		}

		isRoundTrip := input.ReturnDate != "" || input.ReturnTime != ""
		isRecurring := len(input.RecurringDates) > 0
		if isRoundTrip && isRecurring {
			c.JSON(400, gin.H{"error": "A posting is either a round trip or a recurring series, not both"})
			return
		}

		base := models.Occurrence{
			PosterID:       userId,
			PostingType:    models.PostingType(input.PostingType),
			StartLocation:  input.StartLocation,
			EndLocation:    input.EndLocation,
			StartLat:       input.StartLat,
			StartLng:       input.StartLng,
			EndLat:         input.EndLat,
			EndLng:         input.EndLng,
			DepartureDate:  departureDate,
			DepartureTime:  input.DepartureTime,
			TripDirection:  models.DirectionNone,
			Status:         models.StatusActive,
			SeatsTotal:     input.SeatsTotal,
			SeatsAvailable: input.SeatsTotal,
			PricePerSeat:   input.PricePerSeat,
			Notes:          input.Notes,
		}

		if input.StartLat != nil && input.StartLng != nil && input.EndLat != nil && input.EndLng != nil {
			km := utils.HaversineDistance(*input.StartLat, *input.StartLng, *input.EndLat, *input.EndLng)
			base.DistanceKm = &km
		}

		var occurrences []models.Occurrence
		switch {
		case isRoundTrip:
			if input.ReturnDate == "" || input.ReturnTime == "" {
				c.JSON(400, gin.H{"error": "Round trips need both returnDate and returnTime"})
				return
			}
			returnDate, err := time.Parse(dateLayout, input.ReturnDate)
			if err != nil {
				c.JSON(400, gin.H{"error": "returnDate must be YYYY-MM-DD"})
				return
			}
			if _, err := time.Parse("15:04", input.ReturnTime); err != nil {
				c.JSON(400, gin.H{"error": "returnTime must be HH:MM"})
				return
			}
			if returnDate.Before(departureDate) {
				c.JSON(400, gin.H{"error": "returnDate cannot be before departureDate"})
				return
			}

			groupID := uuid.NewString()
			departureLeg := base
			departureLeg.IsRoundTrip = true
			departureLeg.TripDirection = models.DirectionDeparture
			departureLeg.RoundTripGroupID = &groupID

			returnLeg := base
			returnLeg.IsRoundTrip = true
			returnLeg.TripDirection = models.DirectionReturn
			returnLeg.RoundTripGroupID = &groupID
			returnLeg.DepartureDate = returnDate
			returnLeg.DepartureTime = input.ReturnTime
			returnLeg.StartLocation, returnLeg.EndLocation = base.EndLocation, base.StartLocation
			returnLeg.StartLat, returnLeg.EndLat = base.EndLat, base.StartLat
			returnLeg.StartLng, returnLeg.EndLng = base.EndLng, base.StartLng

			occurrences = []models.Occurrence{departureLeg, returnLeg}

		case isRecurring:
			if len(input.RecurringDates) < 2 {
				c.JSON(400, gin.H{"error": "A recurring series needs at least two dates"})
				return
			}
			groupID := uuid.NewString()
			for _, ds := range input.RecurringDates {
				d, err := time.Parse(dateLayout, ds)
				if err != nil {
					c.JSON(400, gin.H{"error": "recurringDates must all be YYYY-MM-DD"})
					return
				}
				occ := base
				occ.DepartureDate = d
				occ.IsRecurring = true
				occ.RoundTripGroupID = &groupID
				occurrences = append(occurrences, occ)
			}

		default:
			occurrences = []models.Occurrence{base}
		}

		if err := db.Create(&occurrences).Error; err != nil {
			log.Printf("Failed to create postings: %v", err)
			c.JSON(500, gin.H{"error": "Failed to create posting"})
			return
		}

		ctx := context.Background()
		if err := services.InvalidateListing(ctx); err != nil {
			log.Printf("Failed to invalidate listing cache: %v", err)
		}
		ids := make([]uint, 0, len(occurrences))
		for _, o := range occurrences {
			ids = append(ids, o.ID)
		}
		if err := services.PublishSeriesMutation(ctx, services.SeriesMutationEvent{
			Action:        "created",
			PosterID:      userId,
			OccurrenceIDs: ids,
		}); err != nil {
			log.Printf("Failed to publish creation event: %v", err)
		}

		c.JSON(201, gin.H{
			"message":     "Posting created successfully",
			"occurrences": occurrences,
		})
	}
}

// GetListings returns the public assembled listing: return legs folded into
// their departure siblings, series collapsed to their earliest occurrence.
func GetListings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		destination := c.Query("destination")
		startLocation := c.Query("startLocation")
		unfiltered := destination == "" && startLocation == ""

		ctx := c.Request.Context()
		if unfiltered {
			if cached, err := services.GetCachedListing(ctx); err == nil {
				c.JSON(200, cached)
				return
			}
		}

		var occurrences []models.Occurrence
		if err := db.
			Where("status = ? AND departure_date >= ?", models.StatusActive, todayUTC()).
			Order("departure_date ASC, id ASC").
			Find(&occurrences).Error; err != nil {
			log.Printf("Failed to fetch postings: %v", err)
			c.JSON(500, gin.H{"error": "Failed to fetch postings"})
			return
		}

		entries := grouping.AssembleListing(occurrences)

		if !unfiltered {
			filtered := make([]grouping.ListingEntry, 0, len(entries))
			for _, e := range entries {
				if destination != "" && !strings.Contains(strings.ToLower(e.EndLocation), strings.ToLower(destination)) {
					continue
				}
				if startLocation != "" && !strings.Contains(strings.ToLower(e.StartLocation), strings.ToLower(startLocation)) {
					continue
				}
				filtered = append(filtered, e)
			}
			c.JSON(200, filtered)
			return
		}

		if err := services.CacheListing(ctx, entries); err != nil {
			log.Printf("Failed to cache listing: %v", err)
		}
		c.JSON(200, entries)
	}
}

// GetMyPostings returns the owner's postings, both as an assembled listing
// and with the raw series groups surfaced for management views.
func GetMyPostings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var occurrences []models.Occurrence
		if err := db.Where("poster_id = ?", userId).
			Order("departure_date ASC, id ASC").
			Find(&occurrences).Error; err != nil {
			log.Printf("Failed to fetch own postings: %v", err)
			c.JSON(500, gin.H{"error": "Failed to fetch postings"})
			return
		}

		c.JSON(200, gin.H{
			"postings":     grouping.AssembleListing(occurrences),
			"seriesGroups": grouping.ExtractSeriesGroups(occurrences),
		})
	}
}

// GetScopeOptions opens a confirmation session and returns the literal
// per-scope target counts so the caller can verify the blast radius before
// committing an edit or delete.
func GetScopeOptions(exec *series.Executor, coord *series.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		anchorID, ok := parsePostingID(c)
		if !ok {
			return
		}

		variant := series.Variant(c.DefaultQuery("variant", string(series.VariantEdit)))

		anchor, siblings, _, err := exec.Preview(c.Request.Context(), anchorID, userId)
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		options, err := coord.Open(userId, variant, *anchor, siblings)
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"anchor":       anchor,
			"options":      options,
			"defaultScope": series.ScopeSingle,
		})
	}
}

// SelectScope records the user's scope choice on an open session.
func SelectScope(coord *series.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		anchorID, ok := parsePostingID(c)
		if !ok {
			return
		}

		var input struct {
			Scope string `json:"scope" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		scope, err := series.ParseScope(input.Scope)
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		if err := coord.Select(userId, anchorID, scope); err != nil {
			respondSeriesError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Scope selected", "scope": scope})
	}
}

// CancelScopeSelection dismisses an open session without mutating anything.
func CancelScopeSelection(coord *series.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		anchorID, ok := parsePostingID(c)
		if !ok {
			return
		}

		if err := coord.Cancel(userId, anchorID); err != nil {
			respondSeriesError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Selection cancelled"})
	}
}

// UpdatePosting patches one occurrence, all future occurrences, or the whole
// series in a single bulk statement, depending on the scope parameter.
func UpdatePosting(db *gorm.DB, exec *series.Executor, coord *series.Coordinator, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		anchorID, ok := parsePostingID(c)
		if !ok {
			return
		}

		scope, err := series.ParseScope(c.DefaultQuery("scope", string(series.ScopeSingle)))
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		patch, err := series.DecodePatch(c.Request.Body)
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		var result *series.UpdateResult
		err = coord.Run(c.Request.Context(), userId, anchorID, scope, func(ctx context.Context, scope series.Scope) error {
			var runErr error
			result, runErr = exec.UpdateSeries(ctx, anchorID, scope, patch, userId)
			return runErr
		})
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		ids := make([]uint, 0, len(result.Occurrences))
		for _, o := range result.Occurrences {
			ids = append(ids, o.ID)
		}
		afterSeriesMutation(db, hub, "updated", userId, string(scope), ids)

		c.JSON(200, gin.H{
			"message":     result.Message,
			"occurrences": result.Occurrences,
		})
	}
}

// DeletePosting soft deletes the scope's target set in a single bulk
// statement and returns the deleted ids so callers can reconcile cached
// state without a refetch.
func DeletePosting(db *gorm.DB, exec *series.Executor, coord *series.Coordinator, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		anchorID, ok := parsePostingID(c)
		if !ok {
			return
		}

		scope, err := series.ParseScope(c.DefaultQuery("scope", string(series.ScopeSingle)))
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		var result *series.DeleteResult
		err = coord.Run(c.Request.Context(), userId, anchorID, scope, func(ctx context.Context, scope series.Scope) error {
			var runErr error
			result, runErr = exec.DeleteSeries(ctx, anchorID, scope, userId)
			return runErr
		})
		if err != nil {
			respondSeriesError(c, err)
			return
		}

		if len(result.Occurrences) > 0 {
			snapshot := result.Occurrences
			go func() {
				if path, err := services.ArchiveDeletedOccurrences(userId, string(scope), snapshot); err != nil {
					log.Printf("Failed to archive deleted occurrences: %v", err)
				} else if path != "" {
					log.Printf("Archived %d deleted occurrences to %s", len(snapshot), path)
				}
			}()
		}
		afterSeriesMutation(db, hub, "deleted", userId, string(scope), result.DeletedIDs)

		c.JSON(200, gin.H{
			"message":    result.Message,
			"deletedIds": result.DeletedIDs,
		})
	}
}

func parsePostingID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid posting ID"})
		return 0, false
	}
	return uint(id), true
}

func todayUTC() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// afterSeriesMutation fans an applied mutation out to collaborators: the
// listing cache is dropped, the event is published for the bookings side,
// and booking holders get a websocket push. None of this can fail the
// already-applied mutation.
func afterSeriesMutation(db *gorm.DB, hub *services.Hub, action string, posterID uint, scope string, ids []uint) {
	ctx := context.Background()
	if err := services.InvalidateListing(ctx); err != nil {
		log.Printf("Failed to invalidate listing cache: %v", err)
	}
	if err := services.PublishSeriesMutation(ctx, services.SeriesMutationEvent{
		Action:        action,
		PosterID:      posterID,
		Scope:         scope,
		OccurrenceIDs: ids,
	}); err != nil {
		log.Printf("Failed to publish %s event: %v", action, err)
	}

	if len(ids) == 0 {
		return
	}
	var passengerIDs []uint
	if err := db.Model(&models.Booking{}).
		Where("occurrence_id IN ?", ids).
		Distinct("passenger_id").
		Pluck("passenger_id", &passengerIDs).Error; err != nil {
		log.Printf("Failed to look up booking holders: %v", err)
		return
	}
	for _, pid := range passengerIDs {
		if action == "deleted" {
			hub.SendPostingsDeleted(pid, services.PostingsDeleted{
				OccurrenceIDs: ids,
				Message:       "A ride you booked has been cancelled",
			})
		} else {
			hub.SendPostingsUpdated(pid, services.PostingsUpdated{
				OccurrenceIDs: ids,
				Message:       "A ride you booked has changed",
			})
		}
	}
}

func respondSeriesError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, series.ErrNotFound):
		c.JSON(404, gin.H{"error": "Posting not found"})
	case errors.Is(err, series.ErrForbidden):
		c.JSON(403, gin.H{"error": "Unauthorized to modify this posting"})
	case errors.Is(err, series.ErrValidation):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, series.ErrConfirmInFlight):
		c.JSON(409, gin.H{"error": "Another confirmation is already in progress"})
	case errors.Is(err, series.ErrNoSession):
		c.JSON(409, gin.H{"error": "No open confirmation session"})
	default:
		log.Printf("Series mutation failed: %v", err)
		c.JSON(500, gin.H{"error": "Something went wrong, please try again"})
	}
}
