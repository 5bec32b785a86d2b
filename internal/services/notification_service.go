package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/sms"
)

// NotificationService delivers tracking links to the people on a trip.
type NotificationService interface {
	NotifyTripCreated(ctx context.Context, trip *models.Trip, links TripLinks) error
}

type notificationService struct {
	provider    sms.SMSProvider
	countryCode string
	timeout     time.Duration
	logger      *logger.Logger
}

func NewNotificationService(provider sms.SMSProvider, countryCode string, logger *logger.Logger) NotificationService {
	if provider == nil {
		provider = sms.NopProvider{}
	}
	return &notificationService{
		provider:    provider,
		countryCode: countryCode,
		timeout:     10 * time.Second,
		logger:      logger.WithComponent("notifications"),
	}
}

// NotifyTripCreated texts the passenger their link and start code, and the
// driver their link. Both sends are attempted even if one fails.
func (s *notificationService) NotifyTripCreated(ctx context.Context, trip *models.Trip, links TripLinks) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var errs []error

	if trip.Passenger.Phone != "" {
		msg := fmt.Sprintf("Your cab %s is on the way. Track it here: %s. Share start code %s with the driver when you board.",
			trip.Driver.VehicleNumber, links.Passenger, trip.OTP)
		if err := s.send(ctx, trip.Token, trip.Passenger.Phone, msg, "otp"); err != nil {
			errs = append(errs, fmt.Errorf("passenger sms: %w", err))
		}
	}

	if trip.Driver.Phone != "" {
		msg := fmt.Sprintf("New trip from %s to %s. Open %s to go online.",
			addressOrCoords(trip.Source), addressOrCoords(trip.Destination), links.Driver)
		if err := s.send(ctx, trip.Token, trip.Driver.Phone, msg, "transactional"); err != nil {
			errs = append(errs, fmt.Errorf("driver sms: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *notificationService) send(ctx context.Context, token, phone, message, kind string) error {
	to := utils.NormalizePhone(phone, s.countryCode)
	resp, err := s.provider.SendSMS(ctx, &sms.SMSRequest{
		To:      to,
		Message: message,
		Type:    kind,
	})
	if err != nil {
		s.logger.WithTripToken(token).
			WithField("to", utils.MaskPhone(to)).
			WithError(err).
			Warn("Failed to send trip SMS")
		return err
	}

	s.logger.WithTripToken(token).
		WithField("to", utils.MaskPhone(to)).
		WithField("message_id", resp.MessageID).
		Debug("Trip SMS sent")
	return nil
}

func addressOrCoords(l models.Location) string {
	if l.Address != "" {
		return l.Address
	}
	return l.Point().String()
}
