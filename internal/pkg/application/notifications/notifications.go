//Package notifications manages the messages addressed to users and their notification preferences
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/devices"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

const (
	defaultLimit = 50
	maxLimit     = 100
	maxBulkSize  = 100
)

var knownTypes = []string{
	models.NotificationReminder,
	models.NotificationLowBattery,
	models.NotificationLowSupplement,
	models.NotificationAchievement,
}

//Store is the part of the datastore notifications depend on
type Store interface {
	devices.Finder
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotificationByID(ctx context.Context, notificationID string) (*models.Notification, error)
	QueryNotifications(ctx context.Context, query database.NotificationQuery) ([]models.Notification, int64, error)
	CountNotifications(ctx context.Context, query database.NotificationQuery) (int64, error)
	CountNotificationsByType(ctx context.Context, userID string) (map[string]int64, error)
	MarkNotificationsRead(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int64, error)
	DeleteNotification(ctx context.Context, notificationID string) error
	GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error
}

//Service exposes the notification operations
type Service struct {
	db  Store
	log logging.Logger
	now func() time.Time
}

//NewService creates a notification service backed by db
func NewService(db Store, log logging.Logger) *Service {
	return &Service{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

//IsKnownType reports whether t is one of the notification types
func IsKnownType(t string) bool {
	for _, known := range knownTypes {
		if t == known {
			return true
		}
	}
	return false
}

//ListOptions filters and pages a listing
type ListOptions struct {
	IsRead   *bool
	Type     string
	DeviceID string
	Limit    int
	Offset   int
}

//Page is one page of notifications
type Page struct {
	Notifications []Response `json:"notifications"`
	Total         int64      `json:"total"`
	Limit         int        `json:"limit"`
	Offset        int        `json:"offset"`
}

//Stats counts a user's notifications
type Stats struct {
	Total  int64            `json:"total"`
	Unread int64            `json:"unread"`
	ByType map[string]int64 `json:"by_type"`
}

//CreateRequest describes a new notification
type CreateRequest struct {
	DeviceID *string                `json:"device_id"`
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata"`
}

//List returns a page of the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}

	if opts.Limit < 1 || opts.Limit > maxLimit {
		return nil, apperrors.Validation("Limit must be between 1 and %d", maxLimit)
	}

	if opts.Offset < 0 {
		return nil, apperrors.Validation("Offset must not be negative")
	}

	if opts.Type != "" && !IsKnownType(opts.Type) {
		return nil, apperrors.Validation("Invalid notification type %q", opts.Type)
	}

	notifications, total, err := s.db.QueryNotifications(ctx, database.NotificationQuery{
		UserID:   userID,
		DeviceID: opts.DeviceID,
		Type:     opts.Type,
		IsRead:   opts.IsRead,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return &Page{
		Notifications: NewResponseList(notifications),
		Total:         total,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	}, nil
}

//UnreadCount returns how many notifications the user has not read yet
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	unread := false
	return s.db.CountNotifications(ctx, database.NotificationQuery{UserID: userID, IsRead: &unread})
}

//Stats counts the user's notifications in total, unread and per type
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	total, err := s.db.CountNotifications(ctx, database.NotificationQuery{UserID: userID})
	if err != nil {
		return nil, err
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := s.db.CountNotificationsByType(ctx, userID)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int64, len(knownTypes))
	for _, t := range knownTypes {
		byType[t] = counts[t]
	}

	return &Stats{Total: total, Unread: unread, ByType: byType}, nil
}

//Get returns a notification addressed to userID
func (s *Service) Get(ctx context.Context, userID, notificationID string) (*Response, error) {
	notification, err := s.getOwned(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	response := NewResponse(*notification)
	return &response, nil
}

func (s *Service) getOwned(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	notification, err := s.db.GetNotificationByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if notification.UserID != userID {
		return nil, apperrors.Forbidden("You do not have access to this notification")
	}

	return notification, nil
}

//Create stores a new unread notification for userID
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Response, error) {
	if !IsKnownType(req.Type) {
		return nil, apperrors.Validation("Invalid notification type %q", req.Type)
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 200 {
		return nil, apperrors.Validation("Title must be between 1 and 200 characters")
	}

	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.Validation("Message must not be empty")
	}

	if req.DeviceID != nil {
		if _, err := devices.GetOwned(ctx, s.db, userID, *req.DeviceID); err != nil {
			kind := apperrors.KindOf(err)
			if kind == apperrors.KindNotFound || kind == apperrors.KindForbidden {
				return nil, apperrors.Validation("Device not found or not owned by user")
			}
			return nil, err
		}
	}

	notification := &models.Notification{
		UserID:   userID,
		DeviceID: req.DeviceID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Metadata: req.Metadata,
	}

	if err := s.db.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	response := NewResponse(*notification)
	return &response, nil
}

//MarkRead marks a notification as read. Marking it again keeps the original read time.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (*Response, error) {
	notification, err := s.getOwned(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	if !notification.IsRead {
		if _, err := s.db.MarkNotificationsRead(ctx, userID, []string{notificationID}, s.now()); err != nil {
			return nil, fmt.Errorf("failed to mark notification %s as read: %w", notificationID, err)
		}

		if notification, err = s.db.GetNotificationByID(ctx, notificationID); err != nil {
			return nil, err
		}
	}

	response := NewResponse(*notification)
	return &response, nil
}

//MarkAllRead marks every unread notification of the user as read
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.db.MarkNotificationsRead(ctx, userID, nil, s.now())
}

//BulkMarkRead marks the listed notifications as read. Ids that do not belong to the user are ignored.
func (s *Service) BulkMarkRead(ctx context.Context, userID string, notificationIDs []string) (int64, error) {
	if len(notificationIDs) == 0 || len(notificationIDs) > maxBulkSize {
		return 0, apperrors.Validation("Between 1 and %d notification ids are required", maxBulkSize)
	}

	return s.db.MarkNotificationsRead(ctx, userID, notificationIDs, s.now())
}

//Delete removes a notification addressed to userID
func (s *Service) Delete(ctx context.Context, userID, notificationID string) error {
	if _, err := s.getOwned(ctx, userID, notificationID); err != nil {
		return err
	}

	return s.db.DeleteNotification(ctx, notificationID)
}
