package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RealtimePublisher pushes a freshly created notification to the user's
// open connections. Nil publisher means store-only delivery.
type RealtimePublisher interface {
	NotifyNew(ctx context.Context, userID uuid.UUID, n *Notification, unreadCount int) error
}

// Service handles notification logic
type Service struct {
	repo     Repository
	realtime RealtimePublisher
}

// NewService creates notification service
func NewService(repo Repository, realtime RealtimePublisher) *Service {
	return &Service{repo: repo, realtime: realtime}
}

// Create creates a notification and pushes it over the realtime channel.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, notifType Type, title, body string, data *NotificationData) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	if body != "" {
		n.Body = sql.NullString{String: body, Valid: true}
	}
	n.SetData(data)

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.realtime != nil {
		unread, err := s.repo.CountUnreadByUser(ctx, userID)
		if err != nil {
			unread = 0
		}
		if err := s.realtime.NotifyNew(ctx, userID, n, unread); err != nil {
			log.Debug().Err(err).Str("user_id", userID.String()).Msg("realtime push failed")
		}
	}

	return n, nil
}

// List returns notifications for user
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetUnreadCount returns unread count
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnreadByUser(ctx, userID)
}

// MarkAsRead marks single notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead marks all notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// --- Helper methods for creating specific notifications ---

// NotifyMilestone nudges a buyer at a group milestone. The copy reflects how
// many people the user has already referred.
func (s *Service) NotifyMilestone(ctx context.Context, userID, groupID uuid.UUID, milestone string, referredCount int) {
	body := "Convide amigos com seu código de indicação para acelerar a contemplação do grupo."
	switch {
	case referredCount == 1:
		body = "Você já indicou 1 pessoa. Continue convidando para acelerar a contemplação do grupo."
	case referredCount > 1:
		body = fmt.Sprintf("Você já indicou %d pessoas. Continue convidando para acelerar a contemplação do grupo.", referredCount)
	}
	s.Create(ctx, userID, TypeMilestoneNudge,
		"Seu grupo continua em formação",
		body,
		&NotificationData{GroupID: &groupID, Milestone: milestone},
	)
}

// NotifyContemplated tells the winner they were drawn.
func (s *Service) NotifyContemplated(ctx context.Context, userID, groupID uuid.UUID) {
	s.Create(ctx, userID, TypeContemplated,
		"Você foi contemplado!",
		"Parabéns! Você foi o contemplado do seu grupo. Aguarde a confirmação final.",
		&NotificationData{GroupID: &groupID},
	)
}

// NotifyGroupCompleted tells the winner the contemplation is final.
func (s *Service) NotifyGroupCompleted(ctx context.Context, userID, groupID uuid.UUID) {
	s.Create(ctx, userID, TypeGroupCompleted,
		"Contemplação confirmada",
		"Sua contemplação foi confirmada e o grupo foi encerrado.",
		&NotificationData{GroupID: &groupID},
	)
}

// NotifyCommissionConfirmed tells an influencer a commission was credited.
func (s *Service) NotifyCommissionConfirmed(ctx context.Context, userID, commissionID uuid.UUID, amountCents int64) {
	s.Create(ctx, userID, TypeCommissionConfirmed,
		"Comissão confirmada",
		fmt.Sprintf("Uma comissão de R$ %d,%02d foi adicionada aos seus créditos.", amountCents/100, amountCents%100),
		&NotificationData{CommissionID: &commissionID, AmountCents: &amountCents},
	)
}

// NotifyCreditsConverted tells a buyer their stalled payment became credits.
func (s *Service) NotifyCreditsConverted(ctx context.Context, userID, groupID uuid.UUID, amountCents int64) {
	s.Create(ctx, userID, TypeCreditsConverted,
		"Pagamento convertido em créditos",
		fmt.Sprintf("Seu grupo expirou e R$ %d,%02d foram convertidos em créditos disponíveis.", amountCents/100, amountCents%100),
		&NotificationData{GroupID: &groupID, AmountCents: &amountCents},
	)
}
