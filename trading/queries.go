package trading

import (
	"context"

	"gorm.io/gorm"

	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/models"
)

func (s *Service) withParties(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Give").
		Preload("Take").
		Preload("Requester").
		Preload("Responder")
}

// Get returns a request by public id, live or traded
func (s *Service) Get(ctx context.Context, publicID string) (*models.Request, error) {
	var req models.Request
	err := s.withParties(ctx).Where("public_id = ?", publicID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("request not found", errors.NotFound())
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Incoming lists the live requests for books the user owns
func (s *Service) Incoming(ctx context.Context, userID uint) ([]models.Request, error) {
	var reqs []models.Request
	err := s.withParties(ctx).
		Where("responder_id = ? AND traded = ?", userID, false).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

// Outgoing lists the live requests the user made
func (s *Service) Outgoing(ctx context.Context, userID uint) ([]models.Request, error) {
	var reqs []models.Request
	err := s.withParties(ctx).
		Where("requester_id = ? AND traded = ?", userID, false).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

// Pending lists every live request in the marketplace
func (s *Service) Pending(ctx context.Context) ([]models.Request, error) {
	var reqs []models.Request
	err := s.withParties(ctx).
		Where("traded = ?", false).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

// RequestsForBook lists the live requests whose give or take list holds the book
func (s *Service) RequestsForBook(ctx context.Context, bookID uint) ([]models.Request, error) {
	ids, err := requestIDsForBooks(s.db.WithContext(ctx), []uint{bookID})
	if err != nil {
		return nil, err
	}

	reqs := []models.Request{}
	if len(ids) == 0 {
		return reqs, nil
	}
	err = s.withParties(ctx).
		Where("id IN ? AND traded = ?", ids, false).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

// TradesFor lists the completed trades the user took part in
func (s *Service) TradesFor(ctx context.Context, userID uint) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Preload("Request.Give", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Request.Take", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("GaveUser").
		Preload("TookUser").
		Where("gave_user_id = ? OR took_user_id = ?", userID, userID).
		Order("created_at desc").
		Find(&trades).Error
	return trades, err
}
