// Package trading owns the trade request lifecycle: proposing a request,
// accepting it (which swaps book ownership) and cancelling it. Every
// operation runs in a single transaction so counters, ownership and
// notifications never disagree.
package trading

import (
	"context"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/metrics"
	"github.com/andrewpaige1/bookswap-api/models"
)

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateRequest proposes giving the books in give for the books in take.
// Books are named by public id.
func (s *Service) CreateRequest(ctx context.Context, requesterID uint, give, take []string) (*models.Request, error) {
	if len(give) == 0 || len(take) == 0 {
		return nil, errors.New("a request needs books to give and books to take", errors.BadRequest())
	}

	seen := make(map[string]bool, len(give)+len(take))
	for _, id := range append(append([]string{}, give...), take...) {
		if seen[id] {
			return nil, errors.New(fmt.Sprintf("book %s is listed twice", id), errors.BadRequest())
		}
		seen[id] = true
	}

	var req models.Request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		giveBooks, err := findBooks(tx, give)
		if err != nil {
			return err
		}
		takeBooks, err := findBooks(tx, take)
		if err != nil {
			return err
		}

		for _, b := range giveBooks {
			if b.UserID != requesterID {
				return errors.New(fmt.Sprintf("you do not own %q", b.Title), errors.Forbidden())
			}
		}

		responderID := takeBooks[0].UserID
		for _, b := range takeBooks {
			if b.UserID != responderID {
				return errors.New("requested books must all belong to the same user", errors.BadRequest())
			}
		}
		if responderID == requesterID {
			return errors.New("you cannot trade with yourself", errors.BadRequest())
		}

		publicID, err := gonanoid.New()
		if err != nil {
			return err
		}

		req = models.Request{
			PublicID:    publicID,
			RequesterID: requesterID,
			ResponderID: responderID,
			Give:        giveBooks,
			Take:        takeBooks,
		}
		// The books already exist, only the join rows are written
		if err := tx.Omit("Give.*", "Take.*").Create(&req).Error; err != nil {
			return err
		}

		if err := adjustRequestCount(tx, req.BookIDs(), 1); err != nil {
			return err
		}

		var requester models.User
		if err := tx.First(&requester, requesterID).Error; err != nil {
			return err
		}

		msg := fmt.Sprintf("%s offers %s for your %s", requester.Username, titles(giveBooks), titles(takeBooks))
		return Notify(tx, responderID, models.CategoryRequest, msg)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRequestEvent("created")
	s.logger.Info("Trade request created",
		zap.String("request", req.PublicID),
		zap.Uint("requester_id", req.RequesterID),
		zap.Uint("responder_id", req.ResponderID),
	)
	return &req, nil
}

// Accept completes the request: the give books go to the responder, the take
// books go to the requester, and a Trade is recorded. Other live requests
// that involve any of the traded books are invalidated.
func (s *Service) Accept(ctx context.Context, responderID uint, publicID string) (*models.Trade, error) {
	var trade models.Trade
	var invalidated int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(tx, publicID)
		if err != nil {
			return err
		}

		if req.ResponderID != responderID {
			return errors.New("only the owner of the requested books can accept", errors.Forbidden())
		}
		if req.Traded {
			return errors.New("request has already been traded", errors.Conflict())
		}

		// Books may have been deleted or traded away since the request was made
		complete, err := allBooksListed(tx, req)
		if err != nil {
			return err
		}
		if !complete {
			return errors.New("some books in this request are no longer listed", errors.Conflict())
		}

		// Flag first so a concurrent accept or cancel of the same request loses
		if err := markTraded(tx, req); err != nil {
			return err
		}
		if err := transfer(tx, req.Give, req.RequesterID, req.ResponderID); err != nil {
			return err
		}
		if err := transfer(tx, req.Take, req.ResponderID, req.RequesterID); err != nil {
			return err
		}
		if err := adjustRequestCount(tx, req.BookIDs(), -1); err != nil {
			return err
		}

		trade = models.Trade{
			GaveUserID: req.RequesterID,
			TookUserID: req.ResponderID,
			RequestID:  req.ID,
		}
		if err := tx.Create(&trade).Error; err != nil {
			return err
		}

		var responder models.User
		if err := tx.First(&responder, responderID).Error; err != nil {
			return err
		}
		msg := fmt.Sprintf("%s accepted your offer: you now own %s", responder.Username, titles(req.Take))
		if err := Notify(tx, req.RequesterID, models.CategoryAccepted, msg); err != nil {
			return err
		}

		invalidated, err = invalidateCompeting(tx, req)
		if err != nil {
			return err
		}

		trade.Request = *req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRequestEvent("accepted")
	for i := 0; i < invalidated; i++ {
		metrics.RecordRequestEvent("invalidated")
	}
	s.logger.Info("Trade request accepted",
		zap.String("request", publicID),
		zap.Uint("trade_id", trade.ID),
		zap.Int("invalidated", invalidated),
	)
	return &trade, nil
}

// Cancel removes a live request. The requester withdraws it, the responder
// declines it; the other party is notified.
func (s *Service) Cancel(ctx context.Context, userID uint, publicID string) error {
	var event string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(tx, publicID)
		if err != nil {
			return err
		}
		if req.Traded {
			return errors.New("traded requests cannot be cancelled", errors.Conflict())
		}

		var actor models.User
		if err := tx.First(&actor, userID).Error; err != nil {
			return err
		}

		var notifyID uint
		var category models.NotificationCategory
		var msg string
		switch userID {
		case req.RequesterID:
			event, notifyID, category = "withdrawn", req.ResponderID, models.CategoryWithdrawn
			msg = fmt.Sprintf("%s withdrew their offer for your %s", actor.Username, titles(req.Take))
		case req.ResponderID:
			event, notifyID, category = "declined", req.RequesterID, models.CategoryDeclined
			msg = fmt.Sprintf("%s declined your offer for %s", actor.Username, titles(req.Take))
		default:
			return errors.New("you are not a party to this request", errors.Forbidden())
		}

		result := tx.Where("traded = ?", false).Delete(req)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.New("request was traded or cancelled meanwhile", errors.Conflict())
		}
		if err := adjustRequestCount(tx, req.BookIDs(), -1); err != nil {
			return err
		}
		return Notify(tx, notifyID, category, msg)
	})
	if err != nil {
		return err
	}

	metrics.RecordRequestEvent(event)
	s.logger.Info("Trade request cancelled", zap.String("request", publicID), zap.String("event", event))
	return nil
}

// invalidateCompeting deletes the other live requests that reference any
// book of req, since those books just changed hands.
func invalidateCompeting(tx *gorm.DB, req *models.Request) (int, error) {
	ids, err := requestIDsForBooks(tx, req.BookIDs())
	if err != nil {
		return 0, err
	}

	var others []models.Request
	for _, id := range ids {
		if id == req.ID {
			continue
		}
		other, err := loadRequestByID(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !other.Traded {
			others = append(others, *other)
		}
	}

	removed := 0
	for i := range others {
		other := &others[i]
		result := tx.Where("traded = ?", false).Delete(other)
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		removed++
		if err := adjustRequestCount(tx, other.BookIDs(), -1); err != nil {
			return 0, err
		}

		msg := fmt.Sprintf("A request involving %s was cancelled because a book was traded", titles(other.Take))
		for _, userID := range []uint{other.RequesterID, other.ResponderID} {
			if err := Notify(tx, userID, models.CategoryCancelled, msg); err != nil {
				return 0, err
			}
		}
	}

	return removed, nil
}

func findBooks(tx *gorm.DB, publicIDs []string) ([]models.Book, error) {
	var books []models.Book
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("public_id IN ?", publicIDs).Find(&books).Error; err != nil {
		return nil, err
	}
	if len(books) != len(publicIDs) {
		return nil, errors.New("one or more books were not found", errors.NotFound())
	}
	return books, nil
}

func loadRequest(tx *gorm.DB, publicID string) (*models.Request, error) {
	var req models.Request
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Give").Preload("Take").
		Where("public_id = ?", publicID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(fmt.Sprintf("request %s not found", publicID), errors.NotFound())
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func loadRequestByID(tx *gorm.DB, id uint) (*models.Request, error) {
	var req models.Request
	if err := tx.Preload("Give").Preload("Take").First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// requestIDsForBooks returns the ids of requests, live or not, whose give or
// take list contains one of the books.
func requestIDsForBooks(tx *gorm.DB, bookIDs []uint) ([]uint, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}

	seen := make(map[uint]bool)
	var ids []uint
	for _, table := range []string{"request_gives", "request_takes"} {
		var refs []uint
		if err := tx.Table(table).Where("book_id IN ?", bookIDs).Pluck("request_id", &refs).Error; err != nil {
			return nil, err
		}
		for _, id := range refs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// allBooksListed reports whether every book referenced by req is still listed
func allBooksListed(tx *gorm.DB, req *models.Request) (bool, error) {
	var gives, takes int64
	if err := tx.Table("request_gives").Where("request_id = ?", req.ID).Count(&gives).Error; err != nil {
		return false, err
	}
	if err := tx.Table("request_takes").Where("request_id = ?", req.ID).Count(&takes).Error; err != nil {
		return false, err
	}
	return len(req.Give) > 0 && len(req.Take) > 0 &&
		int64(len(req.Give)) == gives && int64(len(req.Take)) == takes, nil
}

// markTraded flags a live request as traded, failing if another
// transaction already traded or removed it.
func markTraded(tx *gorm.DB, req *models.Request) error {
	result := tx.Model(&models.Request{}).Where("id = ? AND traded = ?", req.ID, false).Update("traded", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("request has already been traded", errors.Conflict())
	}
	req.Traded = true
	return nil
}

// transfer moves books from one owner to another. Every book must still
// belong to from, otherwise it fails and the caller rolls back.
func transfer(tx *gorm.DB, books []models.Book, from, to uint) error {
	ids := make([]uint, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	result := tx.Model(&models.Book{}).Where("id IN ? AND user_id = ?", ids, from).Update("user_id", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return errors.New("a book changed hands since the request was made", errors.Conflict())
	}
	return nil
}

// adjustRequestCount moves num_of_requests by delta, never below zero
func adjustRequestCount(tx *gorm.DB, bookIDs []uint, delta int) error {
	if len(bookIDs) == 0 {
		return nil
	}
	return tx.Model(&models.Book{}).
		Where("id IN ?", bookIDs).
		UpdateColumn("num_of_requests", gorm.Expr(
			"CASE WHEN num_of_requests + ? < 0 THEN 0 ELSE num_of_requests + ? END", delta, delta,
		)).Error
}

func titles(books []models.Book) string {
	names := make([]string, len(books))
	for i, b := range books {
		names[i] = fmt.Sprintf("%q", b.Title)
	}
	return strings.Join(names, ", ")
}
