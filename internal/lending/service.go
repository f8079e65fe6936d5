// Package lending implements the per-reader lending workflow:
//
//	available -> requested -> borrowed -> returned (pending) -> read
//
// Requests are granted or rejected by a librarian, returns are filed as
// read by a librarian. Ratings and comments are independent of the workflow.
package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	lendingdb "github.com/mrlokans/moneta/internal/database/lending"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/validation"
)

// Auditor records lending transitions.
type Auditor interface {
	LogLending(userID uint, action string, bookID uint, err error)
}

type Service struct {
	repo  *lendingdb.Repository
	cfg   config.Lending
	audit Auditor
	log   *zap.Logger
	now   func() time.Time
}

func NewService(repo *lendingdb.Repository, cfg config.Lending, auditor Auditor, log *zap.Logger) *Service {
	if cfg.MaxActiveItems <= 0 {
		cfg.MaxActiveItems = config.DefaultMaxActiveItems
	}
	if cfg.BorrowPeriod <= 0 {
		cfg.BorrowPeriod = config.DefaultBorrowPeriod
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		cfg:   cfg,
		audit: auditor,
		log:   log.Named("lending"),
		now:   time.Now,
	}
}

// Activity is everything a reader currently has in the workflow.
type Activity struct {
	Borrowed  []entities.Borrow    `json:"borrowed"`
	Requested []entities.Requested `json:"requested"`
	Returned  []entities.Return    `json:"returned"`
	Read      []entities.Read      `json:"read"`
}

// Active counts the items that weigh against the borrowing limit.
func (a *Activity) Active() int {
	return len(a.Borrowed) + len(a.Requested) + len(a.Returned)
}

type commentInput struct {
	Content string `form:"content" validate:"required,max=2000"`
}

type ratingInput struct {
	Score int `form:"score" validate:"gte=1,lte=5"`
}

// State resolves where the pair currently sits. Read only applies when the
// book is not back in the workflow.
func (s *Service) State(userID, bookID uint) (entities.LendingState, error) {
	return stateOf(s.repo, userID, bookID)
}

func stateOf(repo *lendingdb.Repository, userID, bookID uint) (entities.LendingState, error) {
	if _, err := repo.GetBorrow(userID, bookID); err == nil {
		return entities.StateBorrowed, nil
	} else if !database.IsNotFound(err) {
		return "", err
	}

	checks := []struct {
		state entities.LendingState
		fn    func(uint, uint) (bool, error)
	}{
		{entities.StateRequested, repo.HasRequest},
		{entities.StateReturnedPending, repo.HasReturn},
		{entities.StateRead, repo.HasRead},
	}
	for _, c := range checks {
		ok, err := c.fn(userID, bookID)
		if err != nil {
			return "", err
		}
		if ok {
			return c.state, nil
		}
	}
	return entities.StateAvailable, nil
}

// admit checks that the pair can enter the workflow and the reader is under
// the borrowing limit.
func (s *Service) admit(tx *lendingdb.Repository, userID, bookID uint) error {
	exists, err := tx.BookExists(bookID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}

	state, err := stateOf(tx, userID, bookID)
	if err != nil {
		return err
	}
	if state != entities.StateAvailable && state != entities.StateRead {
		return errs.ErrInvalidTransition
	}

	active, err := tx.CountActive(userID)
	if err != nil {
		return err
	}
	if active >= int64(s.cfg.MaxActiveItems) {
		return errs.ErrQuotaExceeded
	}
	return nil
}

// Request asks a librarian for the book.
func (s *Service) Request(userID, bookID uint) error {
	err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
		if err := s.admit(tx, userID, bookID); err != nil {
			return err
		}
		return tx.CreateRequest(&entities.Requested{
			BookID:      bookID,
			UserID:      userID,
			RequestedAt: s.now(),
		})
	})
	err = mapErr(err)
	s.record(userID, "request", bookID, err)
	return err
}

// Borrow checks the book out directly.
func (s *Service) Borrow(userID, bookID uint) error {
	err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
		if err := s.admit(tx, userID, bookID); err != nil {
			return err
		}
		if err := ensureFree(tx, bookID); err != nil {
			return err
		}
		return tx.CreateBorrow(&entities.Borrow{
			BookID:     bookID,
			UserID:     userID,
			BorrowedAt: s.now(),
		})
	})
	err = mapErr(err)
	s.record(userID, "borrow", bookID, err)
	return err
}

// CancelRequest withdraws the reader's requests for the book. Having none is
// not an error.
func (s *Service) CancelRequest(userID, bookID uint) error {
	_, err := s.repo.DeleteRequestsFor(userID, bookID)
	s.record(userID, "request_cancel", bookID, err)
	return err
}

// Grant turns a request into a borrow dated now.
func (s *Service) Grant(requestID uint) (*entities.Requested, error) {
	var req *entities.Requested
	err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
		var err error
		req, err = tx.GetRequest(requestID)
		if err != nil {
			return err
		}
		if err := ensureFree(tx, req.BookID); err != nil {
			return err
		}
		if _, err := tx.DeleteRequest(requestID); err != nil {
			return err
		}
		return tx.CreateBorrow(&entities.Borrow{
			BookID:     req.BookID,
			UserID:     req.UserID,
			BorrowedAt: s.now(),
		})
	})
	err = mapErr(err)
	if req != nil {
		s.record(req.UserID, "grant", req.BookID, err)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Reject drops a request.
func (s *Service) Reject(requestID uint) (*entities.Requested, error) {
	var req *entities.Requested
	err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
		var err error
		req, err = tx.GetRequest(requestID)
		if err != nil {
			return err
		}
		_, err = tx.DeleteRequest(requestID)
		return err
	})
	err = mapErr(err)
	if req != nil {
		s.record(req.UserID, "reject", req.BookID, err)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Return checks a borrowed book back in. The return waits for a librarian.
func (s *Service) Return(userID, bookID uint) error {
	err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
		borrow, err := tx.GetBorrow(userID, bookID)
		if database.IsNotFound(err) {
			return errs.ErrInvalidTransition
		}
		if err != nil {
			return err
		}
		return moveToReturn(tx, borrow, s.now())
	})
	s.record(userID, "return", bookID, err)
	return err
}

// HandleReturn files a pending return as read.
func (s *Service) HandleReturn(returnID uint) (*entities.Return, error) {
	var ret *entities.Return
	err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
		var err error
		ret, err = tx.GetReturn(returnID)
		if err != nil {
			return err
		}
		if _, err := tx.InsertRead(&entities.Read{BookID: ret.BookID, UserID: ret.UserID, ReadAt: s.now()}); err != nil {
			return err
		}
		_, err = tx.DeleteReturn(returnID)
		return err
	})
	err = mapErr(err)
	if ret != nil {
		s.record(ret.UserID, "return_handle", ret.BookID, err)
	}
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// RevokeBorrow takes a book back from a reader without a return record.
func (s *Service) RevokeBorrow(userID, bookID uint) error {
	removed, err := s.repo.DeleteBorrow(userID, bookID)
	if err == nil && !removed {
		err = errs.ErrNotFound
	}
	s.record(userID, "revoke", bookID, err)
	return err
}

// Rate stores the reader's score for the book, replacing any earlier one.
func (s *Service) Rate(userID, bookID uint, score int) error {
	if err := validation.Struct(ratingInput{Score: score}); err != nil {
		return err
	}
	if err := s.requireBook(bookID); err != nil {
		return err
	}
	err := s.repo.UpsertRating(&entities.Rating{BookID: bookID, UserID: userID, Score: score})
	s.record(userID, "rate", bookID, err)
	return err
}

// UserScore returns the reader's score for the book, if any.
func (s *Service) UserScore(userID, bookID uint) (int, bool, error) {
	rating, err := s.repo.GetRating(userID, bookID)
	if database.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rating.Score, true, nil
}

// Comment appends a comment to the book.
func (s *Service) Comment(userID, bookID uint, text string) (*entities.Comment, error) {
	text = strings.TrimSpace(text)
	if err := validation.Struct(commentInput{Content: text}); err != nil {
		return nil, err
	}
	if err := s.requireBook(bookID); err != nil {
		return nil, err
	}

	comment := &entities.Comment{BookID: bookID, UserID: userID, Content: text, CreatedAt: s.now()}
	if err := s.repo.CreateComment(comment); err != nil {
		return nil, err
	}
	s.record(userID, "comment", bookID, nil)
	return comment, nil
}

// RemoveComment deletes a comment written by requester.
func (s *Service) RemoveComment(commentID, requesterID uint) (*entities.Comment, error) {
	comment, err := s.repo.GetComment(commentID)
	if err != nil {
		return nil, mapErr(err)
	}
	if comment.UserID != requesterID {
		return nil, errs.ErrUnauthorized
	}
	if err := s.repo.DeleteComment(commentID); err != nil {
		return nil, err
	}
	s.record(requesterID, "comment_remove", comment.BookID, nil)
	return comment, nil
}

// Shelf lists the books the reader currently holds.
func (s *Service) Shelf(userID uint) ([]entities.Borrow, error) {
	return s.repo.BorrowsByUser(userID)
}

// ReadContent returns the content of a book the reader holds.
func (s *Service) ReadContent(userID, bookID uint) (*entities.Content, error) {
	if _, err := s.repo.GetBorrow(userID, bookID); err != nil {
		if database.IsNotFound(err) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	content, err := s.repo.GetContent(bookID)
	if err != nil {
		return nil, mapErr(err)
	}
	return content, nil
}

// Activity collects the reader's rows in every workflow state.
func (s *Service) Activity(userID uint) (*Activity, error) {
	var (
		a   Activity
		err error
	)
	if a.Borrowed, err = s.repo.BorrowsByUser(userID); err != nil {
		return nil, err
	}
	if a.Requested, err = s.repo.RequestsByUser(userID); err != nil {
		return nil, err
	}
	if a.Returned, err = s.repo.ReturnsByUser(userID); err != nil {
		return nil, err
	}
	if a.Read, err = s.repo.ReadsByUser(userID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Queue is what a librarian has to act on.
type Queue struct {
	Requests []entities.Requested `json:"requests"`
	Returns  []entities.Return    `json:"returns"`
	Borrows  []entities.Borrow    `json:"borrows"`
}

func (s *Service) Queue() (*Queue, error) {
	var (
		q   Queue
		err error
	)
	if q.Requests, err = s.repo.PendingRequests(); err != nil {
		return nil, err
	}
	if q.Returns, err = s.repo.PendingReturns(); err != nil {
		return nil, err
	}
	if q.Borrows, err = s.repo.ActiveBorrows(); err != nil {
		return nil, err
	}
	return &q, nil
}

// SweepOverdue moves the reader's borrows older than the borrow period to
// pending returns. Returns how many were moved.
func (s *Service) SweepOverdue(ctx context.Context, userID uint) (int, error) {
	now := s.now()
	overdue, err := s.repo.OverdueBorrows(userID, now.Add(-s.cfg.BorrowPeriod))
	if err != nil {
		return 0, fmt.Errorf("overdue borrows: %w", err)
	}

	moved := 0
	for i := range overdue {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		borrow := &overdue[i]
		err := s.repo.Transaction(func(tx *lendingdb.Repository) error {
			// An overdue book goes back to the library even when its
			// history row cannot be written.
			if _, err := tx.InsertReturn(pendingReturn(borrow, now)); err != nil {
				s.log.Warn("overdue return not recorded",
					zap.Uint("user_id", borrow.UserID),
					zap.Uint("book_id", borrow.BookID),
					zap.Error(err))
			}
			_, err := tx.DeleteBorrow(borrow.UserID, borrow.BookID)
			return err
		})
		if err != nil {
			return moved, fmt.Errorf("sweep book %d: %w", borrow.BookID, err)
		}
		moved++
		s.record(userID, "overdue_return", borrow.BookID, nil)
	}

	if moved > 0 {
		s.log.Info("swept overdue borrows", zap.Uint("user_id", userID), zap.Int("moved", moved))
	}
	return moved, nil
}

// SweepAllOverdue runs SweepOverdue for every reader holding an overdue book.
func (s *Service) SweepAllOverdue(ctx context.Context) (int, error) {
	userIDs, err := s.repo.UsersWithOverdue(s.now().Add(-s.cfg.BorrowPeriod))
	if err != nil {
		return 0, fmt.Errorf("users with overdue: %w", err)
	}

	total := 0
	for _, id := range userIDs {
		n, err := s.SweepOverdue(ctx, id)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// moveToReturn records a pending return for the borrow and removes it.
// An existing return for the pair is kept and the borrow still goes.
func moveToReturn(tx *lendingdb.Repository, borrow *entities.Borrow, now time.Time) error {
	if _, err := tx.InsertReturn(pendingReturn(borrow, now)); err != nil {
		return fmt.Errorf("insert return: %w", err)
	}
	_, err := tx.DeleteBorrow(borrow.UserID, borrow.BookID)
	return err
}

func pendingReturn(borrow *entities.Borrow, now time.Time) *entities.Return {
	return &entities.Return{
		BookID:     borrow.BookID,
		UserID:     borrow.UserID,
		BorrowedAt: borrow.BorrowedAt,
		ReturnedAt: now,
	}
}

func ensureFree(tx *lendingdb.Repository, bookID uint) error {
	_, err := tx.GetBorrowOfBook(bookID)
	if err == nil {
		return errs.ErrBookUnavailable
	}
	if database.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *Service) requireBook(bookID uint) error {
	exists, err := s.repo.BookExists(bookID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Service) record(userID uint, action string, bookID uint, err error) {
	if err != nil {
		s.log.Debug("lending transition rejected", zap.String("action", action), zap.Uint("user_id", userID), zap.Uint("book_id", bookID), zap.Error(err))
	}
	if s.audit != nil {
		s.audit.LogLending(userID, action, bookID, err)
	}
}

// mapErr translates persistence errors into the shared taxonomy. A unique
// violation on borrow means someone else checked the book out first.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if database.IsNotFound(err) {
		return errs.ErrNotFound
	}
	if c, ok := database.UniqueViolation(err); ok && c.Table == "borrow" {
		return errs.ErrBookUnavailable
	}
	return err
}
