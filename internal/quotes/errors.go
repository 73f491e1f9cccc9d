package quotes

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnknownTag is returned for a tag name outside the known set
	ErrUnknownTag = errors.New("unknown tag")
	// ErrInvalidComparator is returned when a comparator is given to a tag that takes none
	ErrInvalidComparator = errors.New("tag does not accept a comparator")
	// ErrInvalidTagValue is returned for a value the tag cannot parse
	ErrInvalidTagValue = errors.New("invalid tag value")
	// ErrMalformedTag is returned for a token that is not name:[cmp]value
	ErrMalformedTag = errors.New("malformed tag")

	ErrPriorChatExists  = errors.New("target chat already exists")
	ErrChatNotFound     = errors.New("chat not found")
	ErrQuoteNotFound    = errors.New("quote not found")
	ErrSelfQuote        = errors.New("users cannot quote themselves")
	ErrInvalidDirection = errors.New("vote direction must be -1, 0 or 1")
)

// TagError carries the offending token of a failed tag compilation
type TagError struct {
	Token string
	Err   error
}

func (e *TagError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Token)
}

func (e *TagError) Unwrap() error {
	return e.Err
}

func tagError(token string, err error) error {
	return &TagError{Token: token, Err: err}
}

// AddQuoteStatus is the outcome of AddQuote
type AddQuoteStatus int

const (
	QuoteAdded AddQuoteStatus = iota
	QuoteAlreadyExists
	QuotePreviouslyDeleted
)

func (s AddQuoteStatus) String() string {
	switch s {
	case QuoteAdded:
		return "added"
	case QuoteAlreadyExists:
		return "already_exists"
	case QuotePreviouslyDeleted:
		return "previously_deleted"
	default:
		return fmt.Sprintf("AddQuoteStatus(%d)", int(s))
	}
}

// VoteStatus is the outcome of AddVote
type VoteStatus int

const (
	VoteAdded VoteStatus = iota
	AlreadyVoted
	QuoteDeleted
)

func (s VoteStatus) String() string {
	switch s {
	case VoteAdded:
		return "vote_added"
	case AlreadyVoted:
		return "already_voted"
	case QuoteDeleted:
		return "quote_deleted"
	default:
		return fmt.Sprintf("VoteStatus(%d)", int(s))
	}
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// isCheckViolation reports whether err is a Postgres CHECK constraint failure
// on the named constraint
func isCheckViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.CheckViolation &&
		pgErr.ConstraintName == constraint
}
