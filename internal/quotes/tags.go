package quotes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// tagPattern matches name:value and name:<cmp>value tokens
var tagPattern = regexp.MustCompile(`^([-\w]+):(<=|>=|<|>)?([-@.\w\p{L}\p{N}]+)$`)

const (
	fullNameSQL = "first_name || COALESCE(' ' || NULLIF(last_name, ''), '')"

	sentByNameSQL     = "quotes.sent_by_id IN (SELECT id FROM users WHERE " + fullNameSQL + " ILIKE ?)"
	sentByUsernameSQL = "quotes.sent_by_id IN (SELECT id FROM users WHERE username ILIKE ?)"
	sentByAnySQL      = "quotes.sent_by_id IN (SELECT id FROM users WHERE " + fullNameSQL + " ILIKE ? OR username ILIKE ?)"
	quotedBySQL       = "quotes.quoted_by_id IN (SELECT id FROM users WHERE username ILIKE ?)"
	liveScoreSQL      = "COALESCE((SELECT SUM(votes.direction) FROM votes WHERE votes.quote_id = quotes.id), 0)"
)

// Comparator is the relation a numeric tag checks
type Comparator string

const (
	Equal          Comparator = "="
	Less           Comparator = "<"
	LessOrEqual    Comparator = "<="
	GreaterOrEqual Comparator = ">="
	Greater        Comparator = ">"
)

// Tag is a compiled search filter. The set of tags is closed: AuthorTag,
// UsernameTag, QuotedByTag, DateTag and ScoreTag.
type Tag interface {
	// Apply narrows a quotes query to the rows matching the tag
	Apply(db *gorm.DB) *gorm.DB
	tag()
}

// AuthorTag matches quotes whose author's full name contains Value
type AuthorTag struct {
	Value string
}

func (t AuthorTag) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(sentByNameSQL, likePattern(t.Value))
}

// UsernameTag matches quotes whose author's username contains Value
type UsernameTag struct {
	Value string
}

func (t UsernameTag) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(sentByUsernameSQL, likePattern(t.Value))
}

// QuotedByTag matches quotes archived by a user whose username contains Value
type QuotedByTag struct {
	Value string
}

func (t QuotedByTag) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(quotedBySQL, likePattern(t.Value))
}

// DateTag matches quotes sent during the calendar day starting at Day
type DateTag struct {
	Day time.Time
}

func (t DateTag) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("quotes.sent_at >= ? AND quotes.sent_at < ?", t.Day, t.Day.AddDate(0, 0, 1))
}

// ScoreTag compares the live vote total of a quote with Value
type ScoreTag struct {
	Cmp   Comparator
	Value int
}

func (t ScoreTag) Apply(db *gorm.DB) *gorm.DB {
	cmp := t.Cmp
	if cmp == "" {
		cmp = Equal
	}
	return db.Where(liveScoreSQL+" "+string(cmp)+" ?", t.Value)
}

func (AuthorTag) tag()   {}
func (UsernameTag) tag() {}
func (QuotedByTag) tag() {}
func (DateTag) tag()     {}
func (ScoreTag) tag()    {}

// TagParser compiles tag tokens. Dates are read in Location, UTC when nil.
type TagParser struct {
	Location *time.Location
}

// ParseTag compiles a single token with dates read in UTC
func ParseTag(token string) (Tag, error) {
	return TagParser{}.Parse(token)
}

// ParseSearch splits search arguments into free text and tags, with dates read in UTC
func ParseSearch(args []string) (string, []Tag, error) {
	return TagParser{}.ParseSearch(args)
}

// IsTagToken reports whether token has the shape of a tag
func IsTagToken(token string) bool {
	return tagPattern.MatchString(token)
}

// Parse compiles a name:[cmp]value token
func (p TagParser) Parse(token string) (Tag, error) {
	m := tagPattern.FindStringSubmatch(token)
	if m == nil {
		return nil, tagError(token, ErrMalformedTag)
	}
	name, cmp, value := m[1], Comparator(m[2]), m[3]

	switch name {
	case "author", "username", "u", "quoted_by", "date":
		if cmp != "" {
			return nil, tagError(token, ErrInvalidComparator)
		}
	case "score":
	default:
		return nil, tagError(token, ErrUnknownTag)
	}

	switch name {
	case "author":
		return AuthorTag{Value: value}, nil
	case "username", "u":
		return UsernameTag{Value: strings.TrimPrefix(value, "@")}, nil
	case "quoted_by":
		return QuotedByTag{Value: strings.TrimPrefix(value, "@")}, nil
	case "date":
		day, err := time.ParseInLocation(time.DateOnly, value, p.location())
		if err != nil {
			return nil, tagError(token, ErrInvalidTagValue)
		}
		return DateTag{Day: day}, nil
	default:
		score, err := strconv.Atoi(value)
		if err != nil {
			return nil, tagError(token, ErrInvalidTagValue)
		}
		if cmp == "" {
			cmp = Equal
		}
		return ScoreTag{Cmp: cmp, Value: score}, nil
	}
}

// ParseSearch splits search arguments into free text and compiled tags.
// Tokens shaped like tags must compile; everything else is free text,
// joined by single spaces.
func (p TagParser) ParseSearch(args []string) (string, []Tag, error) {
	var terms []string
	var tags []Tag

	for _, arg := range args {
		for _, token := range strings.Fields(arg) {
			if !IsTagToken(token) {
				terms = append(terms, token)
				continue
			}
			tag, err := p.Parse(token)
			if err != nil {
				return "", nil, fmt.Errorf("failed to parse search: %w", err)
			}
			tags = append(tags, tag)
		}
	}

	return strings.Join(terms, " "), tags, nil
}

func (p TagParser) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring pattern with LIKE wildcards escaped
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
