package services

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	maxUniqueAttempts  = 50
	maxSuggestRounds   = 30
	DefaultSuggestions = 5

	base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// UsernameNegotiator proposes free usernames derived from a base name.
// Availability is checked against the store at call time only; the unique
// constraint on insert stays the final arbiter.
type UsernameNegotiator struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	queryTimeout time.Duration

	intN    func(n int) int
	now     func() time.Time
	newUUID func() string
}

func NewUsernameNegotiator(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UsernameNegotiator {
	return &UsernameNegotiator{
		db:           db,
		repomanager:  m,
		queryTimeout: cfg.QueryTimeout,
		intN:         rand.IntN,
		now:          time.Now,
		newUUID:      uuid.NewString,
	}
}

// Exists reports whether candidate is taken.
func (n *UsernameNegotiator) Exists(ctx context.Context, candidate string) (bool, error) {
	ctx, cancel := withTimeout(ctx, n.queryTimeout)
	defer cancel()

	ok, err := n.repomanager.Users(n.db).UsernameExists(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("username lookup: %w", dbx.Classify(err))
	}
	return ok, nil
}

func (n *UsernameNegotiator) rand3() string {
	var b [3]byte
	for i := range b {
		b[i] = base36[n.intN(len(base36))]
	}
	return string(b[:])
}

// GenerateCandidates returns the candidates tried in round attempt, in order.
// The first-name candidate is left out when firstName is empty.
func (n *UsernameNegotiator) GenerateCandidates(base, firstName string, attempt int) []string {
	out := make([]string, 0, 4)
	out = append(out, fmt.Sprintf("%s_%d%s", base, n.now().Year(), n.rand3()))
	if firstName != "" {
		out = append(out, strings.ToLower(firstName)+"_"+n.newUUID()[:3])
	}
	out = append(out,
		base+strconv.Itoa(attempt),
		base+"_"+n.rand3(),
	)
	return out
}

// GenerateUnique returns base when it is free, otherwise the first free
// candidate over up to 50 rounds. It gives up with common.ErrUsernameExhausted.
func (n *UsernameNegotiator) GenerateUnique(ctx context.Context, base, firstName string) (string, error) {
	taken, err := n.Exists(ctx, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	for attempt := 1; attempt <= maxUniqueAttempts; attempt++ {
		for _, c := range n.GenerateCandidates(base, firstName, attempt) {
			taken, err := n.Exists(ctx, c)
			if err != nil {
				return "", err
			}
			if !taken {
				return c, nil
			}
		}
	}
	return "", common.ErrUsernameExhausted
}

func (n *UsernameNegotiator) suggestionCandidates(base string, attempt int) []string {
	yy := n.now().Year() % 100
	return []string{
		base + "_" + n.rand3(),
		base + strconv.Itoa(attempt),
		fmt.Sprintf("%s_%02d%d", base, yy, attempt),
		fmt.Sprintf("%s_%d%s", base, attempt, n.rand3()),
		fmt.Sprintf("%s_%d", base, n.intN(1000)),
	}
}

// Suggest collects up to max distinct free alternatives to base. Fewer are
// returned when 30 rounds do not yield enough.
func (n *UsernameNegotiator) Suggest(ctx context.Context, base string, max int) ([]string, error) {
	if max <= 0 {
		max = DefaultSuggestions
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, max)

	for attempt := 1; attempt <= maxSuggestRounds; attempt++ {
		for _, c := range n.suggestionCandidates(base, attempt) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}

			taken, err := n.Exists(ctx, c)
			if err != nil {
				return nil, err
			}
			if taken {
				continue
			}
			out = append(out, c)
			if len(out) == max {
				return out, nil
			}
		}
	}
	return out, nil
}
