package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/repomanager"
)

const (
	otpMin  = 100000
	otpSpan = 900000
)

// OtpValidation is the outcome of OtpLedger.Validate. RecordID is set only
// when Valid is true.
type OtpValidation struct {
	Valid    bool
	RecordID string
}

// OtpLedger issues, validates and consumes one-time passcodes.
type OtpLedger struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	ttl          time.Duration
	queryTimeout time.Duration
	newCode      func() (string, error)
}

func NewOtpLedger(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *OtpLedger {
	return &OtpLedger{
		db:           db,
		repomanager:  m,
		ttl:          cfg.OTPValidityDuration,
		queryTimeout: cfg.QueryTimeout,
		newCode:      generateOtpCode,
	}
}

// TTL is how long an issued code stays valid.
func (l *OtpLedger) TTL() time.Duration {
	return l.ttl
}

// generateOtpCode returns a uniformly distributed code in 100000..999999.
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("otp entropy: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// Issue stores a fresh code for userID and returns it. Older outstanding
// codes stay valid until they expire.
func (l *OtpLedger) Issue(ctx context.Context, userID string) (string, error) {
	code, err := l.newCode()
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, l.queryTimeout)
	defer cancel()

	if _, err := l.repomanager.Otps(l.db).Create(ctx, userID, code, l.ttl); err != nil {
		return "", fmt.Errorf("issue otp: %w", dbx.Classify(err))
	}
	return code, nil
}

// Validate looks for the newest unexpired, unconsumed record of userID
// carrying code. A miss is not an error.
func (l *OtpLedger) Validate(ctx context.Context, code, userID string) (OtpValidation, error) {
	ctx, cancel := withTimeout(ctx, l.queryTimeout)
	defer cancel()

	rec, err := l.repomanager.Otps(l.db).FindLatestValid(ctx, userID, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return OtpValidation{}, nil
		}
		return OtpValidation{}, fmt.Errorf("validate otp: %w", dbx.Classify(err))
	}
	return OtpValidation{Valid: true, RecordID: rec.ID}, nil
}

// Consume marks the record used through db, normally the caller's
// transaction. A record can be consumed once; later calls return
// common.ErrInvalidOtp.
func (l *OtpLedger) Consume(ctx context.Context, db dbx.DBTX, recordID string) error {
	err := l.repomanager.Otps(db).MarkVerified(ctx, recordID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrInvalidOtp
	case err != nil:
		return fmt.Errorf("consume otp: %w", dbx.Classify(err))
	}
	return nil
}
