package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/internal/inventory"
	"github.com/movilpay/vendorpay-backend/internal/vendors"
	"github.com/movilpay/vendorpay-backend/pkg/config"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

// historySource provides the vendor's trailing-window submission stats.
type historySource interface {
	RejectionStats(ctx context.Context, vendorID uuid.UUID, since time.Time) (vendors.Stats, error)
}

// duplicateCounter tracks how often an IMEI has been submitted recently.
// Backed by Redis so concurrent submissions across instances share the count.
type duplicateCounter interface {
	IMEISubmissionKey(imei string) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// ScoreInput bundles everything the scorer weighs for one submission.
type ScoreInput struct {
	VendorID        uuid.UUID
	IMEI            string
	ClaimedModel    string
	InventoryResult inventory.Result
}

// Signals records why a tier was assigned; persisted on the sale so
// validators see the reasoning without recomputing it.
type Signals struct {
	RejectionRate  float64 `json:"rejection_rate"`
	DuplicateCount int64   `json:"duplicate_count"`
	ModelMismatch  bool    `json:"model_mismatch"`
	Unverified     bool    `json:"unverified"`
}

// Assessment is the advisory outcome attached to a sale. It never blocks
// submission.
type Assessment struct {
	Tier    enums.RiskTier
	Signals Signals
}

// MarshalSignals renders signals for the sale's jsonb column.
func (a Assessment) MarshalSignals() json.RawMessage {
	raw, err := json.Marshal(a.Signals)
	if err != nil {
		return nil
	}
	return raw
}

// Scorer derives an advisory risk tier from vendor history, duplicate-IMEI
// pressure, and the inventory outcome.
type Scorer struct {
	history    historySource
	duplicates duplicateCounter
	cfg        config.RiskConfig
	logger     *logger.Logger
}

// NewScorer wires a scorer with its signal sources.
func NewScorer(history historySource, duplicates duplicateCounter, cfg config.RiskConfig, logg *logger.Logger) (*Scorer, error) {
	if history == nil {
		return nil, errors.New("risk history source required")
	}
	if duplicates == nil {
		return nil, errors.New("risk duplicate counter required")
	}
	if logg == nil {
		return nil, errors.New("risk logger required")
	}
	return &Scorer{history: history, duplicates: duplicates, cfg: cfg, logger: logg}, nil
}

// Score computes the tier. Signal-source failures degrade to neutral values
// and are logged; scoring never fails the owning submission.
func (s *Scorer) Score(ctx context.Context, input ScoreInput) Assessment {
	assessment := Assessment{Tier: enums.RiskTierLow}

	stats, err := s.history.RejectionStats(ctx, input.VendorID, time.Now().Add(-s.cfg.HistoryWindow))
	if err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("risk: rejection stats unavailable: %v", err))
	} else {
		assessment.Signals.RejectionRate = stats.RejectionRate()
	}

	duplicates, err := s.duplicates.IncrWithTTL(ctx, s.duplicates.IMEISubmissionKey(input.IMEI), s.cfg.HistoryWindow)
	if err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("risk: duplicate counter unavailable: %v", err))
	} else {
		// The increment counts this submission too; prior submissions are
		// what the thresholds are about.
		assessment.Signals.DuplicateCount = duplicates - 1
	}

	rate := assessment.Signals.RejectionRate
	dupes := assessment.Signals.DuplicateCount
	switch {
	case rate > s.cfg.HighRejectionRate || dupes > s.cfg.HighDuplicates:
		assessment.Tier = enums.RiskTierHigh
	case rate > s.cfg.MediumRejectionRate || dupes > s.cfg.MediumDuplicates:
		assessment.Tier = enums.RiskTierMedium
	}

	switch input.InventoryResult.Status {
	case enums.InventoryStatusVerified:
		if input.InventoryResult.Device != nil && !modelMatches(input.InventoryResult.Device.Model, input.ClaimedModel) {
			assessment.Signals.ModelMismatch = true
			assessment.Tier = assessment.Tier.Escalate()
		}
	case enums.InventoryStatusUnverified:
		// Recorded for the validator but not an escalation trigger on its own.
		assessment.Signals.Unverified = true
	}

	return assessment
}

func modelMatches(registry, claimed string) bool {
	return strings.EqualFold(strings.TrimSpace(registry), strings.TrimSpace(claimed))
}
