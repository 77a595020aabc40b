package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// EngineVersion is the semantic version of this ledger engine. Profiles pin
// an engine_compat range and refuse to load against the wrong binary.
const EngineVersion = "1.4.0"

// ErrIncompatibleProfile means the profile's engine_compat constraint does
// not admit this engine version.
var ErrIncompatibleProfile = errors.New("config: profile incompatible with engine")

// EconomicProfile carries the tunable economic parameters of a deployment.
type EconomicProfile struct {
	Name         string `yaml:"name" json:"name"`
	EngineCompat string `yaml:"engine_compat" json:"engine_compat"`

	FeeAsset      string `yaml:"fee_asset" json:"fee_asset"`
	Treasury      string `yaml:"treasury" json:"treasury"`
	BaseFee       int64  `yaml:"base_fee" json:"base_fee"`
	FeeExpression string `yaml:"fee_expression,omitempty" json:"fee_expression,omitempty"`

	RewardPerFulfillment int64 `yaml:"reward_per_fulfillment" json:"reward_per_fulfillment"`
	PenaltyPerDefault    int64 `yaml:"penalty_per_default" json:"penalty_per_default"`

	EnvelopeTTLMs int     `yaml:"envelope_ttl_ms" json:"envelope_ttl_ms"`
	BatchesPerSec float64 `yaml:"batches_per_sec" json:"batches_per_sec"`
}

// EnvelopeTTL returns the envelope expiry as a duration.
func (p *EconomicProfile) EnvelopeTTL() time.Duration {
	return time.Duration(p.EnvelopeTTLMs) * time.Millisecond
}

// DefaultProfile is the baseline a deployment starts from.
func DefaultProfile() *EconomicProfile {
	return &EconomicProfile{
		Name:                 "default",
		EngineCompat:         ">= 1.0.0",
		FeeAsset:             "USDC",
		Treasury:             "treasury",
		BaseFee:              10,
		FeeExpression:        "base_fee",
		RewardPerFulfillment: 5,
		PenaltyPerDefault:    20,
		EnvelopeTTLMs:        60_000,
		BatchesPerSec:        10,
	}
}

// LoadEconomicProfile loads and validates the profile at path.
func LoadEconomicProfile(path string) (*EconomicProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}

	if profile.Name == "" {
		// Extract name from filename: profile_mainnet.yaml -> mainnet
		base := filepath.Base(path)
		profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Validate checks field constraints and the engine compatibility range.
func (p *EconomicProfile) Validate() error {
	if p.BaseFee <= 0 {
		return errors.New("config: base_fee must be positive")
	}
	if p.RewardPerFulfillment <= 0 || p.PenaltyPerDefault <= 0 {
		return errors.New("config: reward and penalty must be positive")
	}
	if p.FeeAsset == "" || p.Treasury == "" {
		return errors.New("config: fee_asset and treasury are required")
	}
	if p.BatchesPerSec <= 0 {
		return errors.New("config: batches_per_sec must be positive")
	}
	if p.EnvelopeTTLMs <= 0 {
		return errors.New("config: envelope_ttl_ms must be positive")
	}

	constraint, err := semver.NewConstraint(p.EngineCompat)
	if err != nil {
		return fmt.Errorf("config: engine_compat %q: %w", p.EngineCompat, err)
	}
	if !constraint.Check(semver.MustParse(EngineVersion)) {
		return fmt.Errorf("%w: %q does not admit %s", ErrIncompatibleProfile, p.EngineCompat, EngineVersion)
	}
	return nil
}
