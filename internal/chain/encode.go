package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/commitmentparties/engine/internal/model"
)

// Anchor-style instruction tags. The discriminator is the first 8 bytes of
// SHA-256("global:<name>"); the variant indexes below are a frozen wire
// contract with the deployed program and must never be reordered.
const (
	ixCreatePool        = "create_pool"
	ixJoinPool          = "join_pool"
	ixVerifyParticipant = "verify_participant"
	ixDistribute        = "distribute_rewards"
)

const (
	goalVariantDailyDCA  = 0
	goalVariantHodlToken = 1
	goalVariantLifestyle = 2
)

const (
	distVariantCompetitive = 0
	distVariantCharity     = 1
	distVariantSplit       = 2
)

// Discriminator returns the 8-byte instruction tag for a global instruction
// name.
func Discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// EncodeGoalType serializes a goal spec into the on-chain GoalType enum.
// Trade goals map to the DailyDCA variant, hodl goals to HodlToken, and both
// lifestyle families collapse into LifestyleHabit carrying only the habit
// label; their verification parameters live off-chain.
func EncodeGoalType(spec *model.GoalSpec) ([]byte, error) {
	switch spec.Kind {
	case model.GoalDailyTrade:
		mint, err := solana.PublicKeyFromBase58(spec.Trade.TokenMint)
		if err != nil {
			return nil, fmt.Errorf("encode goal: token mint: %w", err)
		}
		out := make([]byte, 0, 1+8+32)
		out = append(out, goalVariantDailyDCA)
		out = binary.LittleEndian.AppendUint64(out, uint64(spec.Trade.MinTradesPerDay))
		out = append(out, mint[:]...)
		return out, nil

	case model.GoalHodlToken:
		mint, err := solana.PublicKeyFromBase58(spec.Hodl.TokenMint)
		if err != nil {
			return nil, fmt.Errorf("encode goal: token mint: %w", err)
		}
		out := make([]byte, 0, 1+32+8)
		out = append(out, goalVariantHodlToken)
		out = append(out, mint[:]...)
		out = binary.LittleEndian.AppendUint64(out, spec.Hodl.MinBalance)
		return out, nil

	case model.GoalGitHubCommits, model.GoalScreenTime:
		name := spec.HabitName()
		out := make([]byte, 0, 1+4+len(name))
		out = append(out, goalVariantLifestyle)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(name)))
		out = append(out, name...)
		return out, nil

	default:
		return nil, fmt.Errorf("encode goal: unknown kind %q", spec.Kind)
	}
}

// EncodeDistributionMode serializes a distribution mode. Split carries the
// winner share as a single byte percentage.
func EncodeDistributionMode(mode string, winnerPercent int) ([]byte, error) {
	switch mode {
	case model.DistributionCompetitive:
		return []byte{distVariantCompetitive}, nil
	case model.DistributionCharity:
		return []byte{distVariantCharity}, nil
	case model.DistributionSplit:
		if winnerPercent < 0 || winnerPercent > 100 {
			return nil, fmt.Errorf("encode distribution: winner percent %d out of range", winnerPercent)
		}
		return []byte{distVariantSplit, byte(winnerPercent)}, nil
	default:
		return nil, fmt.Errorf("encode distribution: unknown mode %q", mode)
	}
}

// EncodeCreatePool builds the create_pool instruction data.
func EncodeCreatePool(pool *model.Pool) ([]byte, error) {
	goal, err := EncodeGoalType(&pool.GoalSpec)
	if err != nil {
		return nil, err
	}
	dist, err := EncodeDistributionMode(pool.DistributionMode, pool.WinnerPercent)
	if err != nil {
		return nil, err
	}
	charity, err := solana.PublicKeyFromBase58(pool.CharityAddress)
	if err != nil {
		return nil, fmt.Errorf("encode create_pool: charity address: %w", err)
	}

	out := Discriminator(ixCreatePool)
	out = binary.LittleEndian.AppendUint64(out, uint64(pool.PoolID))
	out = append(out, goal...)
	out = binary.LittleEndian.AppendUint64(out, pool.StakeAmount)
	out = append(out, byte(pool.DurationDays))
	out = binary.LittleEndian.AppendUint16(out, uint16(pool.MaxParticipants))
	out = binary.LittleEndian.AppendUint16(out, uint16(pool.MinParticipants))
	out = append(out, charity[:]...)
	out = append(out, dist...)
	return out, nil
}

// EncodeJoinPool builds the join_pool instruction data.
func EncodeJoinPool() []byte {
	return Discriminator(ixJoinPool)
}

// EncodeVerifyParticipant builds the verify_participant instruction data.
func EncodeVerifyParticipant(day int, passed bool) []byte {
	out := Discriminator(ixVerifyParticipant)
	out = append(out, byte(day))
	if passed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

// EncodeDistributeRewards builds the distribute_rewards instruction data.
func EncodeDistributeRewards() []byte {
	return Discriminator(ixDistribute)
}
