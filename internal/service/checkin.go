package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/commitmentparties/engine/internal/classify"
	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/storage"
	"github.com/commitmentparties/engine/internal/window"
)

var (
	ErrPoolNotOpen     = errors.New("pool is not accepting check-ins")
	ErrNotParticipant  = errors.New("wallet is not an active participant")
	ErrWrongGoalKind   = errors.New("pool goal does not take check-ins")
	ErrScreenshotRead  = errors.New("screenshot could not be evaluated")
	ErrCheckinRejected = errors.New("screenshot did not prove the goal")
)

// ScreenshotReader is the vision classifier slice the service needs.
type ScreenshotReader interface {
	ReadScreenshot(ctx context.Context, image []byte, mimeType, date string, maxHours float64) (*classify.ScreenTimeReport, error)
}

// CheckinService handles participant-submitted screen-time proofs. The
// screenshot is stored, judged once at submission time, and recorded as a
// check-in; the lifestyle monitor loop turns successful check-ins into
// verdicts on its own cadence.
type CheckinService struct {
	pools        repository.PoolRepository
	participants repository.ParticipantRepository
	checkins     repository.CheckinRepository
	storage      storage.Storage
	reader       ScreenshotReader
	log          *slog.Logger
}

func NewCheckinService(
	pools repository.PoolRepository,
	participants repository.ParticipantRepository,
	checkins repository.CheckinRepository,
	store storage.Storage,
	reader ScreenshotReader,
	log *slog.Logger,
) *CheckinService {
	return &CheckinService{
		pools:        pools,
		participants: participants,
		checkins:     checkins,
		storage:      store,
		reader:       reader,
		log:          log,
	}
}

// Submit evaluates one screenshot for the current challenge day. The
// submission instant is persisted with the check-in; that instant, not when
// a monitor later looks, decides whether the proof was on time.
func (s *CheckinService) Submit(ctx context.Context, poolID int64, wallet string, image []byte, mimeType string, now time.Time) (*model.Checkin, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("%w: no vision classifier configured", ErrScreenshotRead)
	}

	pool, err := s.pools.ByID(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != model.PoolStatusActive {
		return nil, ErrPoolNotOpen
	}
	if pool.GoalSpec.ScreenTime == nil {
		return nil, ErrWrongGoalKind
	}

	participant, err := s.participants.ByKey(poolID, wallet)
	if err != nil {
		return nil, err
	}
	if participant.Status != model.ParticipantStatusActive {
		return nil, ErrNotParticipant
	}

	day, ok := window.CurrentDay(pool.StartTimestamp, now)
	if !ok || day > pool.DurationDays {
		return nil, ErrPoolNotOpen
	}

	key := fmt.Sprintf("checkins/%d/%s/%d-%s", poolID, wallet, day, uuid.New().String())
	if err := s.storage.Save(ctx, key, mimeType, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("store screenshot: %w", err)
	}

	dayStart, _ := window.Day(pool.StartTimestamp, day)
	date := dayStart.Format("2006-01-02")

	report, err := s.reader.ReadScreenshot(ctx, image, mimeType, date, pool.GoalSpec.ScreenTime.MaxHours)
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log.Warn("orphan screenshot cleanup failed", "key", key, "err", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrScreenshotRead, err)
	}

	success := report.DateMatches && report.BelowLimit
	checkin := &model.Checkin{
		ID:            uuid.New().String(),
		PoolID:        poolID,
		WalletAddress: wallet,
		Day:           day,
		Success:       success,
		ScreenshotKey: key,
		SubmittedAt:   now,
	}
	if err := s.checkins.Create(checkin); err != nil {
		return nil, fmt.Errorf("record checkin: %w", err)
	}

	s.log.Info("check-in recorded",
		"pool_id", poolID,
		"wallet", wallet,
		"day", day,
		"success", success,
		"hours", report.Hours,
		"reason", report.Reason,
	)

	if !success {
		return checkin, fmt.Errorf("%w: %s", ErrCheckinRejected, report.Reason)
	}
	return checkin, nil
}

// ScreenshotURL returns a temporary read URL for a stored screenshot.
func (s *CheckinService) ScreenshotURL(ctx context.Context, checkin *model.Checkin) (string, error) {
	return s.storage.PresignedURL(ctx, checkin.ScreenshotKey)
}
