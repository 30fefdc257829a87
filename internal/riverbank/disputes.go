package riverbank

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"riverbank/internal/model"
)

// FalsePositiveRequest carries a message the sender believes was wrongly rejected.
type FalsePositiveRequest struct {
	Message  string
	Nickname string
	Country  string
	Origin   string
}

// SubmitFalsePositive records a disputed moderation decision for later review.
// The message is not moderated and never joins the exchange pool.
func (s *Service) SubmitFalsePositive(ctx context.Context, req FalsePositiveRequest) (*model.FalsePositiveReport, error) {
	if err := s.checkLimit(ctx, ActionFalsePositive, req.Origin); err != nil {
		return nil, err
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, invalid(ReasonEmptyMessage, "Message is required")
	}
	if utf8.RuneCountInString(message) > MaxFalsePositiveSize {
		return nil, invalid(ReasonTooLong, "Message must be 2000 characters or less")
	}
	nickname := strings.TrimSpace(req.Nickname)
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return nil, invalid(ReasonNicknameTooLong, "Nickname must be 30 characters or less")
	}

	origin, err := s.sealer.Seal(req.Origin)
	if err != nil {
		return nil, fmt.Errorf("sealing origin: %w", err)
	}

	report := &model.FalsePositiveReport{
		ID:            s.idgen.New(),
		Message:       message,
		Nickname:      nickname,
		Country:       strings.TrimSpace(req.Country),
		OriginAddress: origin,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.CreateFalsePositiveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("creating false positive report: %w", err)
	}

	s.logger.Info("false positive reported", "id", report.ID)
	return report, nil
}
