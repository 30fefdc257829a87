package riverbank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"riverbank/internal/model"
)

// ReactionAction says whether a reaction is being added or taken back.
type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

// ParseReactionAction parses an action name. An empty name means add.
func ParseReactionAction(name string) (ReactionAction, error) {
	switch ReactionAction(strings.ToLower(strings.TrimSpace(name))) {
	case "", ReactionAdd:
		return ReactionAdd, nil
	case ReactionRemove:
		return ReactionRemove, nil
	default:
		return "", invalid(ReasonInvalidAction, "Invalid action")
	}
}

// Report records a report against a bottle and returns the new report count.
// The report policy then decides whether the bottle is withdrawn from the
// exchange pool.
func (s *Service) Report(ctx context.Context, id, origin string) (int64, error) {
	if err := s.checkLimit(ctx, ActionReport, origin); err != nil {
		return 0, err
	}
	if err := validateBottleID(id); err != nil {
		return 0, err
	}

	count, err := s.store.IncrementReportCount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("incrementing report count: %w", err)
	}

	if s.policy.ShouldWithdraw(count) {
		if err := s.store.SetBottleStatus(ctx, id, model.StatusReported); err != nil {
			return 0, fmt.Errorf("withdrawing bottle: %w", err)
		}
		s.logger.Info("bottle withdrawn", "id", id, "reports", count)
	}

	s.logger.Info("bottle reported", "id", id, "reports", count)
	return count, nil
}

// ReactRequest adds or removes one emoji reaction on a bottle.
type ReactRequest struct {
	BottleID string
	Emoji    string
	Action   string
	Origin   string
}

// ReactResult holds the reaction map after the change.
type ReactResult struct {
	Action         ReactionAction
	ReactionCounts map[string]int64
}

// React applies a reaction. Removing a reaction never drives a count below
// zero, and emojis whose count reaches zero disappear from the map.
// Which reactions a user has already made is tracked by the client.
func (s *Service) React(ctx context.Context, req ReactRequest) (*ReactResult, error) {
	if err := s.checkLimit(ctx, ActionReact, req.Origin); err != nil {
		return nil, err
	}
	if err := validateBottleID(req.BottleID); err != nil {
		return nil, err
	}
	emoji := strings.TrimSpace(req.Emoji)
	if err := validateEmoji(emoji); err != nil {
		return nil, err
	}
	action, err := ParseReactionAction(req.Action)
	if err != nil {
		return nil, err
	}

	delta := 1
	if action == ReactionRemove {
		delta = -1
	}

	counts, err := s.store.ApplyReaction(ctx, req.BottleID, emoji, delta)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("applying reaction: %w", err)
	}
	if counts == nil {
		counts = map[string]int64{}
	}

	s.logger.Debug("reaction applied", "id", req.BottleID, "emoji", emoji, "action", string(action))
	return &ReactResult{Action: action, ReactionCounts: counts}, nil
}
