package auction

import "context"

// AllocationNotice is handed to the notification sink after a successful
// apply: one message per allocated player.
type AllocationNotice struct {
	PlayerID   string     `json:"player_id"`
	PlayerName string     `json:"player_name"`
	TeamID     string     `json:"winner_team"`
	TeamName   string     `json:"winner_team_name"`
	Amount     int64      `json:"amount"`
	SourceKind SourceKind `json:"source_kind"`
	SourceID   string     `json:"source_id"`
}

// NotificationSink receives outcome notices after commit. Implementations
// must be non-blocking from the caller's point of view; errors are the
// sink's problem and never surface into the core operation.
type NotificationSink interface {
	NotifyAllocations(ctx context.Context, notices []AllocationNotice)
}

// Event names pushed to the broadcast sink on every state change.
const (
	EventRaiseAccepted       = "raise_accepted"
	EventParticipantWithdrew = "participant_withdrew"
	EventTiebreakerCreated   = "tiebreaker_created"
	EventTiebreakerResolved  = "tiebreaker_resolved"
	EventRoundFinalized      = "round_finalized"
)

// BroadcastSink receives best-effort state snapshots for realtime fan-out.
type BroadcastSink interface {
	Broadcast(event string, payload any)
}

type noopNotificationSink struct{}

func (noopNotificationSink) NotifyAllocations(context.Context, []AllocationNotice) {}

type noopBroadcastSink struct{}

func (noopBroadcastSink) Broadcast(string, any) {}
