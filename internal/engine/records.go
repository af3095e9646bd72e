package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/classroom/internal/agents"
)

var (
	// ErrMissingActor is returned when an agent-targeted event lists no actors.
	ErrMissingActor = errors.New("agent-targeted event requires at least one actor")
	// ErrMissingWorld is returned when a record has no world ID.
	ErrMissingWorld = errors.New("world id required")
	// ErrTickInProgress is returned when a world is asked to tick while it is
	// already ticking.
	ErrTickInProgress = errors.New("tick already in progress for world")
)

// DayLayout is the calendar-day key format used by daily stats.
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// World is one simulated classroom.
type World struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewWorldID returns a fresh world identifier.
func NewWorldID() string {
	return uuid.NewString()
}

// NewEventID returns a fresh event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// Target says who an event applies to.
type Target string

const (
	TargetAgent Target = "agent" // the listed actors
	TargetClass Target = "class" // every student in the world
)

// Event is an immutable entry in a world's event log.
type Event struct {
	ID        string           `json:"id"`
	World     string           `json:"world_id"`
	Kind      agents.Kind      `json:"kind"`
	Time      time.Time        `json:"time"`
	End       time.Time        `json:"end,omitzero"`
	Target    Target           `json:"target"`
	Actors    []agents.AgentID `json:"actors"`
	Intensity float64          `json:"intensity"`
	Location  string           `json:"location,omitempty"`
	Payload   string           `json:"payload,omitempty"` // opaque JSON
}

// NewEvent validates and normalizes an event before anything is touched.
// Intensity is clamped into [0, 1], an empty target means agent, and class
// events drop their actor list. A missing ID is filled with a UUID.
func NewEvent(e Event) (Event, error) {
	if strings.TrimSpace(e.World) == "" {
		return Event{}, ErrMissingWorld
	}
	switch e.Target {
	case "":
		e.Target = TargetAgent
	case TargetAgent, TargetClass:
	default:
		return Event{}, fmt.Errorf("unknown event target %q", e.Target)
	}
	if e.Kind == "" {
		return Event{}, errors.New("event kind required")
	}

	if e.Target == TargetClass {
		e.Actors = []agents.AgentID{}
	} else {
		actors := make([]agents.AgentID, 0, len(e.Actors))
		for _, a := range e.Actors {
			if a != "" {
				actors = append(actors, a)
			}
		}
		if len(actors) == 0 {
			return Event{}, ErrMissingActor
		}
		e.Actors = actors
	}

	if !e.End.IsZero() && e.End.Before(e.Time) {
		return Event{}, fmt.Errorf("event ends (%s) before it starts (%s)", e.End, e.Time)
	}
	e.Intensity = agents.Clamp01(e.Intensity)
	if e.ID == "" {
		e.ID = NewEventID()
	}
	return e, nil
}

// ActiveAt reports whether e is running at t. Zero End means open-ended.
func (e Event) ActiveAt(t time.Time) bool {
	if t.Before(e.Time) {
		return false
	}
	return e.End.IsZero() || t.Before(e.End)
}

// Concerns reports whether e applies to the given student.
func (e Event) Concerns(id agents.AgentID) bool {
	if e.Target == TargetClass {
		return true
	}
	for _, a := range e.Actors {
		if a == id {
			return true
		}
	}
	return false
}

// Snapshot is an append-only, timestamped copy of one student's numeric state.
type Snapshot struct {
	ID      int64          `json:"id"`
	World   string         `json:"world_id"`
	Agent   agents.AgentID `json:"agent_id"`
	Time    time.Time      `json:"time"`
	Emotion agents.Emotion `json:"emotion"`
	Stress  float64        `json:"stress"`
	Energy  float64        `json:"energy"`
	Risk    float64        `json:"risk"`
}

// SnapshotOf records s at t.
func SnapshotOf(world string, s agents.State, t time.Time) Snapshot {
	return Snapshot{
		World:   world,
		Agent:   s.ID,
		Time:    t,
		Emotion: s.Emotion,
		Stress:  s.Stress,
		Energy:  s.Energy,
		Risk:    s.Risk,
	}
}

// DailyStat is the per-student, per-day rollup. (World, Agent, Day) is unique.
type DailyStat struct {
	World      string         `json:"world_id"`
	Agent      agents.AgentID `json:"agent_id"`
	Day        string         `json:"day"`
	AvgStress  float64        `json:"stress_avg"`
	AvgAnxiety float64        `json:"anxiety_avg"`
	AvgJoy     float64        `json:"joy_avg"`
	Samples    int            `json:"samples"`
	Events     int            `json:"events_count"`
}
