package core

import (
	"sort"

	"github.com/lawfx/ScrumPokerServer/internal/proto"
)

// Task is one estimate round inside a room, identified by a free-form label.
// Estimates are set-once per user.
type Task struct {
	id        string
	estimates map[string]float64
}

func newTask(id string) *Task {
	return &Task{
		id:        id,
		estimates: make(map[string]float64),
	}
}

// ID returns the task label chosen by the admin.
func (t *Task) ID() string {
	return t.id
}

// addEstimate records a vote for the named user. A second vote from the same
// user is rejected with ErrAlreadyEstimated and leaves the first one intact.
func (t *Task) addEstimate(name string, value float64) error {
	if t.hasEstimated(name) {
		return ErrAlreadyEstimated
	}
	t.estimates[name] = value
	return nil
}

func (t *Task) hasEstimated(name string) bool {
	_, ok := t.estimates[name]
	return ok
}

// hasEveryoneEstimated reports whether every user in the roster has a recorded
// vote. It compares counts rather than set difference, so estimates from users
// who have since left the room do not block completion.
func (t *Task) hasEveryoneEstimated(roster []*User) bool {
	voted := 0
	for _, u := range roster {
		if t.hasEstimated(u.Name()) {
			voted++
		}
	}
	return voted == len(roster)
}

// estimateList returns the recorded votes sorted by username for deterministic
// broadcasts.
func (t *Task) estimateList() []proto.TaskEstimate {
	list := make([]proto.TaskEstimate, 0, len(t.estimates))
	for name, value := range t.estimates {
		list = append(list, proto.TaskEstimate{Name: name, Estimate: value})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
