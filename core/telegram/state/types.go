package state

// Step identifies a finite-state-machine step inside a flow.
type Step string

// Session stores conversation progress and scratch data for a user.
type Session struct {
	Flow string
	Step Step
	Data map[string]any
}

// NewSession returns a session positioned at step of flow with empty scratch data.
func NewSession(flow string, step Step) Session {
	return Session{Flow: flow, Step: step, Data: make(map[string]any)}
}

// With returns a copy of s with key set to value.
func (s Session) With(key string, value any) Session {
	out := s.clone()
	out.Data[key] = value
	return out
}

// At returns a copy of s moved to step.
func (s Session) At(step Step) Session {
	out := s.clone()
	out.Step = step
	return out
}

// String returns the string stored under key.
func (s Session) String(key string) (string, bool) {
	v, ok := s.Data[key].(string)
	return v, ok
}

// Float64 returns the float64 stored under key.
func (s Session) Float64(key string) (float64, bool) {
	v, ok := s.Data[key].(float64)
	return v, ok
}

func (s Session) clone() Session {
	out := Session{Flow: s.Flow, Step: s.Step, Data: make(map[string]any, len(s.Data))}
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}

// Store maps a user to at most one active session.
//
// Get and Set copy sessions so callers never share scratch data. Lock gives
// per-user mutual exclusion for callers that read a session, perform I/O, and
// write it back; holding it across the whole step keeps a user's messages in order.
type Store interface {
	Get(userID int64) (Session, bool)
	Set(userID int64, s Session)
	Clear(userID int64)
	Lock(userID int64) (unlock func())
	Len() int
}
