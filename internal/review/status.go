package review

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Status is the review decision recorded against a single proposal.
type Status int

const (
	StatusPending  Status = iota + 1 // Awaiting a decision.
	StatusAccepted                   // Accepted as generated.
	StatusEdited                     // Accepted with modified text.
	StatusRejected                   // Excluded from the commit.
)

var (
	statusNames = [...]string{
		StatusPending:  "pending",
		StatusAccepted: "accepted",
		StatusEdited:   "edited",
		StatusRejected: "rejected",
	}
	statusByName = map[string]Status{
		"pending":  StatusPending,
		"accepted": StatusAccepted,
		"edited":   StatusEdited,
		"rejected": StatusRejected,
	}
)

var (
	_ fmt.Stringer             = Status(0)
	_ json.Marshaler           = Status(0)
	_ json.Unmarshaler         = (*Status)(nil)
	_ encoding.TextMarshaler   = Status(0)
	_ encoding.TextUnmarshaler = (*Status)(nil)
)

func (s Status) String() string {
	if s.IsValid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) IsValid() bool {
	return s >= StatusPending && s <= StatusRejected
}

// Accepted reports whether the proposal would be included in a commit.
func (s Status) Accepted() bool {
	return s == StatusAccepted || s == StatusEdited
}

// Reviewed reports whether a decision has been made.
func (s Status) Reviewed() bool {
	return s.IsValid() && s != StatusPending
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid proposal status: %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	v, ok := statusByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid proposal status: %q", text)
	}
	*s = v
	return nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid proposal status: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}
