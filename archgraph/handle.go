package archgraph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Side is one of the four borders of a node.
type Side int

const (
	SideTop Side = iota
	SideRight
	SideBottom
	SideLeft
)

func (s Side) String() string {
	switch s {
	case SideTop:
		return "top"
	case SideRight:
		return "right"
	case SideBottom:
		return "bottom"
	case SideLeft:
		return "left"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

func ParseSide(str string) (Side, error) {
	switch str {
	case "top":
		return SideTop, nil
	case "right":
		return SideRight, nil
	case "bottom":
		return SideBottom, nil
	case "left":
		return SideLeft, nil
	default:
		return SideTop, fmt.Errorf("unknown side %q", str)
	}
}

// IsHorizontal reports whether the side's outward normal points horizontally.
func (s Side) IsHorizontal() bool {
	return s == SideLeft || s == SideRight
}

func (s Side) Opposite() Side {
	switch s {
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return s
	}
}

// Handle is a discrete connection point on a node border: a side plus a slot
// index in [0, HandlesPerSide). It serializes as "top-3".
type Handle struct {
	Side Side
	Slot int
}

func NewHandle(side Side, slot int) *Handle {
	return &Handle{Side: side, Slot: slot}
}

func (h Handle) String() string {
	return fmt.Sprintf("%s-%d", h.Side, h.Slot)
}

func ParseHandle(str string) (*Handle, error) {
	i := strings.LastIndex(str, "-")
	if i < 0 {
		return nil, fmt.Errorf("malformed handle %q", str)
	}
	side, err := ParseSide(str[:i])
	if err != nil {
		return nil, err
	}
	slot, err := strconv.Atoi(str[i+1:])
	if err != nil || slot < 0 {
		return nil, fmt.Errorf("malformed handle slot in %q", str)
	}
	return NewHandle(side, slot), nil
}

func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Handle) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	parsed, err := ParseHandle(str)
	if err != nil {
		return err
	}
	*h = *parsed
	return nil
}
