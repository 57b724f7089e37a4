package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ParseLiteral interprets an authored default literal for t. Surrounding
// whitespace is ignored for every kind except string and custom, booleans
// match "true" or "false" case-insensitively, and dates use the declared
// pattern in UTC. A blank literal yields nil.
func ParseLiteral(t PropertyType, raw string) (any, error) {
	literal := strings.TrimSpace(raw)
	if literal == "" {
		return nil, nil
	}
	switch t.Kind {
	case KindLong:
		return strconv.ParseInt(literal, 10, 64)
	case KindBoolean:
		switch {
		case strings.EqualFold(literal, "true"):
			return true, nil
		case strings.EqualFold(literal, "false"):
			return false, nil
		}
		return nil, errors.New("expected true or false")
	case KindDate:
		pattern := t.DatePattern
		if pattern == "" {
			pattern = DefaultDatePattern
		}
		return time.ParseInLocation(pattern, literal, time.UTC)
	case KindEnum:
		if !t.HasValue(literal) {
			return nil, errors.New("not an allowed value")
		}
		return literal, nil
	default:
		return raw, nil
	}
}
