package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const countPrefix = "Count "

// Greeting is the message carried on the broker channel: {"hello":"Count N"}.
type Greeting struct {
	Hello string `json:"hello"`
}

// NewCountGreeting builds the greeting for the n-th publish.
func NewCountGreeting(n uint64) Greeting {
	return Greeting{Hello: countPrefix + strconv.FormatUint(n, 10)}
}

// Count parses the counter back out of a greeting produced by NewCountGreeting.
func (g Greeting) Count() (uint64, error) {
	raw, ok := strings.CutPrefix(g.Hello, countPrefix)
	if !ok {
		return 0, fmt.Errorf("greeting %q has no counter", g.Hello)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("greeting %q has no counter: %w", g.Hello, err)
	}
	return n, nil
}
