package model

import (
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/trace"
)

// CheckProperties runs each property over steps, stopping at the first
// evaluation error.
func CheckProperties(steps []trace.Step, props []Property) ([]PropertyResult, error) {
	out := make([]PropertyResult, 0, len(props))
	for _, prop := range props {
		result, err := prop.Check(steps)
		if err != nil {
			return out, err
		}
		log.Trace().Str("property", prop.Name()).Bool("success", result.Success).Msg("checked property")
		out = append(out, result)
	}
	return out, nil
}
