package cas

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/trace"
)

// Traces memoizes analysis results in a CAS, keyed by program text and the
// engine options that narrated it.
type Traces struct {
	Store  CAS
	Engine *engine.Engine
}

func NewTraces(store CAS, e *engine.Engine) *Traces {
	return &Traces{Store: store, Engine: e}
}

func (t *Traces) key(source string) string {
	o := t.Engine.Options()
	return fmt.Sprintf("%s@%d.%d.%d", trace.IDForSource(source), o.ValueWidth, o.DescriptionWidth, o.FallbackLines)
}

// Get returns the stored trace for source, analyzing and storing it on a miss.
func (t *Traces) Get(source string) (*trace.Trace, Hash, error) {
	key := t.key(source)
	h, ok, err := t.Store.Lookup(key)
	if err != nil {
		return nil, 0, err
	}
	if ok {
		tr, err := Retrieve[*trace.Trace](t.Store, h)
		if err == nil {
			log.Trace().Str("key", key).Str("hash", h.String()).Msg("trace cache hit")
			return tr, h, nil
		}
		log.Warn().Err(err).Str("key", key).Msg("stored trace unreadable, re-analyzing")
	}

	tr := t.Engine.Trace(source)
	h, err = t.Store.Put(tr)
	if err != nil {
		return nil, 0, fmt.Errorf("storing trace: %w", err)
	}
	if err := t.Store.Bind(key, h); err != nil {
		return nil, 0, err
	}
	if err := t.Store.Bind(tr.ID, h); err != nil {
		return nil, 0, err
	}
	return tr, h, nil
}

// Resolve finds a stored trace by hash string or trace ID.
func Resolve(store CAS, ref string) (*trace.Trace, error) {
	if h, ok, err := store.Lookup(ref); err != nil {
		return nil, err
	} else if ok {
		return Retrieve[*trace.Trace](store, h)
	}
	h, err := ParseHash(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return Retrieve[*trace.Trace](store, h)
}
