package chain

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// FailoverSource tries a list of header sources in order and returns the
// first successful header. A flaky primary endpoint then only degrades the
// clock when every configured fallback is down too.
type FailoverSource struct {
	sources []HeaderSource
	logger  *zap.SugaredLogger
}

// NewFailoverSource composes sources in priority order. Nil entries are
// skipped; an empty list behaves like a permanently failing source, which
// the Clock turns into a local-time fallback.
func NewFailoverSource(logger *zap.SugaredLogger, sources ...HeaderSource) *FailoverSource {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	kept := make([]HeaderSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FailoverSource{sources: kept, logger: logger}
}

// LatestHeader queries each source in order until one succeeds. The joined
// error of every attempt propagates when all fail, so the caller sees why
// the whole chain was unreachable rather than only the last endpoint.
func (f *FailoverSource) LatestHeader(ctx context.Context) (*Header, error) {
	if len(f.sources) == 0 {
		return nil, errors.New("no header sources configured")
	}

	var errs []error
	for i, src := range f.sources {
		header, err := src.LatestHeader(ctx)
		if err == nil && header != nil {
			if i > 0 {
				f.logger.Warnw("Chain header served by fallback source", "source_index", i)
			}
			return header, nil
		}
		if err == nil {
			err = errors.New("source returned no header")
		}
		errs = append(errs, err)

		// A cancelled context fails every remaining source the same way;
		// stop early instead of reporting N copies of the deadline.
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

var _ HeaderSource = (*FailoverSource)(nil)
