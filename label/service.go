package label

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"preset-labels/logging"
)

// Service reads and edits the preset label set held in a Store. Every write
// replaces the whole stored value. Against a Store that is not an Updater the
// read-modify-write is not atomic, so two concurrent writers can lose an
// update.
type Service struct {
	store Store
	key   string
	log   logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Service) { s.key = key }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(log logging.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, key: DefaultKey, log: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("key", s.key)
	return s
}

// Key returns the store key the service reads and writes.
func (s *Service) Key() string { return s.key }

// GetLabels returns the stored labels. When nothing has been stored it
// returns a nil slice, which callers must tell apart from a stored empty set
// (a non-nil empty slice).
func (s *Service) GetLabels(ctx context.Context) ([]string, error) {
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, unavailable("get labels", err)
	}
	if !ok {
		return nil, nil
	}
	return s.decode(raw)
}

// AddLabels stores the union of the current set and labels. Invalid UTF-8 is
// replaced with U+FFFD before deduplication, since that is what JSON stores.
func (s *Service) AddLabels(ctx context.Context, labels []string) error {
	return s.modify(ctx, "add labels", func(cur *set) {
		for _, l := range labels {
			cur.add(normalize(l))
		}
	})
}

// RemoveLabel drops label from the set. Removing an absent label still
// rewrites the stored value.
func (s *Service) RemoveLabel(ctx context.Context, label string) error {
	return s.modify(ctx, "remove label", func(cur *set) {
		cur.remove(normalize(label))
	})
}

func (s *Service) modify(ctx context.Context, op string, edit func(*set)) error {
	apply := func(raw string, ok bool) (string, error) {
		var labels []string
		if ok {
			var err error
			if labels, err = s.decode(raw); err != nil {
				return "", err
			}
		}
		cur := newSet(labels)
		edit(cur)
		return encode(cur)
	}

	if u, ok := s.store.(Updater); ok {
		var fnErr error
		err := u.Update(ctx, s.key, func(old string, ok bool) (string, error) {
			v, err := apply(old, ok)
			fnErr = err
			return v, err
		})
		if fnErr != nil {
			return fnErr
		}
		if err != nil {
			return unavailable(op, err)
		}
		s.log.Debug("labels written", "op", op)
		return nil
	}

	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return unavailable(op, err)
	}
	next, err := apply(raw, ok)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.key, next); err != nil {
		return unavailable(op, err)
	}
	s.log.Debug("labels written", "op", op)
	return nil
}

// decode parses raw. JSON null is treated as no data; a null element is not
// a label and fails like any other malformed value.
func (s *Service) decode(raw string) ([]string, error) {
	var elems []*string
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		s.log.Warn("stored labels are corrupt", "error", err)
		return nil, &ParseError{Key: s.key, Raw: raw, Err: err}
	}
	if elems == nil {
		return nil, nil
	}
	labels := make([]string, len(elems))
	for i, e := range elems {
		if e == nil {
			err := fmt.Errorf("element %d is null", i)
			s.log.Warn("stored labels are corrupt", "error", err)
			return nil, &ParseError{Key: s.key, Raw: raw, Err: err}
		}
		labels[i] = *e
	}
	return labels, nil
}

func normalize(l string) string {
	return strings.ToValidUTF8(l, "\uFFFD")
}

func encode(s *set) (string, error) {
	b, err := json.Marshal(s.slice())
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return string(b), nil
}
