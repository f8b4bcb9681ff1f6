package param

import (
	"context"
	"fmt"
)

// Overlay is a set of optional annotations applied to a parameter.
// Nil pointer fields leave the current metadata untouched, so an overlay
// can adjust a single property without restating the rest.
type Overlay struct {
	Label   string
	Unit    string
	Scale   *float64
	Limits  *Limits
	Monitor *bool
}

// Apply annotates the parameter with the overlay. The metadata is replaced
// atomically; concurrent readers keep a consistent snapshot.
func (o Overlay) Apply(p *Parameter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	meta := *p.metadata

	if o.Label != "" {
		meta.Label = o.Label
	}
	if o.Unit != "" {
		meta.Unit = o.Unit
	}
	if o.Scale != nil {
		if *o.Scale == 0 {
			return fmt.Errorf("%s: %w", meta.Name, ErrZeroScale)
		}
		if meta.Kind != KindFloat && meta.Kind != KindInt {
			return fmt.Errorf("%s: %w: scale requires a numeric parameter", meta.Name, ErrValueType)
		}
		meta.Scale = *o.Scale
	}
	if o.Limits != nil {
		if err := o.Limits.Validate(); err != nil {
			return fmt.Errorf("%s: %w", meta.Name, err)
		}
		l := *o.Limits
		meta.Limits = &l
	}
	if o.Monitor != nil {
		meta.Monitor = *o.Monitor
	}

	p.metadata = &meta
	return nil
}

// Delegate creates a derived parameter bound to a source parameter.
// The delegate's raw domain is the source's user-facing value: setting the
// delegate to v drives the source to v * scale, reading divides back.
// The unit falls back to the source's when the overlay leaves it empty.
func Delegate(name string, src *Parameter, o Overlay) (*Parameter, error) {
	srcMeta := src.Metadata()

	if o.Scale != nil && *o.Scale == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrZeroScale)
	}
	if srcMeta.Kind != KindFloat && srcMeta.Kind != KindInt {
		if o.Scale != nil || o.Limits != nil {
			return nil, fmt.Errorf("%s: %w: scale/limits require a numeric source", name, ErrValueType)
		}
	}

	meta := &Metadata{
		Name:   name,
		Label:  o.Label,
		Unit:   srcMeta.Unit,
		Kind:   srcMeta.Kind,
		Access: srcMeta.Access,
		Scale:  1,
	}
	if o.Unit != "" {
		meta.Unit = o.Unit
	}
	if o.Scale != nil {
		meta.Scale = *o.Scale
	}
	if o.Limits != nil {
		l := *o.Limits
		meta.Limits = &l
	}
	if o.Monitor != nil {
		meta.Monitor = *o.Monitor
	}

	getter := func(ctx context.Context) (any, error) {
		return src.Get(ctx)
	}
	var setter SetFunc
	if srcMeta.Access.CanWrite() {
		setter = func(ctx context.Context, raw any) error {
			return src.Set(ctx, raw)
		}
	}

	return New(meta, getter, setter)
}
