package notify

import (
	"context"
	"errors"
	"fmt"
)

// Multi рассылает событие всем publishers; ошибка одного не мешает остальным
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for i, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("publisher %d (%T): %w", i, p, err))
		}
	}
	return errors.Join(errs...)
}
