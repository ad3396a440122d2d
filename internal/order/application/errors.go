package application

import (
	"errors"
	"strconv"

	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	pricingdomain "github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

// classify attaches an apperr kind to domain and repository errors; errors
// that already carry a kind pass through.
func classify(err error, key string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperr.NotFound(err, key)
	case errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotSettled),
		errors.Is(err, domain.ErrLinePaid),
		errors.Is(err, domain.ErrLineCancelled):
		return apperr.Conflict(err, key)
	case errors.Is(err, domain.ErrTotalMismatch):
		return apperr.Integrity(err, key)
	case errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrUnknownLine),
		errors.Is(err, domain.ErrDiscountTooLarge),
		errors.Is(err, domain.ErrNegativeAmount),
		errors.Is(err, domain.ErrTableRequired),
		errors.Is(err, domain.ErrScheduleRequired),
		errors.Is(err, domain.ErrInvalidDiningType),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, pricingdomain.ErrManualReason):
		return apperr.Validation(err, key)
	}
	return err
}

func lineKey(line int) string {
	return "line " + strconv.Itoa(line)
}
