package treatment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/notification"
)

// Notifier renders and delivers a templated notification.
// *notification.Manager satisfies it.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) FindAll(ctx context.Context) ([]*PatientTreatment, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

func (s *Service) FindOne(ctx context.Context, id int) (*PatientTreatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("patient treatment", id)
		}
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// SendPaymentStatusUpdate emails the payment summary for the listed
// treatment codes. Every code must exist. Delivery happens before it returns.
func (s *Service) SendPaymentStatusUpdate(ctx context.Context, req PaymentStatusUpdateRequest) (*notification.Notification, error) {
	found, err := s.repo.GetByCodes(ctx, req.TreatmentIDs)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	known := make(map[string]bool, len(found))
	for _, t := range found {
		known[t.TreatmentCode] = true
	}
	var missing []string
	for _, code := range req.TreatmentIDs {
		if !known[code] {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NotFound("patient treatment", strings.Join(missing, ", "))
	}

	data := map[string]string{
		"name":          req.Name,
		"amount":        fmt.Sprintf("%.2f", req.Amount),
		"treatment_ids": strings.Join(req.TreatmentIDs, ", "),
	}
	n, err := s.notifier.SendFromTemplate(ctx, notification.TemplatePaymentStatusUpdate, data, req.Email)
	if err != nil {
		if n == nil {
			return nil, apperr.Internal(err)
		}
		return n, apperr.Unavailable("email delivery failed", err)
	}
	return n, nil
}
