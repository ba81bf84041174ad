package seeder

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wareshop/counter/internal/entity"
	ordersvc "github.com/wareshop/counter/internal/service/order"
)

// Seeder creates example orders for local/dev setups. Orders go through the
// real service path so numbers, history and audit records stay consistent.
type Seeder struct {
	orders *ordersvc.Service
	logger *zap.Logger
}

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// New constructs a Seeder backed by the order lifecycle service.
func New(orders *ordersvc.Service, logger *zap.Logger) *Seeder {
	return &Seeder{orders: orders, logger: logger}
}

// Orders seeds a handful of demo pickup orders.
func (s *Seeder) Orders(ctx context.Context) error {
	samples := []ordersvc.CreateInput{
		{
			CustomerName:  "Jane Perera",
			CustomerPhone: "0771234567",
			Items:         []entity.Item{{SKU: "X1", Name: "Hammer", Qty: 2}},
			PaymentMethod: "cash",
			StaffName:     "staff1",
		},
		{
			CustomerName:  "Ruwan Silva",
			CustomerPhone: "0719876543",
			Items:         []entity.Item{{SKU: "P-40", Name: "PVC pipe 40mm", Qty: 6}, {SKU: "G-2", Name: "Glue", Qty: 1}},
			PaymentMethod: "card",
			StaffName:     "staff2",
		},
	}

	for _, sample := range samples {
		if _, err := s.orders.Create(ctx, sample); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
