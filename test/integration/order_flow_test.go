//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/dmehra2102/cafe-order-core/internal/catalog/application"
	catalogpg "github.com/dmehra2102/cafe-order-core/internal/catalog/infrastructure/postgres"
	invapp "github.com/dmehra2102/cafe-order-core/internal/inventory/application"
	invdomain "github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
	invpg "github.com/dmehra2102/cafe-order-core/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/cafe-order-core/internal/order/application"
	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	orderkafka "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/postgres"
	payapp "github.com/dmehra2102/cafe-order-core/internal/payment/application"
	paydomain "github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	paypg "github.com/dmehra2102/cafe-order-core/internal/payment/infrastructure/postgres"
	pricingapp "github.com/dmehra2102/cafe-order-core/internal/pricing/application"
	pricingpg "github.com/dmehra2102/cafe-order-core/internal/pricing/infrastructure/postgres"
	resapp "github.com/dmehra2102/cafe-order-core/internal/reservation/application"
	resdomain "github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	respg "github.com/dmehra2102/cafe-order-core/internal/reservation/infrastructure/postgres"
	"github.com/dmehra2102/cafe-order-core/migrations"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
	"github.com/dmehra2102/cafe-order-core/pkg/postgres"
)

var (
	env  *Env
	pool *pgxpool.Pool
)

var log = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	if env, err = Setup(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "containers:", err)
		os.Exit(1)
	}
	if pool, err = postgres.Connect(ctx, env.PGURL, log); err != nil {
		env.Teardown(ctx)
		fmt.Fprintln(os.Stderr, "postgres:", err)
		os.Exit(1)
	}
	if err = postgres.Migrate(ctx, pool, migrations.FS, log); err != nil {
		env.Teardown(ctx)
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	code := m.Run()
	pool.Close()
	env.Teardown(ctx)
	os.Exit(code)
}

func newService(t *testing.T) *application.Service {
	t.Helper()
	pricing := pricingpg.NewRepository(log, pool)
	return application.NewService(log, application.Deps{
		Orders:    orderpg.NewRepository(log, pool),
		Catalog:   catalogapp.NewService(catalogpg.NewRepository(log, pool)),
		Stock:     invapp.NewGuard(log, invpg.NewRepository(log, pool)),
		Tables:    resapp.NewAllocator(log, respg.NewRepository(log, pool), 0),
		Fees:      pricingapp.NewFeeService(pricing),
		Discounts: pricingapp.NewDiscountService(log, pricing),
		Payments:  payapp.NewLedger(log, paypg.NewRepository(log, pool)),
	})
}

func seedProduct(t *testing.T, id string, price string, stock int) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `INSERT INTO products (id, name, price, stock_quantity, track_stock, kitchen_item)
		VALUES ($1, $1, $2, $3, true, true)
		ON CONFLICT (id) DO UPDATE SET price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity`, id, price, stock)
	require.NoError(t, err)
}

func stockOf(t *testing.T, id string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock_quantity FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func TestSubmitSettleAndPersist(t *testing.T) {
	ctx := context.Background()
	seedProduct(t, "it-bowl", "25.00", 10)
	svc := newService(t)

	o, err := svc.Submit(ctx, application.SubmitRequest{
		DiningType:   domain.DineIn,
		TableNumber:  3,
		DiscountCode: "fiveoff",
		Items:        []catalogapp.Selection{{ProductID: "it-bowl", Quantity: 2}},
	})
	require.NoError(t, err)
	// seeded service charge is 6% for dine-in
	assert.Equal(t, "48.00", o.Total.StringFixed(2))
	assert.Equal(t, 8, stockOf(t, "it-bowl"))

	stored, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(o.Total))
	require.Len(t, stored.Items, 1)
	require.NotNil(t, stored.Discount)
	assert.Equal(t, "FIVEOFF", stored.Discount.Code)

	res, err := svc.RecordPayment(ctx, o.ID, application.PaymentRequest{Amount: decimal.RequireFromString("24.00"), Method: paydomain.MethodCash, Items: map[int]int{1: 1}})
	require.NoError(t, err)
	assert.False(t, res.Settled)

	res, err = svc.SettleRemaining(ctx, o.ID, paydomain.MethodCard, decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, domain.StatusPaid, res.Order.Status)
	assert.Equal(t, "24.00", res.Payment.Amount.StringFixed(2))

	_, err = svc.RecordPayment(ctx, o.ID, application.PaymentRequest{Amount: decimal.NewFromInt(1), Method: paydomain.MethodCash, Items: map[int]int{1: 1}})
	assert.True(t, apperr.Is(err, apperr.KindIntegrity) || apperr.Is(err, apperr.KindConflict))
}

func TestConcurrentPaymentsNeverOverCover(t *testing.T) {
	ctx := context.Background()
	seedProduct(t, "it-tea", "4.00", 100)
	svc := newService(t)
	o, err := svc.Submit(ctx, application.SubmitRequest{
		DiningType:  domain.DineIn,
		TableNumber: 1,
		Items:       []catalogapp.Selection{{ProductID: "it-tea", Quantity: 3}},
	})
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(ctx, o.ID, application.PaymentRequest{Amount: decimal.RequireFromString("4.24"), Method: paydomain.MethodCash, Items: map[int]int{1: 1}})
			if err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 3, ok.Load())

	bill, err := svc.Bill(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, bill.Payments, 3)
	assert.Equal(t, domain.StatusPaid, bill.Order.Status)
}

func TestConcurrentStockReservations(t *testing.T) {
	ctx := context.Background()
	seedProduct(t, "it-pie", "8.00", 5)
	guard := invapp.NewGuard(log, invpg.NewRepository(log, pool))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := guard.Reserve(ctx, fmt.Sprintf("stock-%d", i), []invdomain.Line{{Line: 1, ProductID: "it-pie", Quantity: 2}})
			if err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 2, ok.Load())
	assert.Equal(t, 1, stockOf(t, "it-pie"))
}

func TestConcurrentReservationsOneTable(t *testing.T) {
	ctx := context.Background()
	allocator := resapp.NewAllocator(log, respg.NewRepository(log, pool), 0)
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := allocator.Allocate(ctx, resapp.Request{
				OrderID:         fmt.Sprintf("res-%d", i),
				Start:           start.Add(time.Duration(i) * 10 * time.Minute),
				PartySize:       4,
				TablePreference: 5,
			})
			if err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, resdomain.ErrTableNoLongerAvailable)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok.Load())
}

func TestDiscountUsageLimitUnderContention(t *testing.T) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `INSERT INTO discount_codes (code, type, value, usage_limit) VALUES ('ONCEONLY', 'fixed', 1, 1)
		ON CONFLICT (code) DO NOTHING`)
	require.NoError(t, err)
	discounts := pricingapp.NewDiscountService(log, pricingpg.NewRepository(log, pool))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if discounts.Redeem(ctx, "ONCEONLY") == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok.Load())
}

func TestOutboxRelayPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	seedProduct(t, "it-soup", "6.00", 10)
	svc := newService(t)
	topic := "order.events.it"

	o, err := svc.Submit(ctx, application.SubmitRequest{
		DiningType:  domain.DineIn,
		TableNumber: 2,
		Items:       []catalogapp.Selection{{ProductID: "it-soup", Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, o.ID, domain.StatusPreparing)
	require.NoError(t, err)

	writer := orderkafka.NewWriter(env.KAddr)
	defer writer.Close()
	relay := outbox.NewRelay(log, outbox.NewPostgresStore(log, pool), outbox.NewDispatcher(log, writer, topic), "it-relay")
	require.Eventually(t, func() bool {
		var pending int
		_, _ = relay.Tick(ctx)
		_ = pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE aggregate_id=$1 AND status <> 'sent'`, o.ID).Scan(&pending)
		return pending == 0
	}, 30*time.Second, 500*time.Millisecond)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: env.KAddr, Topic: topic, GroupID: "it-reader"})
	defer reader.Close()

	var types []string
	for len(types) < 2 {
		msg, err := reader.ReadMessage(ctx)
		require.NoError(t, err)
		if string(msg.Key) != o.ID {
			continue
		}
		for _, h := range msg.Headers {
			if h.Key == "event_type" {
				types = append(types, string(h.Value))
			}
		}
		if len(types) == 2 {
			var ev domain.OrderStatusChanged
			require.NoError(t, json.Unmarshal(msg.Value, &ev))
			assert.Equal(t, domain.StatusPreparing, ev.To)
			assert.Len(t, ev.Lines, 1)
		}
	}
	assert.Equal(t, []string{domain.EventOrderSubmitted, domain.EventOrderStatusChanged}, types)
}
