package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"refwallet/config"
	"refwallet/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsProvider manages OpenTelemetry metrics for the ledger
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	codesAssignedCounter       metric.Int64Counter
	referralsAppliedCounter    metric.Int64Counter
	creditGrantedCounter       metric.Float64Counter
	redemptionsCounter         metric.Int64Counter
	creditRedeemedCounter      metric.Float64Counter
	balanceTransactionsCounter metric.Int64Counter
	httpRequestDurationHist    metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mp.config.OTelExportInterval))
	if err := mp.initWithReader(reader); err != nil {
		return err
	}

	// Set as global meter provider
	otel.SetMeterProvider(mp.meterProvider)

	log.Info("Metrics provider initialized successfully")
	return nil
}

// initWithReader builds the meter provider and instruments over reader. Caller holds mu.
func (mp *MetricsProvider) initWithReader(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("refwallet")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.codesAssignedCounter, err = mp.meter.Int64Counter(
		CodesAssignedTotal,
		metric.WithDescription("Total number of referral codes issued"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create codes assigned counter: %w", err)
	}

	mp.referralsAppliedCounter, err = mp.meter.Int64Counter(
		ReferralsAppliedTotal,
		metric.WithDescription("Total number of referral codes applied to fee payments"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create referrals applied counter: %w", err)
	}

	mp.creditGrantedCounter, err = mp.meter.Float64Counter(
		CreditGrantedAmount,
		metric.WithDescription("Credit granted to referrers and referred users"),
	)
	if err != nil {
		return fmt.Errorf("failed to create credit granted counter: %w", err)
	}

	mp.redemptionsCounter, err = mp.meter.Int64Counter(
		RedemptionsTotal,
		metric.WithDescription("Total number of redemptions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create redemptions counter: %w", err)
	}

	mp.creditRedeemedCounter, err = mp.meter.Float64Counter(
		CreditRedeemedAmount,
		metric.WithDescription("Matured credit redeemed from wallets"),
	)
	if err != nil {
		return fmt.Errorf("failed to create credit redeemed counter: %w", err)
	}

	mp.balanceTransactionsCounter, err = mp.meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of wallet balance changes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
	}

	mp.httpRequestDurationHist, err = mp.meter.Float64Histogram(
		HTTPRequestDuration,
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create http request duration histogram: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Attach records ledger metrics from committed events on the bus
func (mp *MetricsProvider) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		mp.RecordEvent(ctx, event)
	})
}

// RecordEvent updates the counters for a single ledger event
func (mp *MetricsProvider) RecordEvent(ctx context.Context, event events.Event) {
	if !mp.isEnabled() {
		return
	}

	switch e := event.(type) {
	case events.CodeAssignedEvent:
		mp.codesAssignedCounter.Add(ctx, 1)

	case events.ReferralAppliedEvent:
		attrs := metric.WithAttributes(attribute.String(LabelSport, e.Sport))
		mp.referralsAppliedCounter.Add(ctx, 1, attrs)
		// Both sides receive the same amount
		mp.creditGrantedCounter.Add(ctx, 2*e.CreditAmount.InexactFloat64(), attrs)

	case events.CreditRedeemedEvent:
		attrs := metric.WithAttributes(attribute.String(LabelSport, e.Sport))
		mp.redemptionsCounter.Add(ctx, 1, attrs)
		mp.creditRedeemedCounter.Add(ctx, e.Amount.InexactFloat64(), attrs)

	case events.BalanceChangeEvent:
		mp.balanceTransactionsCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelType, string(e.TransactionType))),
		)
	}
}

// RecordHTTPRequest records the duration of a served request
func (mp *MetricsProvider) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	mp.httpRequestDurationHist.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(
			attribute.String(LabelMethod, method),
			attribute.String(LabelRoute, route),
			attribute.String(LabelStatus, strconv.Itoa(status)),
		),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meterProvider != nil
}
