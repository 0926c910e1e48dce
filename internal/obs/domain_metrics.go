package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// PromoApplyTotal counts promo apply attempts by outcome.
	PromoApplyTotal *prometheus.CounterVec
	// ShippingQuoteTotal counts shipping quote lookups by courier and outcome.
	ShippingQuoteTotal *prometheus.CounterVec
	// OrderEmailTotal counts transactional email sends by outcome.
	OrderEmailTotal *prometheus.CounterVec
	// CartLinesDropped counts cart lines dropped during expansion because the
	// product no longer exists.
	CartLinesDropped prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"})
		PromoApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_apply_total",
			Help:      "Count of promo apply attempts by outcome.",
		}, []string{"result"})
		ShippingQuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_quote_total",
			Help:      "Count of shipping quote lookups by courier and outcome.",
		}, []string{"courier", "result"})
		OrderEmailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_email_total",
			Help:      "Count of transactional email sends by outcome.",
		}, []string{"result"})
		CartLinesDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_lines_dropped_total",
			Help:      "Cart lines dropped during expansion due to missing products.",
		})

		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, PromoApplyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoApplyTotal = v
			}
		})
		mustRegisterCollector(reg, ShippingQuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShippingQuoteTotal = v
			}
		})
		mustRegisterCollector(reg, OrderEmailTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderEmailTotal = v
			}
		})
		mustRegisterCollector(reg, CartLinesDropped, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartLinesDropped = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
