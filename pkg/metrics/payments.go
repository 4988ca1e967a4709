package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts gateway reconciliation outcomes by reply code.
type PaymentMetrics struct {
	notifyReplies *prometheus.CounterVec
	returnReplies *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	notify := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notify_replies_total",
		Help: "Gateway notify deliveries by terminal reply code.",
	}, []string{"code"})
	ret := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_return_results_total",
		Help: "Browser return verifications by result.",
	}, []string{"code"})
	reg.MustRegister(notify, ret)
	return &PaymentMetrics{notifyReplies: notify, returnReplies: ret}
}

// IncNotifyReply counts a notify delivery resolved with the given reply code.
func (p *PaymentMetrics) IncNotifyReply(code string) {
	if p == nil || p.notifyReplies == nil {
		return
	}
	p.notifyReplies.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncReturnResult counts a browser-return verification result.
func (p *PaymentMetrics) IncReturnResult(code string) {
	if p == nil || p.returnReplies == nil {
		return
	}
	p.returnReplies.WithLabelValues(normalizeLabel(code)).Inc()
}
