package storefront

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	logins   *prometheus.CounterVec
	cartAdds prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "login_attempts_total",
			Help:      "Login form submissions by outcome (accepted, rejected, throttled).",
		}, []string{"outcome"}),
		cartAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cart_adds_total",
			Help:      "Products added to a cart.",
		}),
	}
	for _, c := range []prometheus.Collector{m.logins, m.cartAdds} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register storefront metrics: %w", err)
		}
	}
	return m, nil
}
