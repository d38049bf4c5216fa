package config

import "github.com/tuanvumaihuynh/ledger/internal/event"

// Kafka configures the optional sweep report producer. Publishing is disabled
// when no address is set.
type Kafka struct {
	Addresses  []string `env:"KAFKA_ADDRESSES" envSeparator:","`
	SweepTopic string   `env:"KAFKA_SWEEP_TOPIC"`
}

// Enabled reports whether a broker address was configured.
func (k Kafka) Enabled() bool {
	return len(k.Addresses) > 0
}

// ReportTopic is the topic sweep reports are published to.
func (k Kafka) ReportTopic() string {
	if k.SweepTopic == "" {
		return event.TopicInvoiceOverdueSwept
	}
	return k.SweepTopic
}
