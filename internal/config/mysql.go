package config

import "time"

// MySQL holds the connection settings shared by the diagnostic connection and the pool.
// Credentials have no fallback values: the process refuses to start without them.
type MySQL struct {
	Host     string `env:"DB_HOST,required" validate:"required"`
	Port     int    `env:"DB_PORT" envDefault:"3306" validate:"gt=0,lte=65535"`
	User     string `env:"DB_USER,required" validate:"required"`
	Password string `env:"DB_PASSWORD,required"`
	Name     string `env:"DB_NAME,required" validate:"required"`

	ConnectionLimit int `env:"DB_CONNECTION_LIMIT" envDefault:"10" validate:"gte=1"`
	// QueueLimit caps callers waiting for a connection; 0 means unlimited.
	QueueLimit int `env:"DB_QUEUE_LIMIT" envDefault:"0" validate:"gte=0"`

	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	AcquireTimeout time.Duration `env:"DB_ACQUIRE_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	IdleTimeout    time.Duration `env:"DB_IDLE_TIMEOUT" envDefault:"60s" validate:"gt=0"`

	KeepAlive             bool          `env:"DB_KEEP_ALIVE" envDefault:"true"`
	KeepAliveInitialDelay time.Duration `env:"DB_KEEP_ALIVE_INITIAL_DELAY" envDefault:"0s" validate:"gte=0"`
	HealthCheckInterval   time.Duration `env:"DB_HEALTH_CHECK_INTERVAL" envDefault:"30s" validate:"gt=0"`
	RecreateMinInterval   time.Duration `env:"DB_RECREATE_MIN_INTERVAL" envDefault:"1s" validate:"gte=0"`
}
