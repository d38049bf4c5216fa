package config

// HTTP configures the HTTP surface.
type HTTP struct {
	Port      uint32 `env:"HTTP_PORT" envDefault:"5000" validate:"gt=0,lte=65535"`
	StaticDir string `env:"HTTP_STATIC_DIR" envDefault:"frontend" validate:"required"`
	JSDir     string `env:"HTTP_JS_DIR" envDefault:"frontend/js" validate:"required"`

	CorsAllowedOrigins []string `env:"HTTP_CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Body Body
}

// Body is the single limit applied to every parsed request body.
type Body struct {
	// Limit is the maximum accepted body size in bytes, for JSON and URL-encoded bodies alike.
	Limit int64 `env:"HTTP_BODY_LIMIT" envDefault:"10485760" validate:"gt=0"`
}
