package config

import (
	"time"
)

type DB struct {
	Url string `envconfig:"URL"`
	// RunMigrations applies the embedded SQL migrations on startup.
	RunMigrations   bool          `envconfig:"RUN_MIGRATIONS" default:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	PingTimeout     time.Duration `envconfig:"PING_TIMEOUT" default:"5s"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:""`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"giftfund:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

//revive:disable
type Stripe struct {
	ApiKey        string `envconfig:"API_KEY"`
	SigningSecret string `envconfig:"SIGNING_SECRET"`
	Country       string `envconfig:"COUNTRY" default:"US"`
	Currency      string `envconfig:"CURRENCY" default:"usd"`
	// CallTimeout bounds every individual call to the Stripe API.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"15s"`
	// Circuit breaker around the Stripe client.
	BreakerMaxRequests uint32        `envconfig:"BREAKER_MAX_REQUESTS" default:"3"`
	BreakerInterval    time.Duration `envconfig:"BREAKER_INTERVAL" default:"30s"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"10s"`
	// Test-mode conveniences. Ignored in live mode.
	WelcomeCreditAmount     int64 `envconfig:"WELCOME_CREDIT_AMOUNT" default:"500"`
	TestAuthorizationAmount int64 `envconfig:"TEST_AUTHORIZATION_AMOUNT" default:"1000"`
}

//revive:enable

// Public holds the externally reachable URLs handed to Stripe.
type Public struct {
	BaseURL               string `envconfig:"BASE_URL" default:"http://localhost:3000"`
	OnboardingReturnPath  string `envconfig:"ONBOARDING_RETURN_PATH" default:"/onboarding/return"`
	OnboardingRefreshPath string `envconfig:"ONBOARDING_REFRESH_PATH" default:"/onboarding/refresh"`
	ProfilePath           string `envconfig:"PROFILE_PATH" default:"/u"`
}

type Lock struct {
	TTL  time.Duration `envconfig:"TTL" default:"30s"`
	Wait time.Duration `envconfig:"WAIT" default:"5s"`
}

type EventBus struct {
	Driver string `envconfig:"DRIVER" default:"memory"`
	Stream string `envconfig:"STREAM" default:"giftfund.custodial"`
	Group  string `envconfig:"GROUP" default:"giftfund"`
	Kafka  *Kafka `envconfig:"KAFKA"`
}

// Kafka is only read when the event bus driver is "kafka".
type Kafka struct {
	Brokers       string `envconfig:"BROKERS" default:"localhost:9092"`
	TopicPrefix   string `envconfig:"TOPIC_PREFIX" default:"giftfund.custodial"`
	SASLUsername  string `envconfig:"SASL_USERNAME"`
	SASLPassword  string `envconfig:"SASL_PASSWORD"`
	TLSEnabled    bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCAFile     string `envconfig:"TLS_CA_FILE"`
	TLSSkipVerify bool   `envconfig:"TLS_SKIP_VERIFY" default:"false"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[giftfund]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Auth      *Auth      `envconfig:"AUTH"`
	Redis     *Redis     `envconfig:"REDIS"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Stripe    *Stripe    `envconfig:"STRIPE"`
	Public    *Public    `envconfig:"PUBLIC"`
	Lock      *Lock      `envconfig:"LOCK"`
	EventBus  *EventBus  `envconfig:"EVENTBUS"`
	// Mode is derived from Stripe.ApiKey once at load time.
	Mode Mode `ignored:"true"`
}
