package enroll

import (
	"errors"
	"regexp"

	"github.com/redis/go-redis/v9"

	"github.com/tgpanel/enroll/internal/bridge"
	"github.com/tgpanel/enroll/internal/rate"
)

// Builder wires an [Engine]. Configure it fluently, then call Build once.
type Builder struct {
	config Config
	redis  *redis.Client

	clients     ClientFactory
	credentials CredentialStore
	auditSink   AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Zero-valued fields are filled from
// defaults at Build time.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the code-request budget.
// Required while RateLimit.Enabled is true.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithClientFactory supplies the messaging network client factory.
func (b *Builder) WithClientFactory(factory ClientFactory) *Builder {
	b.clients = factory
	return b
}

// WithCredentialStore supplies the durable credential store.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithAuditSink supplies the audit sink. Ignored unless Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and assembles the Engine. A Builder
// builds at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.clients == nil {
		return nil, errors.New("client factory is required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store is required")
	}

	normalizeConfig(&b.config)
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.config.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("redis client is required while rate limiting is enabled")
	}

	e := &Engine{
		config:      b.config,
		attempts:    newLoginAttemptStore(),
		bridge:      bridge.New(),
		clients:     b.clients,
		credentials: b.credentials,
		audit:       newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:     NewMetrics(b.config.Metrics),
		phoneRe:     regexp.MustCompile(b.config.Login.PhonePattern),
		codeRe:      regexp.MustCompile(b.config.Login.ServiceCodePattern),
	}
	if b.config.RateLimit.Enabled {
		e.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:          b.config.RateLimit.RedisPrefix,
			MaxCodeRequests: b.config.RateLimit.MaxCodeRequests,
			Window:          b.config.RateLimit.Window,
		})
	}

	b.built = true
	return e, nil
}
