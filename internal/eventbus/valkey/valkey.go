// Package valkey provides a Redis/Valkey-backed eventbus.Bus driver using
// valkey-go Pub/Sub, so that conduit_updated and status_changed fan out
// across backend processes (§4.C). Fail-fast: startup fails if the server
// is unreachable.
package valkey

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/valkey-io/valkey-go"

	"github.com/scille-labs/invite-conduit/internal/eventbus"
)

func init() {
	eventbus.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "valkey" }

func (driver) Open(ctx context.Context, cfg map[string]any) (eventbus.Bus, error) {
	c := DefaultConfig()
	if len(cfg) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &c,
			TagName:          "mapstructure",
			WeaklyTypedInput: true, // TOML/JSON decode numbers as float64; accept that for DB/db.
		})
		if err != nil {
			return nil, fmt.Errorf("valkey eventbus: build config decoder: %w", err)
		}
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("valkey eventbus: decode config: %w", err)
		}
	}
	return New(c)
}

// Config holds valkey connection configuration.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// DefaultConfig returns sensible defaults for a local valkey/redis instance.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		DialTimeout: 5 * time.Second,
	}
}

// wireEvent is the JSON payload published to an organization's channel.
type wireEvent struct {
	Kind   string `json:"kind"`
	Org    string `json:"org"`
	Token  string `json:"token"`
	Status string `json:"status,omitempty"`
}

func channelFor(org string) string {
	return "invite-conduit:events:" + org
}

// Bus is a valkey/Redis Pub/Sub backed eventbus.Bus.
type Bus struct {
	client valkey.Client
}

// New creates a Bus and fails fast if the server is unreachable.
func New(cfg Config) (*Bus, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		Dialer: net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey eventbus: create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey eventbus: health check: %w", err)
	}

	return &Bus{client: client}, nil
}

func (b *Bus) Publish(ctx context.Context, ev eventbus.Event) error {
	payload, err := json.Marshal(wireEvent{
		Kind:   string(ev.Kind),
		Org:    ev.OrganizationID,
		Token:  hex.EncodeToString(ev.Token[:]),
		Status: ev.Status,
	})
	if err != nil {
		return fmt.Errorf("valkey eventbus: marshal event: %w", err)
	}

	cmd := b.client.B().Publish().Channel(channelFor(ev.OrganizationID)).Message(string(payload)).Build()
	return b.client.Do(ctx, cmd).Error()
}

func (b *Bus) subscribe(ctx context.Context, org string, filterToken *[16]byte) (*eventbus.Subscription, error) {
	out := make(chan eventbus.Event, 16)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		cmd := b.client.B().Subscribe().Channel(channelFor(org)).Build()
		_ = b.client.Receive(subCtx, cmd, func(msg valkey.PubSubMessage) {
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Message), &we); err != nil {
				return
			}
			tokBytes, err := hex.DecodeString(we.Token)
			if err != nil || len(tokBytes) != 16 {
				return
			}
			var tok [16]byte
			copy(tok[:], tokBytes)

			if filterToken != nil && tok != *filterToken {
				return
			}

			ev := eventbus.Event{Kind: eventbus.Kind(we.Kind), OrganizationID: we.Org, Token: tok, Status: we.Status}
			select {
			case out <- ev:
			default:
			}
		})
		close(out)
	}()

	return &eventbus.Subscription{C: out, Close: cancel}, nil
}

func (b *Bus) Subscribe(ctx context.Context, org string, token [16]byte) (*eventbus.Subscription, error) {
	return b.subscribe(ctx, org, &token)
}

func (b *Bus) SubscribeOrg(ctx context.Context, org string) (*eventbus.Subscription, error) {
	return b.subscribe(ctx, org, nil)
}

func (b *Bus) Close() error {
	b.client.Close()
	return nil
}

var _ eventbus.Bus = (*Bus)(nil)
