package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/udp"
	"go.uber.org/zap"

	"meshscope/internal/domain"
	"meshscope/internal/logging"
)

// CoAPConfig holds settings for the CoAP requester
type CoAPConfig struct {
	// Port is the UDP port nodes listen on
	Port int
	// Path is the resource queried on every node
	Path string
	// AckTimeout is the initial acknowledgement timeout of a confirmable request
	AckTimeout time.Duration
	// MaxRetransmit is the maximum number of retransmissions
	MaxRetransmit int
}

// DefaultCoAPConfig returns the settings used by mesh nodes out of the box
func DefaultCoAPConfig() CoAPConfig {
	return CoAPConfig{
		Port:          5683,
		Path:          "/devscan",
		AckTimeout:    1 * time.Second,
		MaxRetransmit: 3,
	}
}

// ExchangeLifetime is the longest a confirmable exchange can take before
// retransmissions are exhausted (ack timeout doubled on each retransmit,
// plus the random factor of 1.5).
func (c CoAPConfig) ExchangeLifetime() time.Duration {
	total := time.Duration(0)
	timeout := c.AckTimeout
	for i := 0; i <= c.MaxRetransmit; i++ {
		total += timeout
		timeout *= 2
	}
	return total * 3 / 2
}

// CoAPClient issues GET requests for the devscan resource over UDP
type CoAPClient struct {
	config    CoAPConfig
	publisher EventPublisher
	mu        sync.RWMutex
}

// NewCoAPClient creates a CoAP requester
func NewCoAPClient(config CoAPConfig) *CoAPClient {
	def := DefaultCoAPConfig()
	if config.Port == 0 {
		config.Port = def.Port
	}
	if config.Path == "" {
		config.Path = def.Path
	}
	if config.AckTimeout <= 0 {
		config.AckTimeout = def.AckTimeout
	}
	if config.MaxRetransmit < 0 {
		config.MaxRetransmit = def.MaxRetransmit
	}
	return &CoAPClient{config: config}
}

// SetEventPublisher sets the receiver of diagnostic events
func (c *CoAPClient) SetEventPublisher(pub EventPublisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher = pub
}

func (c *CoAPClient) publish(eventType string, payload interface{}) {
	c.mu.RLock()
	pub := c.publisher
	c.mu.RUnlock()
	if pub != nil {
		pub.PublishDiscoveryEvent(eventType, payload)
	}
}

// Target returns the UDP endpoint for addr
func (c *CoAPClient) Target(addr domain.Address) string {
	return net.JoinHostPort(string(addr), strconv.Itoa(c.config.Port))
}

// Request sends a confirmable GET for the devscan resource and returns the payload
func (c *CoAPClient) Request(ctx context.Context, addr domain.Address) ([]byte, error) {
	target := c.Target(addr)

	conn, err := udp.Dial(target,
		options.WithTransmission(1, c.config.AckTimeout, uint32(c.config.MaxRetransmit)),
	)
	if err != nil {
		c.publish(EventRequestFailed, map[string]interface{}{
			"address": addr,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.ExchangeLifetime())
	defer cancel()

	logging.Debug("CoAP request",
		zap.String("target", target),
		zap.String("path", c.config.Path),
	)
	c.publish(EventRequestSent, map[string]interface{}{
		"address": addr,
		"path":    c.config.Path,
	})

	resp, err := conn.Get(reqCtx, c.config.Path)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			c.publish(EventRequestTimedOut, map[string]interface{}{
				"address":        addr,
				"max_retransmit": c.config.MaxRetransmit,
			})
			return nil, fmt.Errorf("devscan of %s: %w", addr, ErrTimeout)
		}
		c.publish(EventRequestFailed, map[string]interface{}{
			"address": addr,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("devscan of %s: %w", addr, err)
	}

	if !isSuccess(resp.Code()) {
		c.publish(EventRequestFailed, map[string]interface{}{
			"address": addr,
			"code":    resp.Code().String(),
		})
		return nil, &StatusError{Address: addr, Code: resp.Code().String()}
	}

	body, err := resp.ReadBody()
	if err != nil {
		return nil, fmt.Errorf("read devscan body from %s: %w", addr, err)
	}

	c.publish(EventResponse, map[string]interface{}{
		"address":        addr,
		"bytes_received": len(body),
		"code":           resp.Code().String(),
	})
	logging.Debug("CoAP response",
		zap.String("target", target),
		zap.Int("bytes", len(body)),
	)

	return body, nil
}

// isSuccess reports whether code is in the 2.xx class
func isSuccess(code codes.Code) bool {
	return code>>5 == 2
}
