package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dnakit/internal/config"
	"dnakit/internal/logging"
	"dnakit/internal/metrics"
	"dnakit/internal/models"
	"dnakit/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	cacheKeyServices = "dnakit:lookup:services"
	cacheKeyUsers    = "dnakit:lookup:users"

	maxBodySize = 8 << 20
)

// Client talks to the booking backend. The caller's bearer token is
// forwarded on every request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	maxBody    int64

	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(cfg config.UpstreamConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = models.DefaultUpstreamTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logging.Component(logger, "upstream"),
		maxBody: maxBodySize,
	}
}

// UseRedisCache caches the service and staff lookup tables.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) ListBookings(ctx context.Context) ([]models.Booking, error) {
	var wire []wireBooking
	if err := c.getList(ctx, "appointments.list", "/Appointments", &wire); err != nil {
		return nil, err
	}

	out := make([]models.Booking, 0, len(wire))
	for _, w := range wire {
		b, err := w.toModel()
		if err != nil {
			c.logger.Warn().Err(err).Str("booking_id", firstOf(w.BookingID, w.ID)).Msg("dropping booking with unrecognized fields")
			metrics.IncDegraded("booking_rejected")
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var wire wireBooking
	if err := c.getOne(ctx, "appointments.get", "/Appointments/"+url.PathEscape(bookingID), &wire); err != nil {
		return nil, err
	}
	b, err := wire.toModel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &b, nil
}

// UpdateBooking writes the full booking object back.
func (c *Client) UpdateBooking(ctx context.Context, bookingID string, upd models.BookingUpdate) error {
	return c.send(ctx, "appointments.update", http.MethodPut, "/Appointments/"+url.PathEscape(bookingID), upd)
}

// CancelBooking is a logical cancel on the backend; the record stays.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	return c.send(ctx, "appointments.cancel", http.MethodDelete, "/Appointments/"+url.PathEscape(bookingID), nil)
}

func (c *Client) ListServices(ctx context.Context) ([]models.Service, error) {
	var out []models.Service
	if c.readCache(ctx, cacheKeyServices, &out) {
		return out, nil
	}

	var wire []wireService
	if err := c.getList(ctx, "services.list", "/Services", &wire); err != nil {
		return nil, err
	}
	out = make([]models.Service, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toModel())
	}
	c.writeCache(ctx, cacheKeyServices, out)
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if c.readCache(ctx, cacheKeyUsers, &out) {
		return out, nil
	}

	var wire []wireUser
	if err := c.getList(ctx, "users.list", "/User", &wire); err != nil {
		return nil, err
	}
	out = make([]models.User, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toModel())
	}
	c.writeCache(ctx, cacheKeyUsers, out)
	return out, nil
}

// GetKitByBooking returns ErrNotFound when the booking has no kit.
func (c *Client) GetKitByBooking(ctx context.Context, bookingID string) (*models.Kit, error) {
	data, err := c.get(ctx, "kit.by_booking", "/Kit/by-booking/"+url.PathEscape(bookingID))
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, ErrNotFound
	}

	var wire wireKit
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	kit, err := wire.toModel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if kit.BookingID == "" {
		kit.BookingID = bookingID
	}
	return &kit, nil
}

// ListKits skips kits whose status is not recognized.
func (c *Client) ListKits(ctx context.Context) ([]models.Kit, error) {
	var wire []wireKit
	if err := c.getList(ctx, "kit.list", "/Kit", &wire); err != nil {
		return nil, err
	}

	out := make([]models.Kit, 0, len(wire))
	for _, w := range wire {
		kit, err := w.toModel()
		if err != nil {
			c.logger.Warn().Err(err).Str("kit_id", firstOf(w.KitID, w.ID)).Msg("skipping kit with unrecognized status")
			metrics.IncDegraded("kit_rejected")
			continue
		}
		out = append(out, kit)
	}
	return out, nil
}

// CreateKit posts a new kit. When the backend echoes the created object it
// is returned, otherwise the submitted kit is.
func (c *Client) CreateKit(ctx context.Context, kit models.Kit) (*models.Kit, error) {
	body := kitCreateBody{
		BookingID:   kit.BookingID,
		CustomerID:  kit.CustomerID,
		StaffID:     kit.StaffID,
		Description: kit.Description,
		ReceiveDate: kit.ReceiveDate,
		Address:     kit.Address,
		Status:      kit.Status,
	}
	data, err := c.do(ctx, "kit.create", http.MethodPost, "/Kit", body)
	if err != nil {
		return nil, err
	}

	created := kit
	var wire wireKit
	if len(bytes.TrimSpace(data)) > 0 && json.Unmarshal(data, &wire) == nil {
		if echoed, err := wire.toModel(); err == nil && echoed.KitID != "" {
			created = echoed
		}
	}
	return &created, nil
}

func (c *Client) UpdateKitStatus(ctx context.Context, kitID string, status models.KitStatus) error {
	return c.send(ctx, "kit.update", http.MethodPut, "/Kit/"+url.PathEscape(kitID), kitStatusBody{Status: status})
}

func (c *Client) getList(ctx context.Context, endpoint, path string, out any) error {
	data, err := c.get(ctx, endpoint, path)
	if err != nil {
		return err
	}
	return decodeList(data, out)
}

func (c *Client) getOne(ctx context.Context, endpoint, path string, out any) error {
	data, err := c.get(ctx, endpoint, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	return c.do(ctx, endpoint, http.MethodGet, path, nil)
}

func (c *Client) send(ctx context.Context, endpoint, method, path string, body any) error {
	_, err := c.do(ctx, endpoint, method, path, body)
	return err
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := session.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncUpstream(endpoint, "transport_error")
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		metrics.IncUpstream(endpoint, "transport_error")
		return nil, fmt.Errorf("upstream %s: read body: %w", endpoint, err)
	}
	if int64(len(data)) > c.maxBody {
		metrics.IncUpstream(endpoint, "too_large")
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrTooLarge, endpoint, c.maxBody)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream call")

	if resp.StatusCode >= 300 {
		metrics.IncUpstream(endpoint, fmt.Sprintf("http_%d", resp.StatusCode))
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: serverMessage(data)}
	}
	metrics.IncUpstream(endpoint, "ok")
	return data, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug().Err(err).Str("key", key).Msg("lookup cache read failed")
		}
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("lookup cache write failed")
	}
}
