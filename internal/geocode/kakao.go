// Package geocode resolves store addresses to coordinates through the
// Kakao Local API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/model"
)

// DefaultEndpoint is the Kakao address search API.
const DefaultEndpoint = "https://dapi.kakao.com/v2/local/search/address.json"

var tracer = otel.Tracer("store-reservation/geocode")

// Kakao is a Geocoder backed by the Kakao Local API.
type Kakao struct {
	restKey  string
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewKakao returns a client authenticating with restKey.  An empty
// endpoint selects DefaultEndpoint.
func NewKakao(restKey, endpoint string, log *zap.Logger) *Kakao {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Kakao{
		restKey:  restKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log,
	}
}

type addressResponse struct {
	Documents []struct {
		AddressName string `json:"address_name"`
		X           string `json:"x"`
		Y           string `json:"y"`
	} `json:"documents"`
}

// Geocode returns the coordinates of the first match for address.  No
// match yields model.ErrNotFound.
func (k *Kakao) Geocode(ctx context.Context, address string) (lat, lng float64, err error) {
	ctx, span := tracer.Start(ctx, "geocode.Kakao")
	defer span.End()
	span.SetAttributes(attribute.String("address", address))

	u := k.endpoint + "?" + url.Values{"query": {address}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Authorization", "KakaoAK "+k.restKey)

	resp, err := k.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, 0, fmt.Errorf("kakao request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		k.log.Warn("kakao geocode rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", msg))
		return 0, 0, fmt.Errorf("kakao geocode: unexpected status %d", resp.StatusCode)
	}

	var body addressResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("kakao decode: %w", err)
	}
	if len(body.Documents) == 0 {
		return 0, 0, fmt.Errorf("address %q: %w", address, model.ErrNotFound)
	}

	doc := body.Documents[0]
	if lat, err = strconv.ParseFloat(doc.Y, 64); err != nil {
		return 0, 0, fmt.Errorf("kakao latitude %q: %w", doc.Y, err)
	}
	if lng, err = strconv.ParseFloat(doc.X, 64); err != nil {
		return 0, 0, fmt.Errorf("kakao longitude %q: %w", doc.X, err)
	}
	return lat, lng, nil
}
