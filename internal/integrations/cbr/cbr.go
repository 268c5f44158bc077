package cbr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/mortgage-service/internal/cache"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const cacheKey = "cbr:key_rate"

// KeyRate is the Central Bank of Russia key rate plus the bank margin. It is
// reported for reference only; loan evaluation uses a fixed rate.
type KeyRate struct {
	Date    time.Time `json:"date"`
	KeyRate float64   `json:"key_rate"`
	Margin  float64   `json:"margin"`
	Rate    float64   `json:"rate"`
}

// Client handles integration with Central Bank of Russia
type Client struct {
	url    string
	margin float64
	ttl    time.Duration
	client *http.Client
	cache  cache.Cache
	log    *logrus.Logger
	now    func() time.Time
}

// NewClient initializes a new CBR client. Results are cached for ttl.
func NewClient(url string, margin float64, ttl time.Duration, c cache.Cache, log *logrus.Logger) *Client {
	return &Client{
		url:    url,
		margin: margin,
		ttl:    ttl,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: c,
		log:   log,
		now:   time.Now,
	}
}

// buildSOAPRequest creates a SOAP request for the key rate over the last 30 days
func (c *Client) buildSOAPRequest() string {
	now := c.now()
	fromDate := now.AddDate(0, 0, -30).Format("2006-01-02")
	toDate := now.Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<KeyRate xmlns="http://web.cbr.ru/">
					<fromDate>%s</fromDate>
					<ToDate>%s</ToDate>
				</KeyRate>
			</soap12:Body>
		</soap12:Envelope>`, fromDate, toDate)
}

func (c *Client) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR XML response: %s", string(body))
	return body, nil
}

// parseKeyRate extracts the latest rate and its date from a KeyRate response.
// CBR lists rows newest first.
func parseKeyRate(rawBody []byte) (float64, time.Time, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse XML: %w", err)
	}

	krElements := doc.FindElements("//diffgram/KeyRate/KR")
	if len(krElements) == 0 {
		return 0, time.Time{}, fmt.Errorf("no key rate data found in XML")
	}

	latest := krElements[0]
	rateElement := latest.FindElement("./Rate")
	if rateElement == nil {
		return 0, time.Time{}, fmt.Errorf("rate element not found in XML")
	}

	rate, err := strconv.ParseFloat(strings.TrimSpace(rateElement.Text()), 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse rate: %w", err)
	}

	var date time.Time
	if dt := latest.FindElement("./DT"); dt != nil {
		date, err = time.Parse(time.RFC3339, strings.TrimSpace(dt.Text()))
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}

	return rate, date, nil
}

// GetKeyRate retrieves the current key rate from CBR and adds the bank margin
func (c *Client) GetKeyRate(ctx context.Context) (*KeyRate, error) {
	if cached, ok := c.cache.Get(ctx, cacheKey); ok {
		if kr, err := decodeCached(cached); err == nil {
			return c.withMargin(kr.KeyRate, kr.Date), nil
		}
		c.log.Warnf("Discarding malformed cached key rate %q", cached)
	}

	body, err := c.sendRequest(ctx, c.buildSOAPRequest())
	if err != nil {
		return nil, err
	}

	rate, date, err := parseKeyRate(body)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, cacheKey, encodeCached(rate, date), c.ttl); err != nil {
		c.log.Warnf("Failed to cache key rate: %v", err)
	}

	kr := c.withMargin(rate, date)
	c.log.Infof("Retrieved key rate: %.2f%% (including %.2f%% bank margin)", kr.Rate, kr.Margin)
	return kr, nil
}

func (c *Client) withMargin(rate float64, date time.Time) *KeyRate {
	return &KeyRate{
		Date:    date,
		KeyRate: rate,
		Margin:  c.margin,
		Rate:    rate + c.margin,
	}
}

// cached values are "<rate>|<RFC3339 date>"
func encodeCached(rate float64, date time.Time) string {
	return strconv.FormatFloat(rate, 'f', -1, 64) + "|" + date.Format(time.RFC3339)
}

func decodeCached(s string) (*KeyRate, error) {
	rawRate, rawDate, ok := strings.Cut(s, "|")
	if !ok {
		return nil, fmt.Errorf("missing separator")
	}
	rate, err := strconv.ParseFloat(rawRate, 64)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(time.RFC3339, rawDate)
	if err != nil {
		return nil, err
	}
	return &KeyRate{KeyRate: rate, Date: date}, nil
}
