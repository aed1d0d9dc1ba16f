package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"sports-ratings/internal/config"
	"sports-ratings/internal/constants"
	"sports-ratings/internal/domain"

	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

type ScorefeedClient struct {
	baseURL     string
	apiKey      string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Bucket    string `json:"bucket"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewScorefeedClient(cfg *config.Config) *ScorefeedClient {
	return &ScorefeedClient{
		baseURL: cfg.FeedBaseURL,
		apiKey:  cfg.FeedAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{
			Limit:     120,
			Remaining: 120,
			Reset:     60,
			UpdatedAt: time.Now(),
		},
	}
}

func (c *ScorefeedClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *ScorefeedClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if bucket := string(resp.Header.Peek("X-Ratelimit-Bucket")); bucket != "" {
		c.rateLimit.Bucket = bucket
	}
	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// Games fetches completed games for a sport since the cutoff. Games the feed
// still marks in progress are dropped before they reach the rating engine.
func (c *ScorefeedClient) Games(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Game, error) {
	url := fmt.Sprintf("%s/v2/games?sport=%s&status=final&since=%d", c.baseURL, sport.String(), since.Unix())
	resp, err := doRequest[GamesResponse](ctx, c, url)
	if err != nil {
		return nil, err
	}

	games := make([]domain.Game, 0, len(resp.Data))
	for _, g := range resp.Data {
		if !g.Completed {
			continue
		}
		games = append(games, domain.Game{
			ID:        g.ID,
			Sport:     sport,
			HomeTeam:  g.HomeTeam,
			AwayTeam:  g.AwayTeam,
			HomeScore: g.HomeScore,
			AwayScore: g.AwayScore,
			Margin:    g.Margin,
			PlayedAt:  g.CommenceTime,
		})
	}
	return games, nil
}

// TeamStats fetches the feed's current per-team raw metrics for a sport.
func (c *ScorefeedClient) TeamStats(ctx context.Context, sport domain.Sport) ([]domain.TeamStat, error) {
	url := fmt.Sprintf("%s/v2/stats/%s", c.baseURL, sport.String())
	resp, err := doRequest[StatsResponse](ctx, c, url)
	if err != nil {
		return nil, err
	}

	stats := make([]domain.TeamStat, 0, len(resp.Data))
	for _, s := range resp.Data {
		stats = append(stats, domain.TeamStat{
			Sport:      sport,
			Team:       s.Team,
			Metric:     s.Metric,
			Value:      s.Value,
			SampleSize: s.SampleSize,
			Opponents:  s.Opponents,
			UpdatedAt:  s.UpdatedAt,
		})
	}
	return stats, nil
}

func doRequest[T any](ctx context.Context, client *ScorefeedClient, url string) (*T, error) {
	var result T

	backoff := retry.WithMaxRetries(constants.FeedMaxRetries, retry.NewFibonacci(constants.FeedRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Authorization", client.apiKey)

		deadline, ok := ctx.Deadline()
		if ok {
			if err := client.client.DoDeadline(req, resp, deadline); err != nil {
				return retry.RetryableError(err)
			}
		} else {
			if err := client.client.Do(req, resp); err != nil {
				return retry.RetryableError(err)
			}
		}

		client.updateRateLimit(resp)

		status := resp.StatusCode()
		if status == fasthttp.StatusTooManyRequests || status >= fasthttp.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("API error: %d", status))
		}
		if status != fasthttp.StatusOK {
			return fmt.Errorf("API error: %d", status)
		}

		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type GamesResponse struct {
	Status  int           `json:"status"`
	Results ResponseStats `json:"results"`
	Data    []GameData    `json:"data"`
}

type GameData struct {
	ID           string    `json:"id"`
	Sport        string    `json:"sport"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	HomeScore    int       `json:"home_score"`
	AwayScore    int       `json:"away_score"`
	Margin       int       `json:"margin"`
	Completed    bool      `json:"completed"`
	CommenceTime time.Time `json:"commence_time"`
}

type StatsResponse struct {
	Status  int            `json:"status"`
	Results ResponseStats  `json:"results"`
	Data    []TeamStatData `json:"data"`
}

type TeamStatData struct {
	Team       string    `json:"team"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	SampleSize int       `json:"sample_size"`
	Opponents  []string  `json:"opponents"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ResponseStats struct {
	Total    int `json:"total"`
	Returned int `json:"returned"`
}
