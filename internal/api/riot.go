package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"arena-tracker/internal/config"
	"arena-tracker/internal/constants"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// DefaultRoutingRegion is the regional routing host used for match-v5 and
// account-v1 calls.
const DefaultRoutingRegion = "americas"

var (
	// ErrNotFound means the resource does not exist upstream. Callers treat
	// it as a valid "no data" outcome.
	ErrNotFound = errors.New("riot api: not found")

	// ErrForbidden usually means an expired or invalid API key.
	ErrForbidden = errors.New("riot api: forbidden")
)

type RiotClient struct {
	apiKey        string
	region        string
	baseURL       string // overrides the regional host when set (tests)
	retryCooldown time.Duration
	client        *fasthttp.Client
	logger        zerolog.Logger
	rateLimitMu   sync.RWMutex
	rateLimit     RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewRiotClient(cfg *config.Config, logger zerolog.Logger) *RiotClient {
	return &RiotClient{
		apiKey:        cfg.RiotAPIKey,
		region:        DefaultRoutingRegion,
		retryCooldown: constants.RateLimitCooldown,
		logger:        logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *RiotClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *RiotClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-App-Rate-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-App-Rate-Limit-Count")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

func (c *RiotClient) hostFor(region string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://%s.api.riotgames.com", region)
}

// ListRecentMatchIDs returns up to count recent match ids for a player,
// newest first.
func (c *RiotClient) ListRecentMatchIDs(ctx context.Context, puuid string, count int, queueType string) ([]string, error) {
	url := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?type=%s&start=0&count=%d",
		c.hostFor(c.region), puuid, queueType, count)
	ids, err := doRequest[[]string](ctx, c, url)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

// GetMatchDetail fetches the full match payload for a match id.
func (c *RiotClient) GetMatchDetail(ctx context.Context, matchID string) (*MatchResponse, error) {
	url := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.hostFor(c.region), matchID)
	return doRequest[MatchResponse](ctx, c, url)
}

// GetTierForPlayer resolves a player's solo-queue tier on the given platform
// server. Players with no ranked entry are reported as UNRANKED.
func (c *RiotClient) GetTierForPlayer(ctx context.Context, puuid, server string) (string, error) {
	url := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", c.hostFor(server), puuid)
	entries, err := doRequest[[]LeagueEntry](ctx, c, url)
	if err != nil {
		return "", err
	}
	for _, entry := range *entries {
		if entry.QueueType == "RANKED_SOLO_5x5" {
			return entry.Tier, nil
		}
	}
	return "UNRANKED", nil
}

// GetAccountByRiotID resolves a gameName#tagLine pair to a puuid.
func (c *RiotClient) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	url := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.hostFor(c.region), gameName, tagLine)
	return doRequest[AccountResponse](ctx, c, url)
}

// doRequest performs an authenticated GET and decodes the JSON body.
// A 429 is retried after a fixed cooldown with no retry cap, matching the
// upstream quota semantics; cancelling the context aborts the wait.
func doRequest[T any](ctx context.Context, client *RiotClient, url string) (*T, error) {
	for {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("X-Riot-Token", client.apiKey)

		var err error
		if deadline, ok := ctx.Deadline(); ok {
			err = client.client.DoDeadline(req, resp, deadline)
		} else {
			err = client.client.Do(req, resp)
		}
		if err != nil {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			return nil, err
		}

		client.updateRateLimit(resp)
		status := resp.StatusCode()
		body := append([]byte(nil), resp.Body()...)
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		switch {
		case status == fasthttp.StatusOK:
			var result T
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, err
			}
			return &result, nil

		case status == fasthttp.StatusNotFound:
			return nil, ErrNotFound

		case status == fasthttp.StatusForbidden:
			client.logger.Error().Str("url", url).Msg("forbidden response from riot api, check the api key")
			return nil, ErrForbidden

		case status == fasthttp.StatusTooManyRequests:
			client.logger.Warn().
				Str("url", url).
				Dur("cooldown", client.retryCooldown).
				Msg("rate limited, waiting before retry")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(client.retryCooldown):
			}

		default:
			return nil, fmt.Errorf("riot api error: status %d", status)
		}
	}
}

type AccountResponse struct {
	Puuid    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type LeagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

type MatchInfo struct {
	GameMode     string        `json:"gameMode"`
	GameCreation int64         `json:"gameCreation"` // unix millis
	GameDuration int64         `json:"gameDuration"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	Puuid            string   `json:"puuid"`
	RiotIDGameName   string   `json:"riotIdGameName"`
	RiotIDTagline    string   `json:"riotIdTagline"`
	ChampionID       int      `json:"championId"`
	ChampionName     string   `json:"championName"`
	Placement        int      `json:"placement"`
	ProfileIcon      int      `json:"profileIcon"`
	Kills            int      `json:"kills"`
	Deaths           int      `json:"deaths"`
	Assists          int      `json:"assists"`
	TotalDamageDealt int      `json:"totalDamageDealtToChampions"`
	Item0            int      `json:"item0"`
	Item1            int      `json:"item1"`
	Item2            int      `json:"item2"`
	Item3            int      `json:"item3"`
	Item4            int      `json:"item4"`
	Item5            int      `json:"item5"`
	Augments         []string `json:"playerAugments"`
}

// Items returns the six item slots as a slice.
func (p Participant) Items() []int {
	return []int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5}
}
