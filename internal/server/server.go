package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// RankingReader is the cache surface the read API serves from.
type RankingReader interface {
	GetPage(ctx context.Context, kind domain.SnapshotKind, page, pageSize int) ([]domain.Player, error)
	GetTotal(ctx context.Context, kind domain.SnapshotKind) (int, error)
	GetByPuuid(ctx context.Context, puuid string) (*domain.Player, error)
}

// Recalculator repairs a single player's rating from their match history.
type Recalculator interface {
	RecalculatePlayer(ctx context.Context, puuid string) error
}

// Server exposes the leaderboard read API. It is a thin wrapper over the
// ranking cache and never talks to the match provider on the request path.
type Server struct {
	cache  RankingReader
	recalc Recalculator
	logger zerolog.Logger
}

func NewServer(cache RankingReader, recalc Recalculator, logger zerolog.Logger) *Server {
	return &Server{cache: cache, recalc: recalc, logger: logger}
}

// LeaderboardEntry is the public projection of a ranked player.
type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	Puuid            string  `json:"puuid"`
	GameName         string  `json:"gameName"`
	TagLine          string  `json:"tagLine"`
	Pdl              int     `json:"pdl"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	ProfileIconID    int     `json:"profileIconId"`
	LastPlacement    int     `json:"lastPlacement"`
	AveragePlacement float64 `json:"averagePlacement"`
	Region           string  `json:"region"`
	Server           string  `json:"server"`
}

type leaderboardResponse struct {
	Players  []LeaderboardEntry `json:"players"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Total    int                `json:"total"`
}

type playerResponse struct {
	LeaderboardEntry
	TrackingEnabled bool                    `json:"trackingEnabled"`
	ChampionsPlayed []domain.ChampionPlayed `json:"championsPlayed"`
	RecentGames     []domain.MatchSummary   `json:"recentGames"`
}

func toEntry(p *domain.Player) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:             p.RankPosition,
		Puuid:            p.Puuid,
		GameName:         p.GameName,
		TagLine:          p.TagLine,
		Pdl:              p.Pdl,
		Wins:             p.MatchStats.Wins,
		Losses:           p.MatchStats.Losses,
		ProfileIconID:    p.ProfileIconID,
		LastPlacement:    p.LastPlacement,
		AveragePlacement: p.MatchStats.AveragePlacement,
		Region:           p.Region,
		Server:           p.Server,
	}
}

// RegisterRoutes wires the read API onto the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/leaderboard/total", s.handleLeaderboardTotal)
	mux.HandleFunc("GET /api/players/{puuid}", s.handlePlayer)
	mux.HandleFunc("POST /api/players/{puuid}/recalculate", s.handleRecalculate)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "pageSize", constants.DefaultPageSize)
	if pageSize < 1 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	players, err := s.cache.GetPage(r.Context(), domain.SnapshotLeaderboard, page, pageSize)
	if err != nil {
		s.serverError(w, r, err, "failed to load leaderboard page")
		return
	}
	total, err := s.cache.GetTotal(r.Context(), domain.SnapshotLeaderboard)
	if err != nil {
		s.serverError(w, r, err, "failed to load leaderboard total")
		return
	}

	entries := make([]LeaderboardEntry, 0, len(players))
	for i := range players {
		entries = append(entries, toEntry(&players[i]))
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Players:  entries,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

func (s *Server) handleLeaderboardTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.cache.GetTotal(r.Context(), domain.SnapshotLeaderboard)
	if err != nil {
		s.serverError(w, r, err, "failed to load leaderboard total")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": total})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	puuid := r.PathValue("puuid")
	player, err := s.cache.GetByPuuid(r.Context(), puuid)
	if err != nil {
		s.serverError(w, r, err, "failed to load player")
		return
	}
	if player == nil {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}

	resp := playerResponse{
		LeaderboardEntry: toEntry(player),
		TrackingEnabled:  player.TrackingEnabled,
		ChampionsPlayed:  player.MatchStats.ChampionsPlayed,
		RecentGames:      player.MatchStats.RecentGames,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRecalculate replays a tracked player's match history from scratch.
// Synchronous: the caller waits for the replay to finish.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	puuid := r.PathValue("puuid")
	if err := s.recalc.RecalculatePlayer(r.Context(), puuid); err != nil {
		s.logger.Error().Err(err).Str("puuid", puuid).Msg("recalculation failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recalculated", "puuid": puuid})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
