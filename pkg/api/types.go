// Package api provides the HTTP/JSON front end of the backgammon engine.
package api

import "github.com/bgforge/gnubgcore/pkg/engine"

// ============================================================================
// Request Types
// ============================================================================

// GameParams describe the cube and score of a request. Score and
// CubeOwner are indexed by player; Player is the one on roll.
type GameParams struct {
	Player      int    `json:"player,omitempty"`       // player on roll (0 or 1)
	MatchLength int    `json:"match_length,omitempty"` // 0 = money game
	Score       [2]int `json:"score,omitempty"`        // Match score
	CubeValue   int    `json:"cube_value,omitempty"`   // Cube value (default 1)
	CubeOwner   *int   `json:"cube_owner,omitempty"`   // -1 or absent = centered
	Crawford    bool   `json:"crawford,omitempty"`     // Crawford game
	Jacoby      bool   `json:"jacoby,omitempty"`       // Money games only
	Beavers     bool   `json:"beavers,omitempty"`      // Money games only
	Variant     string `json:"variant,omitempty"`      // "standard" (default), "nackgammon", "hypergammon1".."hypergammon3"
}

// EvalParams override the server's default evaluation context.
type EvalParams struct {
	Level   string   `json:"level,omitempty"`   // named level, e.g. "2ply" or "worldclass"
	Ply     *int     `json:"ply,omitempty"`     // Evaluation depth
	Cubeful *bool    `json:"cubeful,omitempty"` // Cubeful move scoring
	Noise   *float32 `json:"noise,omitempty"`   // Evaluation noise (standard deviation)
}

// EvaluateRequest is the request body for position evaluation.
type EvaluateRequest struct {
	Position string `json:"position"` // Position ID (gnubg format)
	GameParams
	EvalParams
}

// CubeRequest is the request body for /api/cube and /api/cubeful.
type CubeRequest struct {
	Position string `json:"position"`
	GameParams
	EvalParams
}

// MoveRequest is the request body for finding best moves.
type MoveRequest struct {
	Position string `json:"position"`            // Position ID (gnubg format)
	Dice     [2]int `json:"dice"`                // Dice roll [die1, die2]
	NumMoves int    `json:"num_moves,omitempty"` // Max moves to return (default 5)
	Played   string `json:"played,omitempty"`    // Position ID after the move played, kept in the list
	GameParams
	EvalParams
}

// RolloutRequest is the request body for Monte Carlo rollouts. EvalParams
// apply to every ply of the rollout.
type RolloutRequest struct {
	Position          string `json:"position"`                     // Position ID
	Trials            int    `json:"trials,omitempty"`             // Number of trials (server default when 0)
	Truncate          int    `json:"truncate,omitempty"`           // Truncate at N plies (0 = full)
	Seed              uint64 `json:"seed,omitempty"`               // Random seed (0 = random)
	RNG               string `json:"rng,omitempty"`                // "pcg" or "frand"
	CubefulRollout    *bool  `json:"cubeful_rollout,omitempty"`    // Play the cube during the rollout
	VarianceReduction *bool  `json:"variance_reduction,omitempty"` // Luck adjustment
	StopOnSTD         bool   `json:"stop_on_std,omitempty"`        // Stop once the standard error is small enough
	GameParams
	EvalParams
}

// TutorMoveRequest is the request for analyzing a played move. The move
// is given either as notation or as the resulting position ID.
type TutorMoveRequest struct {
	Position string `json:"position"`         // Position ID before the move
	Dice     [2]int `json:"dice"`             // Dice rolled
	Move     string `json:"move,omitempty"`   // Move played (e.g., "8/5 6/5")
	Played   string `json:"played,omitempty"` // Position ID after the move
	GameParams
	EvalParams
}

// TutorCubeRequest is the request for analyzing a cube decision.
type TutorCubeRequest struct {
	Position string `json:"position"` // Position ID, doubler on roll
	Action   string `json:"action"`   // "double", "take", "pass", "no_double"
	GameParams
	EvalParams
}

// AnalyzeGameRequest is the request for analyzing a complete game. The
// record is either a list of decisions or a match in MAT format.
type AnalyzeGameRequest struct {
	Decisions []GameDecision `json:"decisions,omitempty"`
	MAT       string         `json:"mat,omitempty"`
	SkipLuck  bool           `json:"skip_luck,omitempty"`
	SkipCube  bool           `json:"skip_cube,omitempty"`
	EvalParams
}

// GameDecision is one recorded turn of a game.
type GameDecision struct {
	Game       int    `json:"game,omitempty"`
	MoveNumber int    `json:"move_number"`
	Position   string `json:"position"`          // Position ID before the turn
	Doubled    bool   `json:"doubled,omitempty"` // The player on roll doubled
	Passed     bool   `json:"passed,omitempty"`  // The opponent passed
	Dice       [2]int `json:"dice,omitempty"`    // Dice if checker play
	Move       string `json:"move,omitempty"`    // Move played as notation
	Played     string `json:"played,omitempty"`  // Position ID after the move
	GameParams
}

// ============================================================================
// Response Types
// ============================================================================

// EvaluateResponse is the response for position evaluation.
type EvaluateResponse struct {
	Position string            `json:"position"` // Position evaluated
	Class    string            `json:"class"`    // Evaluator class
	Eval     engine.Evaluation `json:"eval"`     // Cubeless probabilities and equity
	Ply      int               `json:"ply"`      // Ply used for evaluation
}

// CubefulResponse is the response for cubeful equities.
type CubefulResponse struct {
	Position   string  `json:"position"`
	NoDouble   float64 `json:"no_double"`
	DoubleTake float64 `json:"double_take"`
	DoublePass float64 `json:"double_pass"`
	Optimal    float64 `json:"optimal"`
	Ply        int     `json:"ply"`
}

// CubeResponse is the response for cube decisions.
type CubeResponse struct {
	CubefulResponse
	Decision       string            `json:"decision"`       // e.g. "double-take"
	DecisionID     int               `json:"decision_id"`    // numeric cube decision
	Recommendation string            `json:"recommendation"` // human readable decision
	DoubleDiff     float64           `json:"double_diff"`    // doubling minus no double
	Eval           engine.Evaluation `json:"eval"`           // Cubeless evaluation
}

// MoveResponse is a single move in the response.
type MoveResponse struct {
	Move      string            `json:"move"`                // Human-readable move notation (e.g., "8/5 6/5")
	Position  string            `json:"position"`            // Position ID after the move
	Equity    float64           `json:"equity"`              // Ranking equity (cubeful when requested)
	Cubeless  float64           `json:"cubeless"`            // Cubeless equity
	Eval      engine.Evaluation `json:"eval"`                // Probabilities after the move
	Ply       int               `json:"ply"`                 // Depth of the scores
	Reference bool              `json:"reference,omitempty"` // A standard opening play
}

// MovesResponse is the response for best moves.
type MovesResponse struct {
	Position string         `json:"position"`  // Position evaluated
	Dice     [2]int         `json:"dice"`      // Dice used
	NumLegal int            `json:"num_legal"` // Total number of legal moves
	Played   int            `json:"played"`    // Index of the played move, -1 if none
	Moves    []MoveResponse `json:"moves"`     // Ranked moves (best first)
}

// RolloutResponse is the response for rollouts.
type RolloutResponse struct {
	Position     string               `json:"position"`
	Result       engine.RolloutResult `json:"result"`
	FirstHitMean float64              `json:"first_hit_mean"` // average ply of the first hit
}

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error   string `json:"error"`             // Error message
	Code    string `json:"code,omitempty"`    // Error code
	Details string `json:"details,omitempty"` // Additional details
}

// CacheStats describe the evaluation cache.
type CacheStats struct {
	Lookups uint64  `json:"lookups"`
	Hits    uint64  `json:"hits"`
	Adds    uint64  `json:"adds"`
	HitRate float64 `json:"hit_rate"` // percent
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string      `json:"status"`          // "ok" or "error"
	Version string      `json:"version"`         // Engine version
	Ready   bool        `json:"ready"`           // Whether engine is fully loaded
	Weights bool        `json:"weights"`         // Neural network weights loaded
	Pool    *PoolStats  `json:"pool,omitempty"`  // Worker pool statistics
	Cache   *CacheStats `json:"cache,omitempty"` // Evaluation cache statistics
}

// RecommendationResponse describes one cube decision.
type RecommendationResponse struct {
	Decision       string `json:"decision"`
	DecisionID     int    `json:"decision_id"`
	Recommendation string `json:"recommendation"`
	IsDouble       bool   `json:"is_double"`
	IsTake         bool   `json:"is_take"`
}

// TutorMoveResponse is the response for move skill analysis.
type TutorMoveResponse struct {
	Skill       string         `json:"skill"`               // "none", "doubtful", "bad", "very_bad"
	SkillAbbr   string         `json:"skill_abbr"`          // "", "?!", "?", "??"
	EquityLoss  float64        `json:"equity_loss"`         // Equity lost by this move
	Best        *MoveResponse  `json:"best,omitempty"`      // Best move
	Played      *MoveResponse  `json:"played,omitempty"`    // Move played
	IsForced    bool           `json:"is_forced"`           // True if only one legal move
	TopMoves    []MoveResponse `json:"top_moves"`           // Top moves for context
	Reference   []string       `json:"reference,omitempty"` // Standard opening plays for the roll
	Suggestion  string         `json:"suggestion"`          // Improvement suggestion
	PlayedIndex int            `json:"played_index"`        // Index of the played move in TopMoves
}

// TutorCubeResponse is the response for cube decision skill analysis.
type TutorCubeResponse struct {
	Skill          string  `json:"skill"`          // "none", "doubtful", "bad", "very_bad"
	SkillAbbr      string  `json:"skill_abbr"`     // "", "?!", "?", "??"
	EquityLoss     float64 `json:"equity_loss"`    // Equity lost by this decision
	Decision       string  `json:"decision"`       // Optimal cube decision
	Recommendation string  `json:"recommendation"` // Human readable optimal decision
	Played         string  `json:"played"`         // Played action
	IsClose        bool    `json:"is_close"`       // True if decision was close
	Suggestion     string  `json:"suggestion"`     // Improvement suggestion
}

// GameAnalysisResponse is the response for complete game analysis.
type GameAnalysisResponse struct {
	Analysis    *engine.MatchAnalysis `json:"analysis"`
	ErrorRates  [2]float64            `json:"error_rates"` // Error per decision for each player
	Ratings     [2]string             `json:"ratings"`     // Rating for each player
	Luck        [2]float64            `json:"luck"`        // Total luck for each player
	Suggestions []string              `json:"suggestions"` // Overall improvement suggestions
}

// ============================================================================
// Helper Functions
// ============================================================================

// moveToResponse converts a ranked move of b to its API form.
func moveToResponse(b engine.Board, d0, d1 int, m engine.Move) MoveResponse {
	return MoveResponse{
		Move:      engine.FormatMove(b, m),
		Position:  engine.PositionID(m.Board),
		Equity:    float64(m.Score),
		Cubeless:  float64(m.Score2),
		Eval:      engine.NewEvaluation(m.Probs, m.Score2),
		Ply:       m.Plies,
		Reference: engine.IsReferencePlay(b, d0, d1, m),
	}
}

// cubefulResponse converts the four cube equities.
func cubefulResponse(position string, eq [4]float32, ply int) CubefulResponse {
	return CubefulResponse{
		Position:   position,
		NoDouble:   float64(eq[engine.EquityNoDouble]),
		DoubleTake: float64(eq[engine.EquityDoubleTake]),
		DoublePass: float64(eq[engine.EquityDoublePass]),
		Optimal:    float64(eq[engine.EquityOptimal]),
		Ply:        ply,
	}
}
