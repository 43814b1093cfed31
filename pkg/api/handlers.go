package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bgforge/gnubgcore/internal/positionid"
	"github.com/bgforge/gnubgcore/pkg/engine"
	"github.com/bgforge/gnubgcore/pkg/match"
)

// maxBodyBytes bounds request bodies; a full game record stays well below.
const maxBodyBytes = 1 << 20

// Handlers holds the HTTP handlers and engine reference.
type Handlers struct {
	engine    *engine.Engine
	version   string
	pool      *WorkerPool
	eval      engine.EvalContext
	rollout   engine.RolloutContext
	maxPly    int
	maxTrials int
	log       zerolog.Logger
}

// NewHandlers creates the handlers. pool may be nil, in which case
// requests are not throttled.
func NewHandlers(e *engine.Engine, config ServerConfig, version string, pool *WorkerPool) *Handlers {
	h := &Handlers{
		engine:    e,
		version:   version,
		pool:      pool,
		eval:      config.Eval,
		rollout:   config.Rollout,
		maxPly:    config.MaxPly,
		maxTrials: config.MaxTrials,
		log:       zerolog.Nop(),
	}
	if config.Logger != nil {
		h.log = *config.Logger
	}
	return h
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// writeEngineError maps an engine error to a status code.
func (h *Handlers) writeEngineError(w http.ResponseWriter, err error, code string) {
	switch {
	case errors.Is(err, engine.ErrInvalidCube):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_CUBE")
	case errors.Is(err, engine.ErrIllegalPosition):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_POSITION")
	case errors.Is(err, engine.ErrIllegalMove):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_MOVE")
	case errors.Is(err, engine.ErrInvalidDice):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_DICE")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled", "CANCELLED")
	default:
		h.log.Error().Err(err).Str("code", code).Msg("engine request failed")
		writeError(w, http.StatusInternalServerError, err.Error(), code)
	}
}

// decodeJSON reads the request body into v and writes the error response
// when it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return false
	}
	return true
}

// begin checks that an engine is loaded and admits a request of kind k
// at the given lookahead. The returned function releases its worker.
func (h *Handlers) begin(w http.ResponseWriter, r *http.Request, k Kind, plies int) (func(), bool) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not loaded", "NOT_READY")
		return nil, false
	}
	if h.pool == nil {
		return func() {}, true
	}
	release, err := h.pool.Acquire(r.Context(), k, plies)
	if err != nil {
		h.log.Debug().Err(err).Stringer("kind", k).Int("plies", plies).Msg("request not admitted")
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return nil, false
	}
	return release, true
}

// parseBoard decodes a position ID.
func parseBoard(id string) (engine.Board, error) {
	if id == "" {
		return engine.Board{}, errors.New("position is required")
	}
	b, err := engine.BoardFromPositionID(id)
	if err != nil {
		return engine.Board{}, fmt.Errorf("invalid position ID: %w", err)
	}
	return b, nil
}

// cubeInfo builds the cube information of a request.
func cubeInfo(gp GameParams) (engine.CubeInfo, error) {
	v := engine.VariantStandard
	if gp.Variant != "" {
		var err error
		if v, err = engine.ParseVariant(gp.Variant); err != nil {
			return engine.CubeInfo{}, fmt.Errorf("%w: %v", engine.ErrInvalidCube, err)
		}
	}
	cube := gp.CubeValue
	if cube == 0 {
		cube = 1
	}
	owner := -1
	if gp.CubeOwner != nil {
		owner = *gp.CubeOwner
	}
	return engine.NewCubeInfo(cube, owner, gp.Player, gp.MatchLength, gp.Score, gp.Crawford, gp.Jacoby, gp.Beavers, v)
}

// evalContext applies the request overrides to the server default.
func (h *Handlers) evalContext(ep EvalParams) (engine.EvalContext, error) {
	ec := h.eval
	if ep.Level != "" {
		var err error
		if ec, err = engine.LevelContext(ep.Level); err != nil {
			return ec, err
		}
	}
	if ep.Ply != nil {
		ec.Plies = *ep.Ply
	}
	if ep.Cubeful != nil {
		ec.Cubeful = *ep.Cubeful
	}
	if ep.Noise != nil {
		ec.Noise = *ep.Noise
	}
	if h.maxPly > 0 && ec.Plies > h.maxPly {
		return ec, fmt.Errorf("ply %d exceeds the server limit of %d", ec.Plies, h.maxPly)
	}
	return ec, ec.Validate()
}

// parseRequest decodes the board, cube and evaluation context shared by
// most requests, writing the error response on failure.
func (h *Handlers) parseRequest(w http.ResponseWriter, position string, gp GameParams, ep EvalParams) (engine.Board, engine.CubeInfo, engine.EvalContext, bool) {
	b, err := parseBoard(position)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_POSITION")
		return b, engine.CubeInfo{}, engine.EvalContext{}, false
	}
	ci, err := cubeInfo(gp)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_CUBE")
		return b, ci, engine.EvalContext{}, false
	}
	ec, err := h.evalContext(ep)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_EVAL")
		return b, ci, ec, false
	}
	return b, ci, ec, true
}

func validDice(d [2]int) bool {
	return d[0] >= 1 && d[0] <= 6 && d[1] >= 1 && d[1] <= 6
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Ready:   h.engine != nil,
	}

	if h.engine != nil {
		resp.Weights = h.engine.HasWeights()
		if c := h.engine.Cache(); c != nil {
			lookups, hits, adds := c.Stats()
			resp.Cache = &CacheStats{
				Lookups: lookups,
				Hits:    hits,
				Adds:    adds,
				HitRate: c.HitRate(),
			}
		}
	}

	// Include pool stats if available
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// Evaluate handles POST /api/evaluate
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, ci, ec, ok := h.parseRequest(w, req.Position, req.GameParams, req.EvalParams)
	if !ok {
		return
	}
	release, ok := h.begin(w, r, KindEval, ec.Plies)
	if !ok {
		return
	}
	defer release()

	p, err := h.engine.Evaluate(r.Context(), b, ci, ec)
	if err != nil {
		h.writeEngineError(w, err, "EVAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, EvaluateResponse{
		Position: req.Position,
		Class:    h.engine.Classify(b, ci.Variant).String(),
		Eval:     engine.NewEvaluation(p, h.engine.Utility(p, ci)),
		Ply:      ec.Plies,
	})
}

// Cubeful handles POST /api/cubeful
func (h *Handlers) Cubeful(w http.ResponseWriter, r *http.Request) {
	var req CubeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, ci, ec, ok := h.parseRequest(w, req.Position, req.GameParams, req.EvalParams)
	if !ok {
		return
	}
	release, ok := h.begin(w, r, KindCube, ec.Plies)
	if !ok {
		return
	}
	defer release()

	eq, err := h.engine.EvaluateCubeful(r.Context(), b, ci, ec)
	if err != nil {
		h.writeEngineError(w, err, "CUBE_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, cubefulResponse(req.Position, eq, ec.Plies))
}

// Moves handles POST /api/moves
func (h *Handlers) Moves(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validDice(req.Dice) {
		writeError(w, http.StatusBadRequest, "dice must be 1-6", "INVALID_DICE")
		return
	}
	b, ci, ec, ok := h.parseRequest(w, req.Position, req.GameParams, req.EvalParams)
	if !ok {
		return
	}

	opts := engine.DefaultMoveSearchOptions()
	opts.MaxMoves = req.NumMoves
	if opts.MaxMoves <= 0 {
		opts.MaxMoves = 5
	}
	if req.Played != "" {
		played, err := parseBoard(req.Played)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_MOVE")
			return
		}
		key := positionid.PositionKey(played)
		opts.KeyMove = &key
	}

	release, ok := h.begin(w, r, KindMoves, ec.Plies)
	if !ok {
		return
	}
	defer release()

	moves, played, err := h.engine.FindNSaveBestMoves(r.Context(), b, req.Dice[0], req.Dice[1], ci, ec, opts)
	if err != nil {
		h.writeEngineError(w, err, "ANALYSIS_ERROR")
		return
	}

	resp := MovesResponse{
		Position: req.Position,
		Dice:     req.Dice,
		NumLegal: len(engine.GenerateMoves(b, req.Dice[0], req.Dice[1])),
		Played:   played,
		Moves:    make([]MoveResponse, len(moves)),
	}
	for i, m := range moves {
		resp.Moves[i] = moveToResponse(b, req.Dice[0], req.Dice[1], m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cube handles POST /api/cube
func (h *Handlers) Cube(w http.ResponseWriter, r *http.Request) {
	var req CubeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, ci, ec, ok := h.parseRequest(w, req.Position, req.GameParams, req.EvalParams)
	if !ok {
		return
	}
	release, ok := h.begin(w, r, KindCube, ec.Plies)
	if !ok {
		return
	}
	defer release()

	ca, err := h.engine.AnalyzeCube(r.Context(), b, ci, ec)
	if err != nil {
		h.writeEngineError(w, err, "CUBE_ERROR")
		return
	}

	doubled := min(ca.Equities[engine.EquityDoubleTake], ca.Equities[engine.EquityDoublePass])
	writeJSON(w, http.StatusOK, CubeResponse{
		CubefulResponse: cubefulResponse(req.Position, ca.Equities, ca.Plies),
		Decision:        ca.Decision.Slug(),
		DecisionID:      int(ca.Decision),
		Recommendation:  ca.Recommendation,
		DoubleDiff:      float64(doubled - ca.Equities[engine.EquityNoDouble]),
		Eval:            engine.NewEvaluation(ca.Probs, h.engine.Utility(ca.Probs, ci)),
	})
}

// Recommendation handles GET /api/recommendation/{decision}. The decision
// is its number or slug.
func (h *Handlers) Recommendation(w http.ResponseWriter, r *http.Request) {
	cd, err := engine.ParseCubeDecision(r.PathValue("decision"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "UNKNOWN_DECISION")
		return
	}
	writeJSON(w, http.StatusOK, RecommendationResponse{
		Decision:       cd.Slug(),
		DecisionID:     int(cd),
		Recommendation: engine.GetCubeRecommendation(cd),
		IsDouble:       cd.IsDouble(),
		IsTake:         cd.IsTake(),
	})
}

// rolloutContext applies the request overrides to the server default.
func (h *Handlers) rolloutContext(req *RolloutRequest) (engine.RolloutContext, error) {
	rc := h.rollout
	if req.Trials > 0 {
		rc.Trials = req.Trials
	}
	if h.maxTrials > 0 && rc.Trials > h.maxTrials {
		return rc, fmt.Errorf("%d trials exceed the server limit of %d", rc.Trials, h.maxTrials)
	}
	if req.Truncate > 0 {
		rc.Truncate = req.Truncate
	}
	if req.Seed != 0 {
		rc.Seed = req.Seed
	}
	if req.RNG != "" {
		rng, err := engine.ParseRNG(req.RNG)
		if err != nil {
			return rc, err
		}
		rc.RNG = rng
	}
	if req.CubefulRollout != nil {
		rc.Cubeful = *req.CubefulRollout
	}
	if req.VarianceReduction != nil {
		rc.VarianceReduction = *req.VarianceReduction
	}
	if req.StopOnSTD {
		rc.StopOnSTD = true
	}
	if req.EvalParams != (EvalParams{}) {
		ec, err := h.evalContext(req.EvalParams)
		if err != nil {
			return rc, err
		}
		rc.Early, rc.Late = ec, ec
	}
	return rc, rc.Validate()
}

// parseRollout decodes everything a rollout needs, writing the error
// response on failure.
func (h *Handlers) parseRollout(w http.ResponseWriter, req *RolloutRequest) (engine.Board, engine.CubeInfo, engine.RolloutContext, bool) {
	b, err := parseBoard(req.Position)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_POSITION")
		return b, engine.CubeInfo{}, engine.RolloutContext{}, false
	}
	ci, err := cubeInfo(req.GameParams)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_CUBE")
		return b, ci, engine.RolloutContext{}, false
	}
	rc, err := h.rolloutContext(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ROLLOUT")
		return b, ci, rc, false
	}
	return b, ci, rc, true
}

func rolloutResponse(position string, res *engine.RolloutResult) RolloutResponse {
	return RolloutResponse{
		Position:     position,
		Result:       *res,
		FirstHitMean: res.Stats.FirstHitMean(),
	}
}

// Rollout handles POST /api/rollout
func (h *Handlers) Rollout(w http.ResponseWriter, r *http.Request) {
	var req RolloutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, ci, rc, ok := h.parseRollout(w, &req)
	if !ok {
		return
	}
	release, ok := h.begin(w, r, KindRollout, 0)
	if !ok {
		return
	}
	defer release()

	res, err := h.engine.Rollout(r.Context(), b, ci, rc, nil)
	if err != nil {
		h.writeEngineError(w, err, "ROLLOUT_ERROR")
		return
	}
	h.log.Debug().Str("position", req.Position).Int("games", res.Games).Bool("stopped", res.Stopped).Msg("rollout finished")
	writeJSON(w, http.StatusOK, rolloutResponse(req.Position, res))
}

// ============================================================================
// Tutor handlers
// ============================================================================

// normalizeMove sorts the parts of a move so "13/8 24/18" and
// "24/18 13/8" compare equal.
func normalizeMove(s string) string {
	parts := strings.Fields(strings.ToLower(s))
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// findPlayed returns the position reached by notation with d0-d1 in b.
func findPlayed(b engine.Board, d0, d1 int, notation string) (engine.Board, error) {
	want := normalizeMove(notation)
	for _, m := range engine.GenerateMoves(b, d0, d1) {
		if normalizeMove(engine.FormatMove(b, m)) == want {
			return m.Board, nil
		}
	}
	return engine.Board{}, fmt.Errorf("%w: %q is not a legal %d-%d play", engine.ErrIllegalMove, notation, d0, d1)
}

// playedBoard resolves the move of a tutor request, given as a position
// ID or as notation. ok is false for a dance.
func playedBoard(b engine.Board, dice [2]int, notation, played string) (engine.Board, bool, error) {
	switch {
	case played != "":
		pb, err := parseBoard(played)
		return pb, err == nil, err
	case notation != "":
		pb, err := findPlayed(b, dice[0], dice[1], notation)
		return pb, err == nil, err
	}
	return engine.Board{}, false, nil
}

// parseCubeAction parses a cube action string.
func parseCubeAction(action string) (engine.CubeAction, error) {
	switch strings.ToLower(action) {
	case "double":
		return engine.Double, nil
	case "take":
		return engine.Take, nil
	case "pass", "drop":
		return engine.Pass, nil
	case "no_double", "nodouble":
		return engine.NoDouble, nil
	default:
		return engine.NoDouble, fmt.Errorf("invalid cube action: %s", action)
	}
}

// skillToString converts a SkillType to a string.
func skillToString(skill engine.SkillType) string {
	switch skill {
	case engine.SkillVeryBad:
		return "very_bad"
	case engine.SkillBad:
		return "bad"
	case engine.SkillDoubtful:
		return "doubtful"
	default:
		return "none"
	}
}

// cubeActionToString converts a CubeAction to a string.
func cubeActionToString(action engine.CubeAction) string {
	switch action {
	case engine.Double:
		return "double"
	case engine.Take:
		return "take"
	case engine.Pass:
		return "pass"
	case engine.NoDouble:
		return "no_double"
	default:
		return "unknown"
	}
}

// HandleTutorMove analyzes a played move and returns skill analysis.
func (h *Handlers) HandleTutorMove(w http.ResponseWriter, r *http.Request) {
	var req TutorMoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Move == "" && req.Played == "" {
		writeError(w, http.StatusBadRequest, "move or played is required", "MISSING_MOVE")
		return
	}
	if !validDice(req.Dice) {
		writeError(w, http.StatusBadRequest, "dice must be 1-6", "INVALID_DICE")
		return
	}
	b, ci, ec, ok := h.parseRequest(w, req.Position, req.GameParams, req.EvalParams)
	if !ok {
		return
	}
	played, _, err := playedBoard(b, req.Dice, req.Move, req.Played)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_MOVE")
		return
	}

	release, ok := h.begin(w, r, KindTutor, ec.Plies)
	if !ok {
		return
	}
	defer release()

	a, err := h.engine.AnalyzeMoveSkill(r.Context(), b, req.Dice[0], req.Dice[1], played, ci, ec)
	if err != nil {
		h.writeEngineError(w, err, "ANALYSIS_ERROR")
		return
	}

	resp := TutorMoveResponse{
		Skill:       skillToString(a.Skill),
		SkillAbbr:   a.Skill.Abbr(),
		EquityLoss:  float64(a.EquityLoss),
		IsForced:    a.Forced,
		TopMoves:    make([]MoveResponse, len(a.TopMoves)),
		PlayedIndex: a.PlayedIndex,
	}
	for i, m := range a.TopMoves {
		resp.TopMoves[i] = moveToResponse(b, req.Dice[0], req.Dice[1], m)
	}
	if a.PlayedIndex >= 0 {
		resp.Best = &resp.TopMoves[0]
		resp.Played = &resp.TopMoves[a.PlayedIndex]
	}
	if engine.IsOpeningPosition(b, ci.Variant) {
		for _, op := range engine.OpeningPlays(req.Dice[0], req.Dice[1]) {
			resp.Reference = append(resp.Reference, op.Play)
		}
	}
	resp.Suggestion = generateMoveSuggestion(a.Skill, a.EquityLoss, resp.Best)

	writeJSON(w, http.StatusOK, resp)
}

// HandleTutorCube analyzes a cube decision and returns skill analysis.
func (h *Handlers) HandleTutorCube(w http.ResponseWriter, r *http.Request) {
	var req TutorCubeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action, err := parseCubeAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ACTION")
		return
	}
	b, ci, ec, ok := h.parseRequest(w, req.Position, req.GameParams, req.EvalParams)
	if !ok {
		return
	}
	release, ok := h.begin(w, r, KindTutor, ec.Plies)
	if !ok {
		return
	}
	defer release()

	a, err := h.engine.AnalyzeCubeSkill(r.Context(), b, ci, ec, action)
	if err != nil {
		h.writeEngineError(w, err, "ANALYSIS_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, TutorCubeResponse{
		Skill:          skillToString(a.Skill),
		SkillAbbr:      a.Skill.Abbr(),
		EquityLoss:     float64(a.EquityLoss),
		Decision:       a.Analysis.Decision.Slug(),
		Recommendation: a.Analysis.Recommendation,
		Played:         cubeActionToString(a.Actual),
		IsClose:        a.Close,
		Suggestion:     generateCubeSuggestion(a),
	})
}

// gameDecisions converts a game record to engine decisions.
func gameDecisions(in []GameDecision) ([]engine.GameDecision, error) {
	out := make([]engine.GameDecision, len(in))
	for i, d := range in {
		b, err := parseBoard(d.Position)
		if err != nil {
			return nil, fmt.Errorf("decision %d: %w", i+1, err)
		}
		ci, err := cubeInfo(d.GameParams)
		if err != nil {
			return nil, fmt.Errorf("decision %d: %w", i+1, err)
		}
		out[i] = engine.GameDecision{
			Game:       d.Game,
			MoveNumber: d.MoveNumber,
			Board:      b,
			Cube:       ci,
			Doubled:    d.Doubled,
			Passed:     d.Passed,
			Dice:       d.Dice,
		}
		if d.Dice == [2]int{} {
			continue
		}
		if !validDice(d.Dice) {
			return nil, fmt.Errorf("decision %d: dice must be 1-6", i+1)
		}
		played, ok, err := playedBoard(b, d.Dice, d.Move, d.Played)
		if err != nil {
			return nil, fmt.Errorf("decision %d: %w", i+1, err)
		}
		if ok {
			out[i].Played = &played
		}
	}
	return out, nil
}

// HandleAnalyzeGame analyzes a complete game and returns statistics.
func (h *Handlers) HandleAnalyzeGame(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeGameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var decisions []engine.GameDecision
	switch {
	case req.MAT != "":
		m, err := match.ImportMAT(strings.NewReader(req.MAT))
		if err == nil {
			decisions, err = m.Decisions()
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_MATCH")
			return
		}
	case len(req.Decisions) > 0:
		var err error
		if decisions, err = gameDecisions(req.Decisions); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_DECISION")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "decisions array or mat record is required", "MISSING_DECISIONS")
		return
	}
	ec, err := h.evalContext(req.EvalParams)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_EVAL")
		return
	}
	opts := engine.DefaultAnalysisOptions()
	opts.Eval = ec
	opts.Luck = !req.SkipLuck
	opts.Cube = !req.SkipCube

	release, ok := h.begin(w, r, KindAnalysis, ec.Plies)
	if !ok {
		return
	}
	defer release()

	res, err := h.engine.AnalyzeGame(r.Context(), decisions, opts)
	if err != nil {
		h.writeEngineError(w, err, "ANALYSIS_ERROR")
		return
	}

	resp := GameAnalysisResponse{Analysis: res}
	for i := 0; i < 2; i++ {
		resp.ErrorRates[i] = res.Stats.ErrorRate(i)
		resp.Ratings[i] = res.Stats.Rating(i).String()
		resp.Luck[i] = res.Stats.LuckTotal[i]
	}
	resp.Suggestions = generateGameSuggestions(res)

	writeJSON(w, http.StatusOK, resp)
}

// generateMoveSuggestion generates an improvement suggestion for a move error.
func generateMoveSuggestion(skill engine.SkillType, loss float32, best *MoveResponse) string {
	if best == nil {
		return ""
	}
	switch skill {
	case engine.SkillVeryBad:
		return fmt.Sprintf("This was a blunder losing %.3f equity. The best move was %s.", loss, best.Move)
	case engine.SkillBad:
		return fmt.Sprintf("This was an error losing %.3f equity. Consider %s instead.", loss, best.Move)
	case engine.SkillDoubtful:
		return fmt.Sprintf("This move is questionable (%.3f equity loss). %s was slightly better.", loss, best.Move)
	default:
		return ""
	}
}

// generateCubeSuggestion generates an improvement suggestion for a cube error.
func generateCubeSuggestion(a *engine.CubeSkillAnalysis) string {
	optimal := strings.ToLower(a.Analysis.Recommendation)
	switch a.Skill {
	case engine.SkillVeryBad:
		return fmt.Sprintf("This was a cube blunder losing %.3f equity. The position is %s.", a.EquityLoss, optimal)
	case engine.SkillBad:
		return fmt.Sprintf("This was a cube error losing %.3f equity. The position is %s.", a.EquityLoss, optimal)
	case engine.SkillDoubtful:
		return fmt.Sprintf("This cube decision is questionable (%.3f equity loss). The position is %s.", a.EquityLoss, optimal)
	default:
		return ""
	}
}

// generateGameSuggestions generates overall improvement suggestions for a game.
func generateGameSuggestions(res *engine.MatchAnalysis) []string {
	var suggestions []string

	for i := 0; i < 2; i++ {
		playerName := fmt.Sprintf("Player %d", i+1)

		if blunders := res.Stats.MoveSkills[i][engine.SkillVeryBad]; blunders > 0 {
			suggestions = append(suggestions,
				fmt.Sprintf("%s had %d blunder(s). Review these positions carefully.", playerName, blunders))
		}

		if epm := res.Stats.ErrorRate(i); epm > 0.02 {
			suggestions = append(suggestions,
				fmt.Sprintf("%s's error rate (%.3f) is high. Focus on checker play fundamentals.", playerName, epm))
		}

		cubeErrors := 0
		for _, ce := range res.CubeErrors {
			if ce.Player == i {
				cubeErrors++
			}
		}
		if cubeErrors > 0 {
			suggestions = append(suggestions,
				fmt.Sprintf("%s made %d cube error(s). Study cube theory and match equity.", playerName, cubeErrors))
		}
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Good game! Both players played well.")
	}

	return suggestions
}
