package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

// rolloutRequestFromQuery reads a rollout request from query parameters:
// position, trials, truncate, seed, rng, ply, level, player, match_length,
// cube_value, cube_owner, variant and the booleans cubeful_rollout and
// variance_reduction.
func rolloutRequestFromQuery(q url.Values) (RolloutRequest, error) {
	req := RolloutRequest{
		Position: q.Get("position"),
		RNG:      q.Get("rng"),
	}
	req.Level = q.Get("level")
	req.Variant = q.Get("variant")

	ints := []struct {
		name string
		dst  *int
	}{
		{"trials", &req.Trials},
		{"truncate", &req.Truncate},
		{"player", &req.Player},
		{"match_length", &req.MatchLength},
		{"cube_value", &req.CubeValue},
	}
	for _, p := range ints {
		if s := q.Get(p.name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return req, fmt.Errorf("%s: %w", p.name, err)
			}
			*p.dst = n
		}
	}
	if s := q.Get("ply"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, fmt.Errorf("ply: %w", err)
		}
		req.Ply = &n
	}
	if s := q.Get("cube_owner"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, fmt.Errorf("cube_owner: %w", err)
		}
		req.CubeOwner = &n
	}
	if s := q.Get("seed"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return req, fmt.Errorf("seed: %w", err)
		}
		req.Seed = n
	}
	for name, dst := range map[string]**bool{
		"cubeful_rollout":    &req.CubefulRollout,
		"variance_reduction": &req.VarianceReduction,
	} {
		if s := q.Get(name); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return req, fmt.Errorf("%s: %w", name, err)
			}
			*dst = &v
		}
	}
	return req, nil
}

// RolloutSSE streams rollout progress as Server-Sent Events.
// GET /api/rollout/sse?position=...&trials=...&truncate=...
//
// Events are "progress" (engine.RolloutProgress), "result"
// (RolloutResponse), "error" and a final "done".
func (h *Handlers) RolloutSSE(w http.ResponseWriter, r *http.Request) {
	req, err := rolloutRequestFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUERY")
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

	rw := http.NewResponseController(w)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rw.Flush(); err != nil {
		h.log.Warn().Err(err).Msg("streaming not supported")
		return
	}

	// Progress callback sends SSE events
	progress := func(p engine.RolloutProgress) {
		writeSSEEvent(w, "progress", p)
		rw.Flush()
	}

	res, err := h.engine.Rollout(r.Context(), b, ci, rc, progress)
	if err != nil {
		writeSSEEvent(w, "error", ErrorResponse{Error: err.Error(), Code: "ROLLOUT_ERROR"})
		rw.Flush()
		return
	}

	writeSSEEvent(w, "result", rolloutResponse(req.Position, res))
	// Send done event to signal completion
	writeSSEEvent(w, "done", nil)
	rw.Flush()
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}
