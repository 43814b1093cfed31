package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

func ptr[T any](v T) *T { return &v }

// newTestServer returns a server over an engine without data files, which
// uses the heuristic evaluator.
func newTestServer(t *testing.T, log *zerolog.Logger) *Server {
	t.Helper()
	eng, err := engine.NewEngine(engine.EngineOptions{})
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Logger = log
	return NewServer(eng, cfg, "test-version")
}

var cubeless = EvalParams{Ply: ptr(0), Cubeful: ptr(false)}

func startID() string {
	return engine.PositionID(engine.StartingPosition(engine.VariantStandard))
}

// quickRollout is a cubeless 0-ply rollout without variance reduction.
func quickRollout(trials int) RolloutRequest {
	return RolloutRequest{
		Position:          startID(),
		Trials:            trials,
		Seed:              42,
		CubefulRollout:    ptr(false),
		VarianceReduction: ptr(false),
		EvalParams:        EvalParams{Ply: ptr(0), Cubeful: ptr(false)},
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestHealthHandler(t *testing.T) {
	h := NewHandlers(nil, DefaultConfig(), "test-version", nil)
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-version", health.Version)
	assert.False(t, health.Ready)
	assert.Nil(t, health.Pool)
}

func TestHealthHandlerReady(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s.Handler(), http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.True(t, health.Ready)
	assert.False(t, health.Weights)
	require.NotNil(t, health.Pool)
	assert.Equal(t, 100, health.Pool.MaxFast)
	assert.Equal(t, 4, health.Pool.MaxSlow)
	assert.Equal(t, 256, health.Pool.MaxQueued)
	assert.Contains(t, health.Pool.Kinds, "rollout")
	require.NotNil(t, health.Cache)
}

func TestEngineNotLoaded(t *testing.T) {
	h := NewHandlers(nil, DefaultConfig(), "test-version", nil)
	w := httptest.NewRecorder()
	body, _ := json.Marshal(EvaluateRequest{Position: startID()})
	h.Evaluate(w, httptest.NewRequest(http.MethodPost, "/api/evaluate", bytes.NewReader(body)))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NOT_READY", decode[ErrorResponse](t, w).Code)
}

func TestEvaluateHandler(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"valid position", EvaluateRequest{Position: startID()}, ""},
		{"one ply", EvaluateRequest{Position: startID(), EvalParams: EvalParams{Ply: ptr(1)}}, ""},
		{"match play", EvaluateRequest{Position: startID(), GameParams: GameParams{MatchLength: 7, Score: [2]int{3, 5}}}, ""},
		{"empty position", EvaluateRequest{}, "INVALID_POSITION"},
		{"invalid position", EvaluateRequest{Position: "invalid!!!"}, "INVALID_POSITION"},
		{"invalid json", "not json", "INVALID_JSON"},
		{"cube not a power of two", EvaluateRequest{Position: startID(), GameParams: GameParams{CubeValue: 3}}, "INVALID_CUBE"},
		{"unknown variant", EvaluateRequest{Position: startID(), GameParams: GameParams{Variant: "chouette"}}, "INVALID_CUBE"},
		{"ply over limit", EvaluateRequest{Position: startID(), EvalParams: EvalParams{Ply: ptr(4)}}, "INVALID_EVAL"},
		{"unknown level", EvaluateRequest{Position: startID(), EvalParams: EvalParams{Level: "godlike"}}, "INVALID_EVAL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/api/evaluate", tc.body)
			if tc.wantCode != "" {
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, tc.wantCode, decode[ErrorResponse](t, w).Code)
				return
			}
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			eval := decode[EvaluateResponse](t, w)
			assert.Equal(t, startID(), eval.Position)
			assert.NotEmpty(t, eval.Class)
			assert.GreaterOrEqual(t, eval.Eval.WinProb, 0.0)
			assert.LessOrEqual(t, eval.Eval.WinProb, 1.0)
			assert.InDelta(t, 0, eval.Eval.Equity, 3)
		})
	}
}

func TestMovesHandler(t *testing.T) {
	s := newTestServer(t, nil)
	start := engine.StartingPosition(engine.VariantStandard)

	t.Run("opening 3-1", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/api/moves", MoveRequest{Position: startID(), Dice: [2]int{3, 1}, EvalParams: cubeless})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[MovesResponse](t, w)
		assert.Equal(t, len(engine.GenerateMoves(start, 3, 1)), resp.NumLegal)
		assert.Equal(t, -1, resp.Played)
		require.Len(t, resp.Moves, 5)
		assert.Equal(t, "8/5 6/5", resp.Moves[0].Move)
		assert.True(t, resp.Moves[0].Reference)
		for i := 1; i < len(resp.Moves); i++ {
			assert.GreaterOrEqual(t, resp.Moves[i-1].Equity, resp.Moves[i].Equity)
		}
	})

	t.Run("played move kept", func(t *testing.T) {
		moves := engine.GenerateMoves(start, 6, 5)
		var played string
		for _, m := range moves {
			if engine.FormatMove(start, m) == "13/2" {
				played = engine.PositionID(m.Board)
			}
		}
		require.NotEmpty(t, played)

		w := do(t, s.Handler(), http.MethodPost, "/api/moves", MoveRequest{
			Position: startID(), Dice: [2]int{6, 5}, NumMoves: 3, Played: played,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[MovesResponse](t, w)
		require.Len(t, resp.Moves, 3)
		require.GreaterOrEqual(t, resp.Played, 0)
		assert.Equal(t, played, resp.Moves[resp.Played].Position)
		assert.Equal(t, "13/2", resp.Moves[resp.Played].Move)
	})

	t.Run("invalid dice", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/api/moves", MoveRequest{Position: startID(), Dice: [2]int{0, 7}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_DICE", decode[ErrorResponse](t, w).Code)
	})
}

func TestCubeHandlers(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s.Handler(), http.MethodPost, "/api/cube", CubeRequest{Position: startID()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cube := decode[CubeResponse](t, w)

	cd, err := engine.ParseCubeDecision(cube.Decision)
	require.NoError(t, err)
	assert.Equal(t, int(cd), cube.DecisionID)
	assert.Equal(t, engine.GetCubeRecommendation(cd), cube.Recommendation)
	assert.InDelta(t, 1, cube.DoublePass, 1e-6)
	assert.InDelta(t, min(cube.DoubleTake, cube.DoublePass)-cube.NoDouble, cube.DoubleDiff, 1e-6)

	w = do(t, s.Handler(), http.MethodPost, "/api/cubeful", CubeRequest{Position: startID()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cubeful := decode[CubefulResponse](t, w)
	assert.InDelta(t, cube.NoDouble, cubeful.NoDouble, 1e-6)
	assert.InDelta(t, cube.DoubleTake, cubeful.DoubleTake, 1e-6)
	assert.InDelta(t, cube.Optimal, cubeful.Optimal, 1e-6)

	t.Run("crawford", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/api/cube", CubeRequest{
			Position:   startID(),
			GameParams: GameParams{MatchLength: 5, Score: [2]int{4, 2}, Crawford: true},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, engine.NoDoubleDeadCube.Slug(), decode[CubeResponse](t, w).Decision)
	})

	t.Run("crawford with cube turned", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, "/api/cubeful", CubeRequest{
			Position:   startID(),
			GameParams: GameParams{MatchLength: 5, Score: [2]int{4, 2}, Crawford: true, CubeValue: 2},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_CUBE", decode[ErrorResponse](t, w).Code)
	})
}

func TestRecommendationHandler(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		path     string
		want     engine.CubeDecision
		isDouble bool
		isTake   bool
	}{
		{"double-take", engine.DoubleTake, true, true},
		{"1", engine.DoublePass, true, false},
		{"too-good-to-double-pass", engine.TooGoodPass, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodGet, "/api/recommendation/"+tc.path, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := decode[RecommendationResponse](t, w)
			assert.Equal(t, int(tc.want), resp.DecisionID)
			assert.Equal(t, tc.want.Slug(), resp.Decision)
			assert.Equal(t, tc.isDouble, resp.IsDouble)
			assert.Equal(t, tc.isTake, resp.IsTake)
		})
	}

	w := do(t, s.Handler(), http.MethodGet, "/api/recommendation/bogus", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRolloutHandler(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s.Handler(), http.MethodPost, "/api/rollout", quickRollout(36))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[RolloutResponse](t, w)
	assert.Equal(t, startID(), first.Position)
	assert.Equal(t, 36, first.Result.Games)
	assert.False(t, first.Result.Stopped)
	wins := first.Result.Stats.Wins
	assert.Equal(t, 36, wins[0][0]+wins[0][1]+wins[0][2]+wins[1][0]+wins[1][1]+wins[1][2])

	w = do(t, s.Handler(), http.MethodPost, "/api/rollout", quickRollout(36))
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[RolloutResponse](t, w)
	assert.Equal(t, first.Result.Probs, second.Result.Probs, "same seed")
	assert.Equal(t, first.Result.Equity, second.Result.Equity)

	bad := []struct {
		name string
		req  func(*RolloutRequest)
	}{
		{"unknown rng", func(r *RolloutRequest) { r.RNG = "mersenne" }},
		{"too many trials", func(r *RolloutRequest) { r.Trials = 1 << 20 }},
		{"ply over limit", func(r *RolloutRequest) { r.Ply = ptr(5) }},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			req := quickRollout(36)
			tc.req(&req)
			w := do(t, s.Handler(), http.MethodPost, "/api/rollout", req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_ROLLOUT", decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestRolloutSSE(t *testing.T) {
	s := newTestServer(t, nil)
	q := url.Values{
		"position":           {startID()},
		"trials":             {"72"},
		"ply":                {"0"},
		"seed":               {"7"},
		"cubeful_rollout":    {"false"},
		"variance_reduction": {"false"},
	}
	w := do(t, s.Handler(), http.MethodGet, "/api/rollout/sse?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := map[string][]string{}
	var event string
	sc := bufio.NewScanner(w.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
			events[event] = append(events[event], "")
		case strings.HasPrefix(line, "data: "):
			events[event][len(events[event])-1] = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, sc.Err())

	assert.Len(t, events["progress"], 2, "one per batch of 36")
	require.Len(t, events["result"], 1)
	assert.Len(t, events["done"], 1)
	assert.Empty(t, events["error"])

	var p engine.RolloutProgress
	require.NoError(t, json.Unmarshal([]byte(events["progress"][1]), &p))
	assert.Equal(t, 72, p.Trial)

	var res RolloutResponse
	require.NoError(t, json.Unmarshal([]byte(events["result"][0]), &res))
	assert.Equal(t, 72, res.Result.Games)

	w = do(t, s.Handler(), http.MethodGet, "/api/rollout/sse?position="+url.QueryEscape(startID())+"&trials=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRolloutRequestFromQuery(t *testing.T) {
	q := url.Values{
		"position":   {"4HPwATDgc/ABMA"},
		"trials":     {"648"},
		"seed":       {"99"},
		"rng":        {"frand"},
		"cube_owner": {"1"},
		"level":      {"expert"},
		"variant":    {"nackgammon"},
	}
	req, err := rolloutRequestFromQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "4HPwATDgc/ABMA", req.Position)
	assert.Equal(t, 648, req.Trials)
	assert.Equal(t, uint64(99), req.Seed)
	assert.Equal(t, "frand", req.RNG)
	require.NotNil(t, req.CubeOwner)
	assert.Equal(t, 1, *req.CubeOwner)
	assert.Equal(t, "expert", req.Level)
	assert.Equal(t, "nackgammon", req.Variant)
	assert.Nil(t, req.Ply)
	assert.Nil(t, req.CubefulRollout)

	for _, bad := range []string{"seed=-1", "cubeful_rollout=maybe", "ply=x", "cube_owner=left"} {
		q, _ := url.ParseQuery(bad)
		_, err := rolloutRequestFromQuery(q)
		assert.Error(t, err, bad)
	}
}

// wsMessage mirrors WSResponse with a raw payload.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
}

func dialRollout(t *testing.T) *websocket.Conn {
	t.Helper()
	s := newTestServer(t, nil)
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/rollout/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { ws.Close() })
	ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	return ws
}

func sendRollout(t *testing.T, ws *websocket.Conn, id string, req RolloutRequest) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(WSMessage{Type: "rollout", ID: id, Payload: payload}))
}

// readUntil reads messages until one of type want arrives and returns it
// together with the number of progress messages seen.
func readUntil(t *testing.T, ws *websocket.Conn, want string) (wsMessage, int) {
	t.Helper()
	progress := 0
	for {
		var msg wsMessage
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == want {
			return msg, progress
		}
		require.Equal(t, "progress", msg.Type, msg.Error)
		progress++
	}
}

func TestWebSocketPing(t *testing.T) {
	ws := dialRollout(t)
	require.NoError(t, ws.WriteJSON(WSMessage{Type: "ping", ID: "test-ping-1"}))

	msg, _ := readUntil(t, ws, "pong")
	assert.Equal(t, "test-ping-1", msg.ID)
}

func TestWebSocketRollout(t *testing.T) {
	ws := dialRollout(t)
	sendRollout(t, ws, "r1", quickRollout(72))

	msg, progress := readUntil(t, ws, "result")
	assert.Equal(t, "r1", msg.ID)
	assert.Equal(t, 2, progress)

	var res RolloutResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &res))
	assert.Equal(t, 72, res.Result.Games)
	assert.False(t, res.Result.Stopped)
}

func TestWebSocketCancel(t *testing.T) {
	ws := dialRollout(t)
	sendRollout(t, ws, "long", quickRollout(46656))
	readUntil(t, ws, "progress")
	require.NoError(t, ws.WriteJSON(WSMessage{Type: "cancel"}))

	msg, _ := readUntil(t, ws, "result")
	var res RolloutResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &res))
	assert.True(t, res.Result.Stopped)
	assert.Less(t, res.Result.Games, 46656)
}

func TestWebSocketErrors(t *testing.T) {
	ws := dialRollout(t)

	tests := []struct {
		name string
		msg  WSMessage
	}{
		{"unknown type", WSMessage{Type: "evaluate", ID: "e1"}},
		{"invalid payload", WSMessage{Type: "rollout", ID: "e2", Payload: json.RawMessage(`"x"`)}},
		{"invalid position", WSMessage{Type: "rollout", ID: "e3", Payload: json.RawMessage(`{"position":"!!"}`)}},
		{"invalid rollout", WSMessage{Type: "rollout", ID: "e4", Payload: json.RawMessage(`{"position":"4HPwATDgc/ABMA","rng":"mersenne"}`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, ws.WriteJSON(tc.msg))
			msg, _ := readUntil(t, ws, "error")
			assert.Equal(t, tc.msg.ID, msg.ID)
			assert.NotEmpty(t, msg.Error)
		})
	}
}

func TestWSClientPost(t *testing.T) {
	c := &wsClient{send: make(chan WSResponse, 1), done: make(chan struct{})}
	c.post(WSResponse{Type: "progress", ID: "p0"})

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < 10; i++ {
			c.post(WSResponse{Type: "progress", ID: "p1"})
		}
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("progress blocked on a full send buffer")
	}
	require.Len(t, c.send, 1)
	assert.Equal(t, "p0", (<-c.send).ID, "queued progress kept, later ones dropped")

	c.post(WSResponse{Type: "result", ID: "r1"})
	returned = make(chan struct{})
	go func() {
		defer close(returned)
		c.post(WSResponse{Type: "result", ID: "r2"})
	}()
	select {
	case <-returned:
		t.Fatal("result dropped on a full send buffer")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, "r1", (<-c.send).ID)
	<-returned
	assert.Equal(t, "r2", (<-c.send).ID)

	close(c.done)
	c.post(WSResponse{Type: "result", ID: "r3"})
	c.post(WSResponse{Type: "result", ID: "r4"})
}

func TestTutorMoveHandler(t *testing.T) {
	s := newTestServer(t, nil)

	for _, move := range []string{"8/5 6/5", "6/5 8/5"} {
		t.Run(move, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/api/tutor/move", TutorMoveRequest{
				Position: startID(), Dice: [2]int{3, 1}, Move: move, EvalParams: cubeless,
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := decode[TutorMoveResponse](t, w)
			assert.Equal(t, "none", resp.Skill)
			assert.Equal(t, 0, resp.PlayedIndex)
			assert.Zero(t, resp.EquityLoss)
			require.NotNil(t, resp.Best)
			assert.Equal(t, "8/5 6/5", resp.Best.Move)
			assert.Contains(t, resp.Reference, "8/5 6/5")
			assert.Empty(t, resp.Suggestion)
		})
	}

	t.Run("worst move", func(t *testing.T) {
		start := engine.StartingPosition(engine.VariantStandard)
		w := do(t, s.Handler(), http.MethodPost, "/api/moves", MoveRequest{Position: startID(), Dice: [2]int{6, 5}, NumMoves: 100})
		require.Equal(t, http.StatusOK, w.Code)
		all := decode[MovesResponse](t, w)
		require.Len(t, all.Moves, len(engine.GenerateMoves(start, 6, 5)))
		worst := all.Moves[len(all.Moves)-1]

		w = do(t, s.Handler(), http.MethodPost, "/api/tutor/move", TutorMoveRequest{
			Position: startID(), Dice: [2]int{6, 5}, Played: worst.Position,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[TutorMoveResponse](t, w)
		require.NotNil(t, resp.Played)
		assert.Equal(t, worst.Position, resp.Played.Position)
		assert.InDelta(t, all.Moves[0].Equity-worst.Equity, resp.EquityLoss, 1e-5)
		assert.Equal(t, skillToString(engine.MoveSkill(float32(resp.EquityLoss))), resp.Skill)
	})

	errs := []struct {
		name string
		req  TutorMoveRequest
		code string
	}{
		{"missing move", TutorMoveRequest{Position: startID(), Dice: [2]int{3, 1}}, "MISSING_MOVE"},
		{"illegal move", TutorMoveRequest{Position: startID(), Dice: [2]int{3, 1}, Move: "24/20"}, "INVALID_MOVE"},
		{"unreachable position", TutorMoveRequest{Position: startID(), Dice: [2]int{3, 1}, Played: startID()}, "INVALID_MOVE"},
		{"invalid dice", TutorMoveRequest{Position: startID(), Move: "8/5 6/5"}, "INVALID_DICE"},
	}
	for _, tc := range errs {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/api/tutor/move", tc.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestTutorCubeHandler(t *testing.T) {
	s := newTestServer(t, nil)

	for _, action := range []string{"double", "no_double"} {
		t.Run(action, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/api/tutor/cube", TutorCubeRequest{Position: startID(), Action: action})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := decode[TutorCubeResponse](t, w)
			assert.Equal(t, action, resp.Played)
			assert.GreaterOrEqual(t, resp.EquityLoss, 0.0)
			assert.NotEmpty(t, resp.Decision)
			if resp.Skill == "none" {
				assert.Empty(t, resp.Suggestion)
			} else {
				assert.Contains(t, resp.Suggestion, strings.ToLower(resp.Recommendation))
			}
		})
	}

	w := do(t, s.Handler(), http.MethodPost, "/api/tutor/cube", TutorCubeRequest{Position: startID(), Action: "beaver"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ACTION", decode[ErrorResponse](t, w).Code)
}

func TestAnalyzeGameHandler(t *testing.T) {
	s := newTestServer(t, nil)

	req := AnalyzeGameRequest{Decisions: []GameDecision{
		{Game: 1, MoveNumber: 1, Position: startID(), Dice: [2]int{3, 1}, Move: "8/5 6/5"},
		{Game: 1, MoveNumber: 2, Position: startID(), Dice: [2]int{6, 5}, Move: "24/13", GameParams: GameParams{Player: 1}},
	}}
	w := do(t, s.Handler(), http.MethodPost, "/api/tutor/game", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[GameAnalysisResponse](t, w)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, 1, resp.Analysis.Games)
	assert.Equal(t, [2]int{1, 1}, resp.Analysis.Stats.TotalMoves)
	assert.Equal(t, [2]int{1, 1}, resp.Analysis.Stats.CubeDecisions)
	assert.NotEmpty(t, resp.Ratings[0])
	assert.NotEmpty(t, resp.Suggestions)

	req.SkipCube = true
	w = do(t, s.Handler(), http.MethodPost, "/api/tutor/game", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, [2]int{0, 0}, decode[GameAnalysisResponse](t, w).Analysis.Stats.CubeDecisions)

	t.Run("mat record", func(t *testing.T) {
		mat := " 7 point match\n\n Game 1\n Alice : 0                          Bob : 0\n" +
			"  1) 31: 8/5 6/5                    65: 24/13\n"
		w := do(t, s.Handler(), http.MethodPost, "/api/tutor/game", AnalyzeGameRequest{MAT: mat, SkipLuck: true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[GameAnalysisResponse](t, w)
		assert.Equal(t, 1, resp.Analysis.Games)
		assert.Equal(t, [2]int{1, 1}, resp.Analysis.Stats.TotalMoves)
	})

	errs := []struct {
		name string
		req  AnalyzeGameRequest
		code string
	}{
		{"no decisions", AnalyzeGameRequest{}, "MISSING_DECISIONS"},
		{"bad position", AnalyzeGameRequest{Decisions: []GameDecision{{Position: "??"}}}, "INVALID_DECISION"},
		{"illegal move", AnalyzeGameRequest{Decisions: []GameDecision{{Position: startID(), Dice: [2]int{3, 1}, Move: "24/13"}}}, "INVALID_DECISION"},
		{"bad level", AnalyzeGameRequest{Decisions: req.Decisions, EvalParams: EvalParams{Level: "godlike"}}, "INVALID_EVAL"},
		{"bad mat", AnalyzeGameRequest{MAT: " 5 point match\n"}, "INVALID_MATCH"},
	}
	for _, tc := range errs {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/api/tutor/game", tc.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	s := newTestServer(t, &log)

	do(t, s.Handler(), http.MethodGet, "/api/health", nil)
	do(t, s.Handler(), http.MethodPost, "/api/evaluate", "{")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"path":"/api/health"`)
	assert.Contains(t, lines[0], `"status":200`)
	assert.Contains(t, lines[1], `"method":"POST"`)
	assert.Contains(t, lines[1], `"status":400`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s.Handler(), http.MethodOptions, "/api/evaluate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestParams(t *testing.T) {
	ci, err := cubeInfo(GameParams{})
	require.NoError(t, err)
	assert.Equal(t, engine.MoneyCubeInfo(0), ci)

	ci, err = cubeInfo(GameParams{Player: 1, CubeValue: 4, CubeOwner: ptr(0), Variant: "nackgammon", Jacoby: true})
	require.NoError(t, err)
	assert.Equal(t, 4, ci.Cube)
	assert.Equal(t, 0, ci.Owner)
	assert.Equal(t, 1, ci.Move)
	assert.Equal(t, engine.VariantNackgammon, ci.Variant)
	assert.True(t, ci.Jacoby)

	_, err = cubeInfo(GameParams{Variant: "chouette"})
	assert.ErrorIs(t, err, engine.ErrInvalidCube)
	_, err = cubeInfo(GameParams{CubeOwner: ptr(2)})
	assert.ErrorIs(t, err, engine.ErrInvalidCube)

	h := NewHandlers(nil, DefaultConfig(), "", nil)
	ec, err := h.evalContext(EvalParams{})
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultEvalContext(), ec)

	ec, err = h.evalContext(EvalParams{Level: "worldclass", Cubeful: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 2, ec.Plies)
	assert.False(t, ec.Cubeful)

	_, err = h.evalContext(EvalParams{Noise: ptr(float32(-1))})
	assert.Error(t, err)
}

func TestMoveHelpers(t *testing.T) {
	assert.Equal(t, normalizeMove("24/18 13/8"), normalizeMove("13/8  24/18"))
	assert.NotEqual(t, normalizeMove("24/18 13/8"), normalizeMove("24/13"))

	actions := map[string]engine.CubeAction{
		"double": engine.Double, "Take": engine.Take, "drop": engine.Pass, "no_double": engine.NoDouble,
	}
	for s, want := range actions {
		got, err := parseCubeAction(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
		if s != "drop" && s != "Take" {
			assert.Equal(t, s, cubeActionToString(got))
		}
	}
	_, err := parseCubeAction("redouble")
	assert.Error(t, err)

	assert.Equal(t, "very_bad", skillToString(engine.SkillVeryBad))
	assert.Equal(t, "none", skillToString(engine.SkillNone))
}
