package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
	"github.com/mcdev12/quizbattle/go/internal/battle/registry"
)

func testBank() questionbank.Source {
	var qs []questionbank.Question
	for i := 0; i < 8; i++ {
		qs = append(qs, questionbank.Question{
			Prompt:       fmt.Sprintf("question %d", i),
			Options:      [questionbank.OptionCount]string{"a", "b", "c", "d"},
			CorrectIndex: i % questionbank.OptionCount,
		})
	}
	return questionbank.SourceFunc(func(context.Context) ([]questionbank.Question, error) {
		return qs, nil
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg := registry.New(engine.DefaultConfig(), testBank(), 0, engine.WithClock(clockwork.NewFakeClock()))
	svc := NewService(DefaultConfig(), reg)
	reg.OnCreate(svc.Attach)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		reg.Close()
		cancel()
	})
	return srv, reg
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestBattleAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	var created StateView
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/battles", CreateBattleRequest{Start: true}, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", code)
	}
	if created.Phase != engine.PhaseQuestion || created.CurrentRound != 1 {
		t.Fatalf("created view phase %q round %d", created.Phase, created.CurrentRound)
	}
	if created.Question == nil || created.Question.CorrectIndex != nil {
		t.Fatalf("created question = %+v, want correct index hidden", created.Question)
	}
	base := srv.URL + "/api/battles/" + created.BattleID

	var state StateView
	if code := doJSON(t, http.MethodGet, base+"/state", nil, &state); code != http.StatusOK {
		t.Fatalf("state status = %d", code)
	}
	if state.SessionID != created.SessionID {
		t.Errorf("session = %q, want %q", state.SessionID, created.SessionID)
	}

	var answered StateView
	if code := doJSON(t, http.MethodPost, base+"/answers", AnswerRequest{Option: intPtr(2)}, &answered); code != http.StatusOK {
		t.Fatalf("answer status = %d", code)
	}
	if answered.Player.Selection == nil || *answered.Player.Selection != 2 {
		t.Errorf("player selection = %v, want 2", answered.Player.Selection)
	}
	if code := doJSON(t, http.MethodPost, base+"/answers", AnswerRequest{Option: intPtr(1)}, nil); code != http.StatusConflict {
		t.Errorf("repeat answer status = %d, want 409", code)
	}
	if code := doJSON(t, http.MethodPost, base+"/answers", map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("answer without option status = %d, want 400", code)
	}

	var hist HistoryResponse
	if code := doJSON(t, http.MethodGet, base+"/history", nil, &hist); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if len(hist.Rounds) != 0 || hist.Phase != engine.PhaseQuestion {
		t.Errorf("history = %+v", hist)
	}

	if code := doJSON(t, http.MethodPut, base+"/opponent", map[string]any{"speed_ms_range": []int{900, 100}}, nil); code != http.StatusBadRequest {
		t.Errorf("bad opponent status = %d, want 400", code)
	}
	var configured StateView
	if code := doJSON(t, http.MethodPut, base+"/opponent", map[string]any{"accuracy": 0.9, "avatar": "K"}, &configured); code != http.StatusOK {
		t.Fatalf("opponent status = %d", code)
	}
	if configured.OpponentInfo.Accuracy != 0.9 || configured.OpponentInfo.Avatar != "K" {
		t.Errorf("opponent = %+v", configured.OpponentInfo)
	}

	var list []registry.Summary
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/battles", nil, &list); code != http.StatusOK || len(list) != 1 {
		t.Errorf("list status %d len %d, want 200 and 1", code, len(list))
	}

	if code := doJSON(t, http.MethodDelete, base, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", code)
	}
	if code := doJSON(t, http.MethodGet, base+"/state", nil, nil); code != http.StatusNotFound {
		t.Errorf("state after delete status = %d, want 404", code)
	}
}

func TestBattleAPILookupErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "malformed id", path: "/api/battles/not-a-uuid/state", want: http.StatusBadRequest},
		{name: "unknown id", path: "/api/battles/" + uuid.NewString() + "/state", want: http.StatusNotFound},
		{name: "ws without id", path: "/ws/battle", want: http.StatusBadRequest},
		{name: "ws unknown id", path: "/ws/battle?battle_id=" + uuid.NewString(), want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) BattleEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev BattleEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

// waitForState reads events until a StateChanged view satisfies cond.
func waitForState(t *testing.T, conn *websocket.Conn, cond func(StateView) bool) StateView {
	t.Helper()
	for i := 0; i < 50; i++ {
		ev := readEvent(t, conn)
		if ev.Type != EventTypeStateChanged {
			continue
		}
		var p StateChangedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if cond(p.State) {
			return p.State
		}
	}
	t.Fatal("state never reached")
	return StateView{}
}

func TestWebSocketRenderer(t *testing.T) {
	srv, reg := newTestServer(t)
	id, _, err := reg.Create()
	if err != nil {
		t.Fatal(err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/battle?battle_id=" + id.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readEvent(t, conn)
	if first.Type != EventTypeSnapshot || first.BattleID != id.String() {
		t.Fatalf("first event = %s for %s, want Snapshot for %s", first.Type, first.BattleID, id)
	}

	if err := conn.WriteJSON(ClientMessage{Type: CommandNewGame}); err != nil {
		t.Fatal(err)
	}
	started := waitForState(t, conn, func(v StateView) bool { return v.Phase == engine.PhaseQuestion })
	if started.Question == nil || started.Question.CorrectIndex != nil {
		t.Fatalf("question = %+v, want correct index hidden", started.Question)
	}

	if err := conn.WriteJSON(ClientMessage{Type: CommandSelectAnswer, Option: intPtr(3)}); err != nil {
		t.Fatal(err)
	}
	answered := waitForState(t, conn, func(v StateView) bool { return v.Player.Selection != nil })
	if *answered.Player.Selection != 3 {
		t.Errorf("player selection = %d, want 3", *answered.Player.Selection)
	}

	if err := conn.WriteJSON(ClientMessage{Type: "shuffle_deck"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; ; i++ {
		ev := readEvent(t, conn)
		if ev.Type == EventTypeCommandRejected {
			var p CommandRejectedPayload
			json.Unmarshal(ev.Data, &p)
			if p.Command != "shuffle_deck" {
				t.Errorf("rejected command = %q", p.Command)
			}
			break
		}
		if i > 50 {
			t.Fatal("no CommandRejected event")
		}
	}

	if err := reg.Remove(id); err != nil {
		t.Fatal(err)
	}
	sawClosed := false
	for {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var ev BattleEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		if ev.Type == EventTypeBattleClosed {
			sawClosed = true
		}
	}
	if !sawClosed {
		t.Error("renderer was disconnected without a BattleClosed event")
	}
}

func intPtr(i int) *int { return &i }
