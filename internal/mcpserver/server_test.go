package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/ledger"
	"github.com/starford/timelapse/internal/models"
	"github.com/starford/timelapse/internal/sceneservice"
	"github.com/starford/timelapse/internal/testutil"
)

const sceneID = "LC81910562013110LGN01"

func testServer(t *testing.T) (*Server, *ledger.DB) {
	t.Helper()
	db := testutil.TestLedger(t)
	svc := sceneservice.NewService(db, testutil.TestWorkspace(t), landsat.CombinationVegetation)
	return New(svc, "test"), db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "satellite_for_year":
		result, err = srv.satelliteForYear(ctx, req)
	case "parse_scene_id":
		result, err = srv.parseSceneID(ctx, req)
	case "list_scenes":
		result, err = srv.listScenes(ctx, req)
	case "get_scene":
		result, err = srv.getScene(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSatelliteForYear(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "satellite_for_year", map[string]any{"year": float64(1980)})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var info sceneservice.SatelliteInfo
	if err := json.Unmarshal([]byte(resultText(r)), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Satellite.Version != 3 || info.SensorID != landsat.SensorIDMSS {
		t.Errorf("info = %+v", info)
	}
}

func TestSatelliteForYear_MissingYear(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "satellite_for_year", map[string]any{}); !r.IsError {
		t.Error("expected error for missing year")
	}
}

func TestParseSceneID(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "parse_scene_id", map[string]any{"id": sceneID})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, `"ProductCode": "L8"`) {
		t.Errorf("parse result = %s", text)
	}

	r = callTool(t, srv, "parse_scene_id", map[string]any{"id": "LC8191"})
	if !r.IsError {
		t.Error("expected error for malformed id")
	}
}

func TestListAndGetScene(t *testing.T) {
	srv, db := testServer(t)
	_ = db.UpsertScene(models.SceneRecord{SceneID: sceneID, Year: 2013, Status: models.StatusExtracted, LastError: "gdalwarp: exit status 1"})

	r := callTool(t, srv, "list_scenes", map[string]any{"year": float64(2013)})
	if r.IsError || !strings.Contains(resultText(r), sceneID) {
		t.Errorf("list result = %s", resultText(r))
	}

	r = callTool(t, srv, "get_scene", map[string]any{"id": sceneID})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, "gdalwarp: exit status 1") {
		t.Errorf("get result = %s", text)
	}
}

func TestGetSceneMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_scene", map[string]any{"id": sceneID})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("missing scene = %q, error = %v", resultText(r), r.IsError)
	}
}

func TestListRuns(t *testing.T) {
	srv, db := testServer(t)
	_, _ = db.StartRun(1990, landsat.ForYear(1990))
	r := callTool(t, srv, "list_runs", map[string]any{})
	if r.IsError || !strings.Contains(resultText(r), `"year": 1990`) {
		t.Errorf("runs result = %s", resultText(r))
	}
}

func TestHandlerAcceptsInitialize(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
