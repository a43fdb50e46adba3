package graphdb

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/SethBurkart123/covalt/pkg/executor"
	"github.com/SethBurkart123/covalt/pkg/flow"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "covalt.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func sampleGraph() flow.Graph {
	return flow.Graph{
		Nodes: []flow.FlowNode{
			{ID: "a", Type: "chat-start", Position: flow.Position{X: 10, Y: 20}},
			{ID: "b", Type: "agent", Data: map[string]any{"system": "be brief"}},
		},
		Edges: []flow.FlowEdge{
			{
				ID: "e1", Source: "a", SourceHandle: "message",
				Target: "b", TargetHandle: "input",
				Data: flow.EdgeData{Channel: flow.ChannelFlow, TargetType: flow.SocketMessage},
			},
		},
	}
}

func TestGraphRoundTrip(t *testing.T) {
	d := openTestDB(t)
	g := sampleGraph()

	if err := d.SaveGraph("main", g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	got, err := d.LoadGraph("main")
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, g)
	}
}

func TestLoadGraphNotFound(t *testing.T) {
	d := openTestDB(t)
	_, err := d.LoadGraph("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveGraphOverwrites(t *testing.T) {
	d := openTestDB(t)
	if err := d.SaveGraph("main", sampleGraph()); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	updated := flow.Graph{Nodes: []flow.FlowNode{{ID: "only", Type: "chat-start"}}}
	if err := d.SaveGraph("main", updated); err != nil {
		t.Fatalf("SaveGraph (overwrite): %v", err)
	}
	got, err := d.LoadGraph("main")
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].ID != "only" {
		t.Errorf("overwrite not applied: %+v", got)
	}

	infos, err := d.ListGraphs()
	if err != nil {
		t.Fatalf("ListGraphs: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "main" {
		t.Errorf("list = %+v, want single entry main", infos)
	}
}

func TestDeleteGraphCascades(t *testing.T) {
	d := openTestDB(t)
	if err := d.SaveGraph("main", sampleGraph()); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	res := &executor.RunResult{
		RunID: "run-1",
		Outputs: map[string]executor.Outputs{
			"a": {"message": {Type: flow.SocketMessage, Value: map[string]any{"content": "hi"}}},
		},
	}
	if err := d.SaveRunResult("main", "chat-1", res); err != nil {
		t.Fatalf("SaveRunResult: %v", err)
	}

	if err := d.DeleteGraph("main"); err != nil {
		t.Fatalf("DeleteGraph: %v", err)
	}
	if _, err := d.LoadGraph("main"); !errors.Is(err, ErrNotFound) {
		t.Errorf("graph survives deletion: %v", err)
	}
	cached, err := d.CachedOutputs("main")
	if err != nil {
		t.Fatalf("CachedOutputs: %v", err)
	}
	if len(cached) != 0 {
		t.Errorf("cache survives deletion: %+v", cached)
	}
	// Deleting again is a no-op.
	if err := d.DeleteGraph("main"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestRunCacheRoundTrip(t *testing.T) {
	d := openTestDB(t)

	first := &executor.RunResult{
		RunID: "run-1",
		Outputs: map[string]executor.Outputs{
			"n1": {"out": {Type: flow.SocketInt, Value: 5.0}},
			"n2": {"out": {Type: flow.SocketString, Value: "hello"}},
		},
	}
	if err := d.SaveRunResult("main", "", first); err != nil {
		t.Fatalf("SaveRunResult: %v", err)
	}

	// A second run overwrites n1 and leaves n2 in place.
	second := &executor.RunResult{
		RunID: "run-2",
		Outputs: map[string]executor.Outputs{
			"n1": {"out": {Type: flow.SocketInt, Value: 9.0}},
		},
	}
	if err := d.SaveRunResult("main", "", second); err != nil {
		t.Fatalf("SaveRunResult: %v", err)
	}

	cached, err := d.CachedOutputs("main")
	if err != nil {
		t.Fatalf("CachedOutputs: %v", err)
	}
	if got := cached["n1"]["out"].Value; got != 9.0 {
		t.Errorf("n1 = %v, want latest run's value 9", got)
	}
	if got := cached["n2"]["out"].Value; got != "hello" {
		t.Errorf("n2 = %v, want value from the earlier run", got)
	}

	if err := d.InvalidateNodes("main", []string{"n1"}); err != nil {
		t.Fatalf("InvalidateNodes: %v", err)
	}
	cached, err = d.CachedOutputs("main")
	if err != nil {
		t.Fatalf("CachedOutputs: %v", err)
	}
	if _, ok := cached["n1"]; ok {
		t.Errorf("n1 should be invalidated")
	}
	if _, ok := cached["n2"]; !ok {
		t.Errorf("n2 should survive targeted invalidation")
	}

	if err := d.ClearCache("main"); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	cached, err = d.CachedOutputs("main")
	if err != nil {
		t.Fatalf("CachedOutputs: %v", err)
	}
	if len(cached) != 0 {
		t.Errorf("cache not cleared: %+v", cached)
	}
}
