package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"forecast-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// createTestForecaster loads a forecast directory with three ranked pairs
// and a series for store 1 dept 1 only.
func createTestForecaster(t *testing.T) *services.Forecaster {
	t.Helper()
	return createTestForecasterWith(t, nil)
}

// createTestForecasterWith adds or replaces files in the default directory.
func createTestForecasterWith(t *testing.T, extra map[string]string) *services.Forecaster {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		services.DefaultSummaryFile: "Store,Dept,MAPE,RMSE\n1,1,8.5,1200\n1,2,3.2,800\n2,1,3.2,950\n",
		services.SeriesFileName(1, 1): "ds,y,yhat\n2024-01-01,100,110\n2024-01-08,100,90\n2024-01-15,,120\n",
	}
	maps.Copy(files, extra)
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src := services.NewCSVSource(dir, services.WithSourceLogger(testLogger()))
	f, err := services.LoadForecaster(context.Background(), src, src, services.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("LoadForecaster() failed: %v", err)
	}
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return env
}
