package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forecast-dashboard/internal/services"
)

func forecastEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		services.DefaultSummaryFile:   "Store,Dept,MAPE,RMSE\n1,1,8.5,1200\n1,2,3.2,800\n2,1,4.1,950\n",
		services.SeriesFileName(1, 1): "ds,y,yhat\n2024-01-01,100,110\n2024-01-08,100,90\n2024-01-15,,120\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(t.TempDir())
	t.Setenv("DATA_SOURCE", "csv")
	t.Setenv("FORECAST_DIR", dir)
	t.Setenv("ENGINE_CACHE_SERIES", "false")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTopCommand(t *testing.T) {
	forecastEnv(t)

	out, err := execute(t, "top", "-n", "2")
	if err != nil {
		t.Fatalf("top failed: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", out)
	}
	if !strings.Contains(lines[1], "3.20%") || !strings.Contains(lines[2], "4.10%") {
		t.Errorf("rows out of order: %q", out)
	}
}

func TestReportCommand(t *testing.T) {
	forecastEnv(t)

	out, err := execute(t, "report", "--store", "1", "--dept", "1,2", "--end", "2024-01-08", "--tail", "1")
	if err != nil {
		t.Fatalf("report failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Store 1 - Dept 1",
		"2024-01-01..2024-01-08 (2 points)",
		"Stable",
		"2024-01-08",
		"Store 1 - Dept 2",
		"forecast not found for store 1, dept 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestReportCommand_AllPairsFail(t *testing.T) {
	forecastEnv(t)

	if _, err := execute(t, "report", "--store", "2", "--dept", "1"); err == nil {
		t.Error("expected error when no report can be built")
	}
}

func TestReportCommand_InvertedWindow(t *testing.T) {
	forecastEnv(t)

	out, err := execute(t, "report", "--store", "1", "--dept", "1", "--start", "2024-02-01", "--end", "2024-01-01")
	if err == nil {
		t.Fatalf("expected error, got output %s", out)
	}
	if !strings.Contains(out, "invalid") {
		t.Errorf("expected invalid window message, got %s", out)
	}
}

func TestExportCommand(t *testing.T) {
	forecastEnv(t)

	out, err := execute(t, "export", "--store", "1", "--dept", "1", "--start", "2024-01-08", "-o", "-")
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	want := "ds,y,yhat\n2024-01-08,100,90\n2024-01-15,,120\n"
	if out != want {
		t.Errorf("export = %q, want %q", out, want)
	}

	if _, err := execute(t, "export", "--store", "1,2", "--dept", "1"); err == nil {
		t.Error("expected error for more than one store")
	}
}

func TestExportCommand_File(t *testing.T) {
	forecastEnv(t)

	out, err := execute(t, "export", "--store", "1", "--dept", "1")
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(services.SeriesFileName(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "\n") != 4 {
		t.Errorf("unexpected export file %q", data)
	}
}

func TestImportCommand(t *testing.T) {
	forecastEnv(t)
	db := filepath.Join(t.TempDir(), "forecasts.db")

	out, err := execute(t, "import", "--db", db)
	if err != nil {
		t.Fatalf("import failed: %v\n%s", err, out)
	}

	t.Setenv("DATA_SOURCE", "sqlite")
	t.Setenv("SQLITE_PATH", db)
	out, err = execute(t, "report", "--store", "1", "--dept", "1")
	if err != nil {
		t.Fatalf("report from sqlite failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Increase") {
		t.Errorf("expected increase trend from imported data, got %s", out)
	}
}

func TestParseWindowFlags(t *testing.T) {
	w, err := parseWindowFlags("", "")
	if err != nil || w != nil {
		t.Errorf("empty flags = %v, %v", w, err)
	}
	w, err = parseWindowFlags("2024-01-01", "")
	if err != nil || w.String() != "2024-01-01..9999-12-31" {
		t.Errorf("open end = %v, %v", w, err)
	}
	if _, err := parseWindowFlags("", "tomorrow"); err == nil {
		t.Error("expected parse error")
	}
}
