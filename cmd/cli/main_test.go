package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/predictor"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := &config.Config{
		StoreURI: "memory://",
		Model:    config.Model{ArtifactDir: t.TempDir(), Trees: 5, Seed: 2},
	}
	a, err := app.Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	var out bytes.Buffer

	path := writeCSV(t, "date,category,description,paymentMethod,amount,isFestival\n"+
		"2024-02-01,Food,Lunch,Card,12.5,no\n"+
		"2024-02-02,Salary,Pay,Transfer,2000,no\n")
	require.NoError(t, runImport(ctx, a, []string{"-file", path}, &out))
	require.Contains(t, out.String(), "Inserted 2 transactions")

	// Income outside the category allow-list keeps its type.
	_, err := a.Ledger.AddTransaction(ctx, ledger.Fields{
		"date": "2024-02-03", "category": "Gift", "amount": 50.0, "type": "income",
	})
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "out.csv")
	out.Reset()
	require.NoError(t, runExport(ctx, a, []string{"-file", exportPath}, &out))
	require.Contains(t, out.String(), "Exported 3 transactions")

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, strings.Join(ledger.ExportHeader, ","), lines[0])
	require.Equal(t, "2024-02-02,Salary,Pay,Transfer,2000,income,false", lines[2])
	require.Equal(t, "2024-02-03,Gift,,,50,income,false", lines[3])

	// Re-importing the export yields the same records.
	other := newTestApp(t)
	out.Reset()
	require.NoError(t, runImport(ctx, other, []string{"-file", exportPath}, &out))
	var again bytes.Buffer
	require.NoError(t, runExport(ctx, other, nil, &again))
	require.Equal(t, string(data), again.String())
}

func TestImportRequiresFile(t *testing.T) {
	a := newTestApp(t)
	require.Error(t, runImport(context.Background(), a, nil, &bytes.Buffer{}))
	require.Error(t, runImport(context.Background(), a, []string{"-file", "/does/not/exist.csv"}, &bytes.Buffer{}))
}

func TestTrainAndPredict(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	var out bytes.Buffer

	require.NoError(t, runTrain(ctx, a, nil, &out))
	require.Contains(t, out.String(), "No data in database")

	var rows strings.Builder
	rows.WriteString("date,category,amount\n")
	for d := 1; d <= 20; d++ {
		fmt.Fprintf(&rows, "2024-03-%02d,Transport,5\n", d)
	}
	require.NoError(t, runImport(ctx, a, []string{"-file", writeCSV(t, rows.String())}, &out))

	out.Reset()
	require.NoError(t, runTrain(ctx, a, nil, &out))
	require.Contains(t, out.String(), "Model trained successfully on 20 rows")

	out.Reset()
	require.NoError(t, runPredict(ctx, a, []string{"-category", "Transport", "-date", "2024-03-09"}, &out))
	require.Equal(t, "Predicted amount: 5.00\n", out.String())

	out.Reset()
	require.NoError(t, runPredict(ctx, a, []string{"-category", "Transport", "-day-of-week", "1", "-month", "3"}, &out))
	require.Equal(t, "Predicted amount: 5.00\n", out.String())

	err := runPredict(ctx, a, []string{"-category", "Yachts", "-date", "2024-03-09"}, &out)
	require.ErrorIs(t, err, predictor.ErrUnknownCategory)

	require.Error(t, runPredict(ctx, a, []string{"-category", "Transport"}, &out))
	require.Error(t, runPredict(ctx, a, nil, &out))
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	_, err := a.Ledger.AddBudget(ctx, ledger.Fields{"category": "Food", "budget": 100.0, "validTill": "2001-01-01"})
	require.NoError(t, err)
	_, err = a.Ledger.AddTransaction(ctx, ledger.Fields{"category": "Food", "amount": 40.0, "date": "2024-01-01"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runBudgets(ctx, a, nil, &out))
	require.Contains(t, out.String(), "1. Food (expense)")
	require.Contains(t, out.String(), "Spent:   40.00")
	require.Contains(t, out.String(), "Expired: true")

	out.Reset()
	require.NoError(t, runBudgets(ctx, a, []string{"-json"}, &out))
	require.Contains(t, out.String(), `"spent": 40`)
}

func TestMigrate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runMigrate(context.Background(), newTestApp(t), nil, &out))
	require.Contains(t, out.String(), "up to date")
}

func TestExportBQRequiresProject(t *testing.T) {
	a := newTestApp(t)
	err := runExportBQ(context.Background(), a, []string{"-project", ""}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestUsageListsEveryCommand(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)
	for name := range commands {
		require.Contains(t, out.String(), "  "+name+" ")
	}
}
