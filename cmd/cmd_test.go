package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-atencion/outreach-cli/internal/config"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/store"
	"github.com/red-atencion/outreach-cli/internal/warehouse"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

const communesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"comuna": "1"},
     "geometry": {"type": "Polygon", "coordinates": [[[-58.5, -34.7], [-58.4, -34.7], [-58.4, -34.5], [-58.5, -34.5], [-58.5, -34.7]]]}},
    {"type": "Feature", "properties": {"comuna": "2"},
     "geometry": {"type": "Polygon", "coordinates": [[[-58.4, -34.7], [-58.3, -34.7], [-58.3, -34.5], [-58.4, -34.5], [-58.4, -34.7]]]}}
  ]
}`

const casesCSV = `Persona DNI,Fecha Inicio,Latitud,Longitud,Resultado,Estado,Tipo Carta,Agencia
30123456,2025-09-08 10:00:00,"-34,60","-58,45",01-Traslado efectivo a CIS,CERRADO,AUTOMATICA,DIPA I
30123456,2025-09-15 10:00:00,"-34,60","-58,45",se realiza entrevista,CERRADO,AUTOMATICA,DIPA I
30123456,2025-09-22 10:00:00,"-34,60","-58,35",se realiza entrevista,CERRADO,,DIPA I
NO BRINDA,2025-09-22 11:00:00,,,sin cubrir,PENDIENTE,AUTOMATICA,DIPA I
40111222,2025-09-22 12:00:00,"-34,60","-58,35",se realiza entrevista,CERRADO,,SALUD MENTAL
`

// setupConfig points the package config at a temp SQLite store, a GeoJSON
// commune set and a CSV warehouse.
func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	zonesPath := filepath.Join(dir, "comunas.geojson")
	require.NoError(t, os.WriteFile(zonesPath, []byte(communesGeoJSON), 0o644))

	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "outreach.db")
	c.Warehouse.Driver = "csv"
	c.Warehouse.CSVPath = filepath.Join(dir, "historico_limpio.csv")
	c.Zones.Sets = []zone.SetSpec{{Name: "comunas", Path: zonesPath, Kind: "base", LabelField: "comuna"}}
	c.Outcome.FuzzyThreshold = 80
	c.Evolution.WeekStart = "sunday"
	c.Evolution.DedupPolicy = "latest"
	c.Intake.Timezone = "UTC"
	c.Intake.ExcludedAgencies = []string{"SALUD MENTAL"}
	c.Intake.PendingStatus = "PENDIENTE"
	c.Report.Weeks = 8
	c.Report.AutomaticCardType = "AUTOMATICA"
	c.Server.Port = 8080
	c.Log.Level = "info"

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return dir
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "zones", "report", "export", "serve", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "outreach-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("input"))
	require.NotNil(t, zonesCmd.Flags().Lookup("publish"))
	for _, name := range []string{"zone", "weeks", "format"} {
		assert.NotNil(t, reportCmd.Flags().Lookup(name), "report should have --%s", name)
	}
	assert.Equal(t, "yaml", reportCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "-", exportCmd.Flags().Lookup("out").DefValue)
	assert.Equal(t, "0", serveCmd.Flags().Lookup("port").DefValue)
}

func TestRunEndToEnd(t *testing.T) {
	dir := setupConfig(t)
	ctx := context.Background()

	input := filepath.Join(dir, "casos.csv")
	require.NoError(t, os.WriteFile(input, []byte(casesCSV), 0o644))

	incoming, err := readInput(input)
	require.NoError(t, err)
	require.Len(t, incoming, 5)

	env, err := initPipeline(ctx)
	require.NoError(t, err)
	defer env.Close()

	res, err := env.Pipeline.Run(ctx, "casos.csv", incoming)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	assert.Equal(t, 4, res.Run.Appended, "excluded agency row is dropped")
	require.Len(t, res.Batch, 4)

	evo := []model.Evolution{}
	for _, r := range res.Batch {
		evo = append(evo, r.Evolution)
	}
	assert.Equal(t, []model.Evolution{
		model.EvolutionNew, model.EvolutionRecurring, model.EvolutionMigratory, model.EvolutionUnclassifiable,
	}, evo)

	first, err := os.ReadFile(cfg.Warehouse.CSVPath)
	require.NoError(t, err)

	// Same input again: nothing appended, identical warehouse output.
	res2, err := env.Pipeline.Run(ctx, "casos.csv", incoming)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Run.Appended)
	second, err := os.ReadFile(cfg.Warehouse.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	runs, err := env.Store.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	var out bytes.Buffer
	formatRunsList(&out, runs)
	assert.Contains(t, out.String(), "casos.csv")
	assert.Contains(t, out.String(), "complete")
}

func TestReportFromStore(t *testing.T) {
	dir := setupConfig(t)
	ctx := context.Background()

	input := filepath.Join(dir, "casos.csv")
	require.NoError(t, os.WriteFile(input, []byte(casesCSV), 0o644))
	incoming, err := readInput(input)
	require.NoError(t, err)

	env, err := initPipeline(ctx)
	require.NoError(t, err)
	_, err = env.Pipeline.Run(ctx, "casos.csv", incoming)
	require.NoError(t, err)
	env.Close()

	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	batch, err := st.Load(ctx)
	require.NoError(t, err)

	opts, err := cfg.ReportOptions()
	require.NoError(t, err)
	evoOpts, err := cfg.EvolutionOptions()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, batch, "1", opts, evoOpts, "json"))
	assert.Contains(t, buf.String(), `"zone": "1"`)
	assert.Contains(t, buf.String(), `"transfers": 1`)
	assert.Contains(t, buf.String(), `"recurring": 1`)

	buf.Reset()
	require.NoError(t, writeReport(&buf, batch, "", opts, evoOpts, "yaml"))
	assert.Contains(t, buf.String(), "indicators:")
	assert.Contains(t, buf.String(), "migratory: 1")

	assert.Error(t, writeReport(&buf, batch, "", opts, evoOpts, "xml"))

	buf.Reset()
	require.NoError(t, warehouse.WriteCSV(&buf, batch))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
}

func TestInitPipeline_InvalidConfig(t *testing.T) {
	setupConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := initPipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestInitWarehouse_PostgresNeedsURL(t *testing.T) {
	setupConfig(t)
	cfg.Warehouse.Driver = "postgres"

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, _, _, err = initWarehouse(context.Background(), st)
	assert.ErrorContains(t, err, "warehouse.database_url")
}

func TestInitWarehouse_Drivers(t *testing.T) {
	setupConfig(t)
	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	cfg.Warehouse.Driver = "none"
	wh, sink, closeFn, err := initWarehouse(context.Background(), st)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, warehouse.Nop{}, wh)
	assert.Nil(t, sink)

	cfg.Warehouse.Driver = "csv"
	wh, _, _, err = initWarehouse(context.Background(), st)
	require.NoError(t, err)
	assert.IsType(t, &warehouse.CSVSink{}, wh)
}

func TestReadInput_MissingFile(t *testing.T) {
	setupConfig(t)
	_, err := readInput(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestFormatZoneSets(t *testing.T) {
	setupConfig(t)
	sets, err := zone.NewFileProvider(cfg.Zones.Sets).LoadZoneSets(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	formatZoneSets(&buf, sets)
	assert.Contains(t, buf.String(), "PRECEDENCE")
	assert.Contains(t, buf.String(), "comunas")
	assert.Contains(t, buf.String(), "base")
}

func TestFormatRunsList_Truncates(t *testing.T) {
	start := time.Date(2025, 9, 22, 9, 0, 0, 0, time.UTC)
	runs := []model.Run{{
		ID:         "abc12345-6789-0000-0000-000000000000",
		Source:     "reporte-semanal-de-casos-septiembre-2025.xlsx",
		Status:     model.RunStatusFailed,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "reporte-semanal-de-casos-se...")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "1.5s")
}
